package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewOperationID builds a queue operation id that sorts roughly by
// creation time: unix milliseconds plus random hex.
func NewOperationID() string {
	return fmt.Sprintf("op_%d_%s", time.Now().UnixMilli(), randHex(4))
}

// NewTempID builds a placeholder id for an optimistic create awaiting a
// server-assigned id.
func NewTempID() string {
	return fmt.Sprintf("temp_%d_%s", time.Now().UnixMilli(), randHex(4))
}

// IsTempID reports whether the id is a client-synthesized placeholder.
func IsTempID(id string) bool {
	return len(id) > 5 && id[:5] == "temp_"
}

func randHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the clock so ids stay unique enough.
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
