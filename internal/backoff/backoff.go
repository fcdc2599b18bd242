// Package backoff computes retry delays as a pure function of the
// attempt count, independent of any caller state.
package backoff

import (
	"math/rand"
	"time"
)

// Policy shapes an exponential backoff curve. Delay grows from Initial
// by Multiplier per attempt, capped at Max, with up to Jitter fraction
// of random spread to avoid reconnect stampedes.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // 0..1 fraction of the delay
}

// Default returns the policy used for reconnect and probe loops.
func Default() Policy {
	return Policy{
		Initial:    1 * time.Second,
		Max:        60 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// Delay returns the wait before the given attempt (1-based). Attempt
// values below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	d := float64(initial)
	for i := 1; i < attempt; i++ {
		d *= multiplier
		if p.Max > 0 && d >= float64(p.Max) {
			d = float64(p.Max)
			break
		}
	}
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}

	if p.Jitter > 0 {
		spread := d * p.Jitter
		d = d - spread/2 + rand.Float64()*spread
	}
	return time.Duration(d)
}
