package models

// SyncStatus is the store's high-level state as exposed to consumers.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusError   SyncStatus = "error"
	StatusOffline SyncStatus = "offline"
)
