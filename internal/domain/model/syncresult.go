package model

// SyncResult is the outcome of one sync invocation.
type SyncResult struct {
	Ok            bool
	AlreadySynced bool   // Short-circuited: record was synced and no resync was requested.
	MatterID      string // External matter id when the matter step succeeded.
	Reason        string // Human-readable failure reason; empty on success.
}
