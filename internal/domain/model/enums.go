package model

// SyncStatus tracks where an intake sits in its sync lifecycle.
// Syncing is a transient lease state: a record is moved into it with a
// compare-and-set before any remote call is made, so two concurrent sync
// requests for the same record cannot both create a matter.
type SyncStatus string

const (
	SyncStatusNotSynced SyncStatus = "not_synced"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusSynced    SyncStatus = "synced"
	SyncStatusFailed    SyncStatus = "failed"
)

// ResyncPolicy decides what happens to the previously created matter when
// a record already marked synced is synced again.
type ResyncPolicy string

const (
	// ResyncNewMatter creates a fresh matter on every resync and never
	// touches the prior one.
	ResyncNewMatter ResyncPolicy = "new-matter"
	// ResyncUpdateMatter patches the matter already on file when one
	// exists, falling back to creating a new one when it does not.
	ResyncUpdateMatter ResyncPolicy = "update-matter"
)

// ValidResyncPolicy reports whether p is one of the recognized policies.
func ValidResyncPolicy(p ResyncPolicy) bool {
	return p == ResyncNewMatter || p == ResyncUpdateMatter
}
