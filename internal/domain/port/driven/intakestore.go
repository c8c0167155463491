package driven

import (
	"context"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
)

// IntakeStore defines the driven port for intake record persistence.
type IntakeStore interface {
	Create(ctx context.Context, intake *model.Intake) error
	GetByLink(ctx context.Context, link string) (*model.Intake, error)
	ListByUser(ctx context.Context, userID string) ([]model.Intake, error)

	// BeginSync atomically moves the record into the syncing state and
	// reports whether the caller won the lease. Eligible prior states are
	// not_synced and failed; synced is eligible only when resync is set.
	// Returns (false, nil) when another sync holds the lease or the
	// record is already synced, ErrIntakeNotFound for an unknown link.
	BeginSync(ctx context.Context, link string, resync bool) (bool, error)

	// FinishSync releases the lease, recording the outcome. A non-empty
	// matterID replaces the stored one regardless of status, so a matter
	// created before a later step failed stays on file. reason carries
	// the failure cause for a failed outcome, empty otherwise.
	FinishSync(ctx context.Context, link string, status model.SyncStatus, matterID, reason string) error
}
