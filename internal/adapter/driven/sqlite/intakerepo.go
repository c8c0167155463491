package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IntakeStore = (*IntakeRepo)(nil)

// IntakeRepo is the SQLite implementation of the IntakeStore port interface.
type IntakeRepo struct {
	db *DB
}

// NewIntakeRepo creates a new IntakeRepo backed by the given DB.
func NewIntakeRepo(db *DB) *IntakeRepo {
	return &IntakeRepo{db: db}
}

// Create inserts a new intake record and backfills its database id.
func (r *IntakeRepo) Create(ctx context.Context, intake *model.Intake) error {
	const query = `
		INSERT INTO intakes (
			link, user_id, first_name, last_name, email, phone, date_of_birth,
			benefit_type, reason, summary, sync_status, sync_error, external_matter_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if intake.SyncStatus == "" {
		intake.SyncStatus = model.SyncStatusNotSynced
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		intake.Link, intake.UserID, intake.FirstName, intake.LastName,
		intake.Email, intake.Phone, intake.DateOfBirth,
		intake.BenefitType, intake.Reason, intake.Summary,
		string(intake.SyncStatus), intake.SyncError, intake.ExternalMatterID,
	)
	if err != nil {
		return fmt.Errorf("insert intake %s: %w", intake.Link, err)
	}

	intake.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert intake %s: last insert id: %w", intake.Link, err)
	}
	return nil
}

const intakeColumns = `
	id, link, user_id, first_name, last_name, email, phone, date_of_birth,
	benefit_type, reason, summary, sync_status, sync_error, external_matter_id,
	created_at, updated_at
`

// GetByLink returns the intake with the given public link.
// Returns driven.ErrIntakeNotFound for an unknown link.
func (r *IntakeRepo) GetByLink(ctx context.Context, link string) (*model.Intake, error) {
	query := `SELECT ` + intakeColumns + ` FROM intakes WHERE link = ?`

	intake, err := scanIntake(r.db.Reader.QueryRowContext(ctx, query, link))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrIntakeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get intake %s: %w", link, err)
	}
	return intake, nil
}

// ListByUser returns all intakes owned by the given user, newest first.
func (r *IntakeRepo) ListByUser(ctx context.Context, userID string) ([]model.Intake, error) {
	query := `SELECT ` + intakeColumns + ` FROM intakes WHERE user_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list intakes for %s: %w", userID, err)
	}
	defer rows.Close()

	var intakes []model.Intake
	for rows.Next() {
		intake, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake: %w", err)
		}
		intakes = append(intakes, *intake)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intakes: %w", err)
	}

	return intakes, nil
}

// BeginSync compare-and-sets the record into the syncing state and reports
// whether the caller won the lease. The single UPDATE is the mutual
// exclusion: two concurrent syncs of one record race on sync_status, and
// only one sees a row change.
func (r *IntakeRepo) BeginSync(ctx context.Context, link string, resync bool) (bool, error) {
	query := `
		UPDATE intakes
		SET sync_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE link = ? AND sync_status IN ('not_synced', 'failed')
	`
	if resync {
		query = `
			UPDATE intakes
			SET sync_status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE link = ? AND sync_status IN ('not_synced', 'failed', 'synced')
		`
	}

	res, err := r.db.Writer.ExecContext(ctx, query, string(model.SyncStatusSyncing), link)
	if err != nil {
		return false, fmt.Errorf("begin sync for %s: %w", link, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin sync for %s: rows affected: %w", link, err)
	}
	if affected == 1 {
		return true, nil
	}

	// Distinguish "lease lost" from "no such record".
	if _, err := r.GetByLink(ctx, link); err != nil {
		return false, err
	}
	return false, nil
}

// FinishSync releases the sync lease, recording the outcome. A non-empty
// matterID is stored even for a failed outcome, since the matter step may
// have succeeded before a later step failed.
func (r *IntakeRepo) FinishSync(ctx context.Context, link string, status model.SyncStatus, matterID, reason string) error {
	const query = `
		UPDATE intakes
		SET sync_status = ?,
		    sync_error = ?,
		    external_matter_id = CASE WHEN ? != '' THEN ? ELSE external_matter_id END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE link = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query, string(status), reason, matterID, matterID, link)
	if err != nil {
		return fmt.Errorf("finish sync for %s: %w", link, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish sync for %s: rows affected: %w", link, err)
	}
	if affected == 0 {
		return driven.ErrIntakeNotFound
	}
	return nil
}

// RecoverInterruptedSyncs releases leases left behind by a crash or kill.
// At startup no pipeline is running, so any record still marked syncing
// was interrupted; it is moved to failed and becomes eligible for another
// sync. Returns the number of records released.
func (r *IntakeRepo) RecoverInterruptedSyncs(ctx context.Context) (int64, error) {
	const query = `
		UPDATE intakes
		SET sync_status = ?, sync_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE sync_status = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(model.SyncStatusFailed), "sync interrupted by restart", string(model.SyncStatusSyncing),
	)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted syncs: %w", err)
	}

	released, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover interrupted syncs: rows affected: %w", err)
	}
	return released, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIntake(s scanner) (*model.Intake, error) {
	var intake model.Intake
	var status, createdAt, updatedAt string

	err := s.Scan(
		&intake.ID, &intake.Link, &intake.UserID,
		&intake.FirstName, &intake.LastName, &intake.Email, &intake.Phone, &intake.DateOfBirth,
		&intake.BenefitType, &intake.Reason, &intake.Summary,
		&status, &intake.SyncError, &intake.ExternalMatterID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	intake.SyncStatus = model.SyncStatus(status)

	intake.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	intake.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &intake, nil
}
