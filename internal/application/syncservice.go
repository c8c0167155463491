// Package application contains the services that orchestrate domain logic
// over the driven ports.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// SyncService pushes intake records into Clio and keeps the local sync
// status consistent with the remote outcome. One Sync call runs the
// pipeline contact -> matter -> note in order, each step consuming the
// previous step's id, with every remote call flowing through the
// gateway's resilient executor.
type SyncService struct {
	intakes driven.IntakeStore
	creds   driven.CredentialStore
	clio    driven.ClioGateway
	policy  model.ResyncPolicy
	now     func() time.Time
}

// NewSyncService creates a SyncService. policy decides whether a resync
// creates a fresh matter or patches the one already on file.
func NewSyncService(intakes driven.IntakeStore, creds driven.CredentialStore, clio driven.ClioGateway, policy model.ResyncPolicy) *SyncService {
	if !model.ValidResyncPolicy(policy) {
		policy = model.ResyncNewMatter
	}
	return &SyncService{
		intakes: intakes,
		creds:   creds,
		clio:    clio,
		policy:  policy,
		now:     time.Now,
	}
}

// Sync runs the full pipeline for the record behind link.
//
// A record already synced without resync requested short-circuits before
// any network call. The owning user's credential snapshot is re-read on
// entry; a missing refresh token fails with ErrMissingAuthorization and
// the record is left untouched. Any pipeline failure stops immediately,
// persists a failed status with the reason, and performs no rollback of
// remote entities already created. The whole pipeline is never retried
// here; retries happen only inside the gateway at single-request level.
func (s *SyncService) Sync(ctx context.Context, link string, resync bool) (model.SyncResult, error) {
	intake, err := s.intakes.GetByLink(ctx, link)
	if err != nil {
		return model.SyncResult{}, err
	}

	if intake.SyncStatus == model.SyncStatusSynced && !resync {
		slog.Info("intake already synced", "link", link, "matter_id", intake.ExternalMatterID)
		return model.SyncResult{Ok: true, AlreadySynced: true, MatterID: intake.ExternalMatterID}, nil
	}

	cred, err := s.creds.Get(ctx, intake.UserID)
	if err != nil && !errors.Is(err, driven.ErrUserNotFound) {
		return model.SyncResult{}, err
	}
	if cred.RefreshToken == "" {
		// An access token alone is not evidence of a usable session.
		return model.SyncResult{Reason: driven.ErrMissingAuthorization.Error()}, driven.ErrMissingAuthorization
	}

	won, err := s.intakes.BeginSync(ctx, link, resync)
	if err != nil {
		return model.SyncResult{}, err
	}
	if !won {
		slog.Info("sync lease not acquired", "link", link)
		return model.SyncResult{Reason: "sync already in progress"}, nil
	}

	result, err := s.runPipeline(ctx, intake, model.NewSession(cred), resync)
	if err != nil {
		s.recordFailure(ctx, link, result.MatterID, err)
		result.Reason = err.Error()
		return result, err
	}

	if finishErr := s.intakes.FinishSync(ctx, link, model.SyncStatusSynced, result.MatterID, ""); finishErr != nil {
		return result, finishErr
	}

	slog.Info("intake synced", "link", link, "matter_id", result.MatterID, "resync", resync)
	result.Ok = true
	return result, nil
}

// runPipeline executes contact reconciliation, matter creation, and note
// attachment, threading the session so a token refreshed in one step
// carries into the next.
func (s *SyncService) runPipeline(ctx context.Context, intake *model.Intake, sess *model.Session, resync bool) (model.SyncResult, error) {
	contactID, err := s.reconcileContact(ctx, sess, intake.ContactFields())
	if err != nil {
		return model.SyncResult{}, err
	}

	matter := model.NewMatter{
		ContactID:   contactID,
		DisplayName: matterDisplayName(intake),
		Description: matterDescription(intake),
		OpenDate:    s.now(),
	}

	matterID, err := s.placeMatter(ctx, sess, intake, matter, resync)
	if err != nil {
		return model.SyncResult{}, err
	}

	if intake.Summary != "" {
		if err := s.clio.CreateNote(ctx, sess, matterID, intake.Summary); err != nil {
			return model.SyncResult{MatterID: matterID}, err
		}
	}

	return model.SyncResult{MatterID: matterID}, nil
}

// reconcileContact resolves the person to exactly one external contact id:
// search by email, update the match if one exists, create otherwise.
// Search failures are logged and treated as "no match found" so a flaky
// search endpoint cannot block sync progress.
func (s *SyncService) reconcileContact(ctx context.Context, sess *model.Session, fields model.ContactFields) (string, error) {
	if fields.Email != "" {
		matches, err := s.clio.SearchContactByEmail(ctx, sess, fields.Email)
		switch {
		case err != nil && driven.IsTransient(err):
			slog.Warn("contact search failed, falling through to create",
				"email", fields.Email,
				"error", err,
			)
		case err != nil:
			return "", err
		case len(matches) > 0:
			return s.clio.UpdateContact(ctx, sess, matches[0].ID, fields)
		}
	}

	if !fields.HasName() {
		return "", &driven.ValidationError{Field: "name", Reason: "a first or last name is required to create a contact"}
	}

	return s.clio.CreateContact(ctx, sess, fields)
}

// placeMatter creates the matter, or patches the existing one when this is
// a resync under the update-matter policy and a prior matter id is on file.
func (s *SyncService) placeMatter(ctx context.Context, sess *model.Session, intake *model.Intake, matter model.NewMatter, resync bool) (string, error) {
	if resync && s.policy == model.ResyncUpdateMatter && intake.ExternalMatterID != "" {
		return s.clio.UpdateMatter(ctx, sess, intake.ExternalMatterID, matter)
	}
	return s.clio.CreateMatter(ctx, sess, matter)
}

// AttachDocument uploads a document to an existing matter. It is an
// independent operation, not part of the sync pipeline: callers attach
// zero or more documents to a matter at any time after it exists.
func (s *SyncService) AttachDocument(ctx context.Context, userID, matterID string, doc model.Document) (string, error) {
	if matterID == "" {
		return "", &driven.ValidationError{Field: "matter_id", Reason: "required"}
	}
	if doc.Filename == "" || len(doc.Data) == 0 {
		return "", &driven.ValidationError{Field: "file", Reason: "a named, non-empty file is required"}
	}

	cred, err := s.creds.Get(ctx, userID)
	if err != nil && !errors.Is(err, driven.ErrUserNotFound) {
		return "", err
	}
	if cred.RefreshToken == "" {
		return "", driven.ErrMissingAuthorization
	}

	id, err := s.clio.UploadDocument(ctx, model.NewSession(cred), matterID, doc)
	if err != nil {
		return "", err
	}

	slog.Info("document attached", "matter_id", matterID, "document_id", id, "filename", doc.Filename)
	return id, nil
}

// recordFailure persists the failed outcome. A non-empty matterID is kept:
// the matter step succeeded before a later step failed.
func (s *SyncService) recordFailure(ctx context.Context, link, matterID string, cause error) {
	var invalid *driven.InvalidRemoteResponseError
	if errors.As(cause, &invalid) {
		// Contract violations by the remote system are logged apart from
		// ordinary failures so they can be alerted on.
		slog.Error("clio contract violation", "link", link, "operation", invalid.Operation, "error", cause)
	} else {
		slog.Error("intake sync failed", "link", link, "error", cause)
	}

	if err := s.intakes.FinishSync(ctx, link, model.SyncStatusFailed, matterID, cause.Error()); err != nil {
		slog.Error("failed to persist sync outcome", "link", link, "error", err)
	}
}

func matterDisplayName(intake *model.Intake) string {
	name := intake.FullName()
	if name == "" {
		name = intake.Email
	}
	if intake.BenefitType == "" {
		return name
	}
	return fmt.Sprintf("%s - %s", intake.BenefitType, name)
}

func matterDescription(intake *model.Intake) string {
	if intake.Reason != "" {
		return intake.Reason
	}
	benefit := intake.BenefitType
	if benefit == "" {
		benefit = "N/A"
	}
	return fmt.Sprintf("Intake for %s - %s", intake.FullName(), benefit)
}
