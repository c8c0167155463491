package driven

import (
	"context"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
)

// ClioGateway defines the driven port for the Clio case-management API.
// This is deliberately not a generic CMS abstraction; it mirrors the one
// REST contract the engine targets (contacts, matters, notes, documents).
//
// Every method issues authenticated calls through the adapter's resilient
// executor: a 401 triggers a single token refresh and one retry of the
// identical request, and the refreshed token pair is written back into
// sess so the caller threads it into subsequent calls.
type ClioGateway interface {
	// SearchContactByEmail looks up contacts whose email exactly matches
	// the query. A nil slice with a nil error means no match. Network and
	// non-auth HTTP failures come back wrapped in TransientError so the
	// caller decides whether search failure blocks the sync.
	SearchContactByEmail(ctx context.Context, sess *model.Session, email string) ([]model.ContactMatch, error)

	// CreateContact creates a Person contact and returns its id.
	// Returns InvalidRemoteResponseError when the response carries no id.
	CreateContact(ctx context.Context, sess *model.Session, fields model.ContactFields) (string, error)

	// UpdateContact replaces the contact's fields in full and returns its id.
	UpdateContact(ctx context.Context, sess *model.Session, contactID string, fields model.ContactFields) (string, error)

	// CreateMatter creates an open matter linked to the given contact and
	// returns its id.
	CreateMatter(ctx context.Context, sess *model.Session, m model.NewMatter) (string, error)

	// UpdateMatter patches an existing matter's display name and
	// description, returning its id.
	UpdateMatter(ctx context.Context, sess *model.Session, matterID string, m model.NewMatter) (string, error)

	// CreateNote appends a free-text note to the matter.
	CreateNote(ctx context.Context, sess *model.Session, matterID, content string) error

	// UploadDocument attaches a document to the matter and returns the
	// created document id.
	UploadDocument(ctx context.Context, sess *model.Session, matterID string, doc model.Document) (string, error)
}

// TokenRefresher exchanges a refresh token for a new access token and
// persists it. It returns the new access token together with the refresh
// token to use from now on: the rotated one when the provider rotated,
// refreshToken itself otherwise. Implementations must be safe for
// concurrent use and must collapse concurrent refreshes for the same user
// into one exchange, since most providers invalidate the old refresh
// token on rotation.
type TokenRefresher interface {
	Refresh(ctx context.Context, userID, refreshToken string) (access, refresh string, err error)
}
