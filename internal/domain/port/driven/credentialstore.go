package driven

import (
	"context"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
)

// CredentialStore defines the driven port for per-user Clio token
// persistence. The adapter layer is responsible for encryption at rest;
// this interface operates on plaintext tokens at the domain boundary.
type CredentialStore interface {
	// Get retrieves the credential snapshot for the given user.
	// Returns ErrUserNotFound if no credential row exists.
	Get(ctx context.Context, userID string) (model.Credential, error)

	// Save writes a new token pair for the user, creating the row when
	// absent. An empty refreshToken leaves the stored refresh token
	// intact; providers do not rotate it on every refresh.
	Save(ctx context.Context, userID, accessToken, refreshToken string) error

	// Update overwrites the tokens for an existing user only.
	// Returns ErrUserNotFound when the row is gone, so a refresh racing
	// an account deletion surfaces instead of resurrecting credentials.
	// The empty-refresh-token rule from Save applies here too.
	Update(ctx context.Context, userID, accessToken, refreshToken string) error

	// Delete removes the credential for the given user.
	Delete(ctx context.Context, userID string) error
}
