package application

import (
	"context"
	"errors"

	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// AuthService answers authorization questions about stored Clio
// credentials. The initial authorization-code exchange happens outside
// this service; it only inspects and removes what that exchange stored.
type AuthService struct {
	creds driven.CredentialStore
}

// NewAuthService creates an AuthService over the given credential store.
func NewAuthService(creds driven.CredentialStore) *AuthService {
	return &AuthService{creds: creds}
}

// IsAuthorized reports whether the user has a usable Clio session on
// file. Only a refresh token counts: an access token alone expires
// without any way to mint a successor.
func (s *AuthService) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	cred, err := s.creds.Get(ctx, userID)
	if errors.Is(err, driven.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cred.RefreshToken != "", nil
}

// Disconnect drops the user's stored Clio credentials.
func (s *AuthService) Disconnect(ctx context.Context, userID string) error {
	return s.creds.Delete(ctx, userID)
}
