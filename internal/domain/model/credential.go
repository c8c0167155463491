package model

import "time"

// Credential holds one user's Clio token pair. AccessToken is short-lived
// and replaced on every refresh; RefreshToken is long-lived and replaced
// only when the provider rotates it.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Session is the mutable token handle threaded through a chain of Clio
// calls. The request executor overwrites both tokens after a successful
// refresh so subsequent calls in the same sync reuse the fresh access
// token, and a later 401 refreshes with the rotated refresh token,
// without re-reading the credential store.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// NewSession builds a Session from a stored credential snapshot.
func NewSession(c Credential) *Session {
	return &Session{
		UserID:       c.UserID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}
}
