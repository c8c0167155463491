package clio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenRefresher = (*Refresher)(nil)

// Refresher exchanges a refresh token for a new access token at the Clio
// token endpoint and persists the result. Concurrent refreshes for the
// same user are collapsed into a single exchange via singleflight, so two
// syncs observing an expired token cannot race a rotating refresh token.
type Refresher struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
	creds        driven.CredentialStore

	group singleflight.Group
}

// NewRefresher creates a Refresher against the production token endpoint.
func NewRefresher(clientID, clientSecret, redirectURI string, creds driven.CredentialStore) *Refresher {
	return NewRefresherWithHTTPClient(&http.Client{Timeout: defaultHTTPTimeout}, DefaultTokenURL, clientID, clientSecret, redirectURI, creds)
}

// NewRefresherWithHTTPClient creates a Refresher with a custom http.Client
// and token URL, for tests running against an httptest server.
func NewRefresherWithHTTPClient(httpClient *http.Client, tokenURL, clientID, clientSecret, redirectURI string, creds driven.CredentialStore) *Refresher {
	return &Refresher{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		creds:        creds,
	}
}

// tokenPair is the usable token set after a successful exchange.
type tokenPair struct {
	access  string
	refresh string
}

// Refresh exchanges refreshToken for a new access token, persists it for
// userID, and returns the pair to use from now on. The stored and
// returned refresh token change only when the provider rotates it; a
// response without one keeps refreshToken valid.
func (r *Refresher) Refresh(ctx context.Context, userID, refreshToken string) (string, string, error) {
	if refreshToken == "" {
		return "", "", driven.ErrMissingCredential
	}

	v, err, shared := r.group.Do(userID, func() (any, error) {
		return r.refresh(ctx, userID, refreshToken)
	})
	if err != nil {
		return "", "", err
	}
	if shared {
		slog.Debug("token refresh deduplicated", "user_id", userID)
	}
	pair := v.(tokenPair)
	return pair.access, pair.refresh, nil
}

func (r *Refresher) refresh(ctx context.Context, userID, refreshToken string) (tokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {r.clientID},
		"client_secret": {r.clientSecret},
		"redirect_uri":  {r.redirectURI},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenPair{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return tokenPair{}, fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return tokenPair{}, fmt.Errorf("token refresh: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenPair{}, &driven.RefreshRejectedError{
			StatusCode: resp.StatusCode,
			Message:    tokenErrorText(raw),
		}
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return tokenPair{}, &driven.InvalidRemoteResponseError{Operation: "token refresh", Detail: "malformed token response"}
	}
	if body.AccessToken == "" {
		return tokenPair{}, &driven.InvalidRemoteResponseError{Operation: "token refresh", Detail: "response missing access_token"}
	}

	// body.RefreshToken may be empty; the store keeps the old one then.
	if err := r.creds.Update(ctx, userID, body.AccessToken, body.RefreshToken); err != nil {
		return tokenPair{}, fmt.Errorf("persist refreshed token: %w", err)
	}

	slog.Info("clio access token refreshed",
		"user_id", userID,
		"rotated_refresh_token", body.RefreshToken != "",
		"expires_in", time.Duration(body.ExpiresIn)*time.Second,
	)

	rotated := body.RefreshToken
	if rotated == "" {
		rotated = refreshToken
	}
	return tokenPair{access: body.AccessToken, refresh: rotated}, nil
}

// tokenErrorText extracts the error_description from an OAuth error
// response, falling back to the raw body.
func tokenErrorText(raw []byte) string {
	var body struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Description != "" {
			return body.Description
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
