package clio_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clioadapter "github.com/ericfisherdev/intakesync/internal/adapter/driven/clio"
	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// fakeCredStore implements driven.CredentialStore in memory, recording
// Update calls.
type fakeCredStore struct {
	mu      sync.Mutex
	creds   map[string]model.Credential
	updates int
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{creds: map[string]model.Credential{}}
}

func (s *fakeCredStore) Get(_ context.Context, userID string) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[userID]
	if !ok {
		return model.Credential{}, driven.ErrUserNotFound
	}
	return cred, nil
}

func (s *fakeCredStore) Save(_ context.Context, userID, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred := s.creds[userID]
	cred.UserID = userID
	cred.AccessToken = access
	if refresh != "" {
		cred.RefreshToken = refresh
	}
	s.creds[userID] = cred
	return nil
}

func (s *fakeCredStore) Update(_ context.Context, userID, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[userID]
	if !ok {
		return driven.ErrUserNotFound
	}
	s.updates++
	cred.AccessToken = access
	if refresh != "" {
		cred.RefreshToken = refresh
	}
	s.creds[userID] = cred
	return nil
}

func (s *fakeCredStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, userID)
	return nil
}

func (s *fakeCredStore) get(userID string) model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds[userID]
}

func newTestRefresher(t *testing.T, handler http.Handler, store driven.CredentialStore) *clioadapter.Refresher {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return clioadapter.NewRefresherWithHTTPClient(
		server.Client(),
		server.URL,
		"client-id",
		"client-secret",
		"https://example.com/callback",
		store,
	)
}

func TestRefresher_MissingRefreshToken(t *testing.T) {
	var requests int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { requests++ })

	refresher := newTestRefresher(t, handler, newFakeCredStore())

	_, _, err := refresher.Refresh(context.Background(), "user-1", "")
	assert.ErrorIs(t, err, driven.ErrMissingCredential)
	assert.Zero(t, requests, "fails fast, no token endpoint call")
}

func TestRefresher_Success(t *testing.T) {
	store := newFakeCredStore()
	store.creds["user-1"] = model.Credential{UserID: "user-1", AccessToken: "old-access", RefreshToken: "old-refresh"}

	var form map[string]string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
			"refresh_token": r.PostFormValue("refresh_token"),
		}
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`))
	})

	refresher := newTestRefresher(t, handler, store)

	token, rotated, err := refresher.Refresh(context.Background(), "user-1", "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, "new-refresh", rotated, "rotated token is handed back for further refreshes")

	assert.Equal(t, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     "client-id",
		"client_secret": "client-secret",
		"redirect_uri":  "https://example.com/callback",
		"refresh_token": "old-refresh",
	}, form)

	cred := store.get("user-1")
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "new-refresh", cred.RefreshToken, "rotated refresh token is persisted")
}

func TestRefresher_NoRotationKeepsRefreshToken(t *testing.T) {
	store := newFakeCredStore()
	store.creds["user-1"] = model.Credential{UserID: "user-1", RefreshToken: "old-refresh"}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access"}`))
	})

	refresher := newTestRefresher(t, handler, store)

	token, refresh, err := refresher.Refresh(context.Background(), "user-1", "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, "old-refresh", refresh, "without rotation the original token stays usable")

	cred := store.get("user-1")
	assert.Equal(t, "old-refresh", cred.RefreshToken, "provider omitted rotation; stored token stays")
}

func TestRefresher_Rejected(t *testing.T) {
	store := newFakeCredStore()
	store.creds["user-1"] = model.Credential{UserID: "user-1", AccessToken: "old-access", RefreshToken: "old-refresh"}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	})

	refresher := newTestRefresher(t, handler, store)

	_, _, err := refresher.Refresh(context.Background(), "user-1", "old-refresh")
	var rejected *driven.RefreshRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Equal(t, "refresh token revoked", rejected.Message)

	cred := store.get("user-1")
	assert.Equal(t, "old-access", cred.AccessToken, "store untouched on rejection")
}

func TestRefresher_MissingAccessTokenInResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	})

	refresher := newTestRefresher(t, handler, newFakeCredStore())

	_, _, err := refresher.Refresh(context.Background(), "user-1", "old-refresh")
	var invalid *driven.InvalidRemoteResponseError
	require.ErrorAs(t, err, &invalid)
}

func TestRefresher_UserDeletedDuringRefresh(t *testing.T) {
	// Store has no row, simulating an account deleted mid-refresh.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access"}`))
	})

	refresher := newTestRefresher(t, handler, newFakeCredStore())

	_, _, err := refresher.Refresh(context.Background(), "ghost", "old-refresh")
	assert.ErrorIs(t, err, driven.ErrUserNotFound)
}

func TestRefresher_SingleFlightPerUser(t *testing.T) {
	store := newFakeCredStore()
	store.creds["user-1"] = model.Credential{UserID: "user-1", RefreshToken: "old-refresh"}

	var requests atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte(`{"access_token":"new-access"}`))
	})

	refresher := newTestRefresher(t, handler, store)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], _, errs[i] = refresher.Refresh(context.Background(), "user-1", "old-refresh")
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", tokens[i])
	}
	assert.Equal(t, int32(1), requests.Load(), "concurrent refreshes for one user collapse into a single exchange")
}
