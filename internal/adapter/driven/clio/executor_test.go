package clio_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clioadapter "github.com/ericfisherdev/intakesync/internal/adapter/driven/clio"
	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// fakeRefresher implements driven.TokenRefresher with a canned outcome.
// rotated, when set, replaces the refresh token on every exchange.
type fakeRefresher struct {
	mu       sync.Mutex
	token    string
	rotated  string
	err      error
	calls    int
	lastID   string
	received []string
}

func (f *fakeRefresher) Refresh(_ context.Context, userID, refreshToken string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = userID
	f.received = append(f.received, refreshToken)
	if f.err != nil {
		return "", "", f.err
	}
	refresh := refreshToken
	if f.rotated != "" {
		refresh = f.rotated
	}
	return f.token, refresh, nil
}

func (f *fakeRefresher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRefresher) receivedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

// newTestClient creates a Client backed by the given httptest handler with
// a zero-wait backoff policy.
func newTestClient(t *testing.T, handler http.Handler, refresher driven.TokenRefresher, opts ...clioadapter.Option) *clioadapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append(opts, clioadapter.WithBackOff(func() backoff.BackOff {
		return &backoff.ZeroBackOff{}
	}))
	return clioadapter.NewClientWithHTTPClient(server.Client(), server.URL, refresher, opts...)
}

func testSession() *model.Session {
	return &model.Session{UserID: "user-1", AccessToken: "stale-token", RefreshToken: "refresh-1"}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	refresher := &fakeRefresher{}

	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{"id":7}}`))
	})

	client := newTestClient(t, handler, refresher)
	sess := testSession()

	id, err := client.CreateContact(context.Background(), sess, model.ContactFields{FirstName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.Equal(t, "Bearer stale-token", gotAuth)
	assert.Zero(t, refresher.callCount(), "no refresh on a 2xx")
}

func TestExecute_401RefreshesAndRetriesOnce(t *testing.T) {
	refresher := &fakeRefresher{token: "fresh-token"}

	var auths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{"id":7}}`))
	})

	client := newTestClient(t, handler, refresher)
	sess := testSession()

	id, err := client.CreateContact(context.Background(), sess, model.ContactFields{FirstName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	// The identical request was retried exactly once with the new token,
	// and the session now carries it for subsequent calls.
	require.Equal(t, []string{"Bearer stale-token", "Bearer fresh-token"}, auths)
	assert.Equal(t, 1, refresher.callCount())
	assert.Equal(t, "fresh-token", sess.AccessToken)
}

func TestExecute_RotatedRefreshTokenCarriesIntoSession(t *testing.T) {
	// Every exchange rotates; a later 401 in the same pipeline must
	// refresh with the rotated token, not the invalidated original.
	refresher := &fakeRefresher{token: "still-rejected", rotated: "rotated-refresh"}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, handler, refresher, clioadapter.WithMaxAttempts(3))
	sess := testSession()

	_, err := client.CreateContact(context.Background(), sess, model.ContactFields{FirstName: "Jane"})
	require.Error(t, err)

	assert.Equal(t, []string{"refresh-1", "rotated-refresh", "rotated-refresh"}, refresher.receivedTokens())
	assert.Equal(t, "rotated-refresh", sess.RefreshToken)
}

func TestExecute_RefreshFailureIsTerminal(t *testing.T) {
	refresher := &fakeRefresher{err: &driven.RefreshRejectedError{StatusCode: 400, Message: "invalid_grant"}}

	var requests int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, handler, refresher)

	_, err := client.CreateContact(context.Background(), testSession(), model.ContactFields{FirstName: "Jane"})
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrAuthExpired)
	assert.Equal(t, 1, requests, "no retry after a failed refresh")
}

func TestExecute_Non401IsTerminal(t *testing.T) {
	refresher := &fakeRefresher{}

	var requests int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"type":"ValidationError","message":"last_name is invalid"}}`))
	})

	client := newTestClient(t, handler, refresher)

	_, err := client.CreateContact(context.Background(), testSession(), model.ContactFields{FirstName: "Jane"})
	require.Error(t, err)

	var remote *driven.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnprocessableEntity, remote.StatusCode)
	assert.Equal(t, "last_name is invalid", remote.Message)
	assert.Equal(t, 1, requests, "non-401 responses are never retried")
	assert.Zero(t, refresher.callCount())
}

func TestExecute_RetryBudgetExhausted(t *testing.T) {
	// Refresh keeps succeeding but the API keeps rejecting the token.
	refresher := &fakeRefresher{token: "still-rejected"}

	var requests int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, handler, refresher, clioadapter.WithMaxAttempts(3))

	_, err := client.CreateContact(context.Background(), testSession(), model.ContactFields{FirstName: "Jane"})
	require.Error(t, err)

	var exhausted *driven.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, requests)
}

func TestExecute_ContextCancelled(t *testing.T) {
	refresher := &fakeRefresher{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":1}}`))
	})

	client := newTestClient(t, handler, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CreateContact(ctx, testSession(), model.ContactFields{FirstName: "Jane"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
