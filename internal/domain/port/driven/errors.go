package driven

import (
	"errors"
	"fmt"
)

// Sentinel errors for credential and authorization failures.
var (
	// ErrMissingCredential is returned by the token refresher when no
	// refresh token is available to exchange.
	ErrMissingCredential = errors.New("no refresh token on file")

	// ErrMissingAuthorization is returned by the sync service when the
	// owning user has never completed the Clio authorization flow. An
	// access token alone is not sufficient evidence of a usable session.
	ErrMissingAuthorization = errors.New("clio not authorized: run the authorization flow first")

	// ErrAuthExpired is returned when a request hit a 401 and the
	// follow-up token refresh also failed.
	ErrAuthExpired = errors.New("clio authorization expired")

	// ErrUserNotFound is returned by the credential store when the user
	// row disappeared between read and write (race with account deletion).
	ErrUserNotFound = errors.New("user not found")

	// ErrIntakeNotFound is returned by the intake store for an unknown link.
	ErrIntakeNotFound = errors.New("intake not found")
)

// ValidationError reports required local data missing before any network
// call is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid intake data: %s: %s", e.Field, e.Reason)
}

// RemoteError is a terminal non-2xx response from Clio other than a 401.
// It carries the provider-supplied error text for the failure reason
// persisted on the record.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("clio rejected request: status %d", e.StatusCode)
	}
	return fmt.Sprintf("clio rejected request: status %d: %s", e.StatusCode, e.Message)
}

// RefreshRejectedError is a non-success response from the token endpoint.
// The credential store is left untouched when this is returned.
type RefreshRejectedError struct {
	StatusCode int
	Message    string
}

func (e *RefreshRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("token refresh rejected: status %d", e.StatusCode)
	}
	return fmt.Sprintf("token refresh rejected: status %d: %s", e.StatusCode, e.Message)
}

// RetryExhaustedError is returned when the bounded attempt budget ran out.
// It wraps the last underlying transport or status error.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// InvalidRemoteResponseError indicates Clio violated its own contract,
// e.g. a create succeeded but the response carried no id. Logged
// distinctly from ordinary failures so it can be alerted on.
type InvalidRemoteResponseError struct {
	Operation string
	Detail    string
}

func (e *InvalidRemoteResponseError) Error() string {
	return fmt.Sprintf("unexpected clio response in %s: %s", e.Operation, e.Detail)
}

// TransientError marks a failure the caller may treat as retryable or
// ignorable by policy, e.g. a contact search that failed over the network.
// The contact reconciler logs these and falls through to create.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
