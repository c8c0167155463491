package clio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// maxErrorBody bounds how much of a failed response is read for the error
// message persisted on the record.
const maxErrorBody = 4 << 10

// doJSON issues an authenticated JSON request through the resilient
// executor. payload, when non-nil, is wrapped in Clio's `data` envelope.
func (c *Client) doJSON(ctx context.Context, sess *model.Session, method, path string, payload any) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(dataEnvelope{Data: payload})
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s payload: %w", method, path, err)
		}
	}

	return c.execute(ctx, sess, func(token string) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
}

// execute runs one logical API call with the resilient retry policy:
//
//   - the request is rebuilt each attempt with the session's current
//     access token;
//   - a 401 triggers a token refresh and a retry of the identical request,
//     with the refreshed token pair written back into sess;
//   - a failed refresh is terminal (ErrAuthExpired);
//   - any other non-2xx status is terminal (RemoteError), not retried;
//   - transport errors and timeouts are terminal for this request;
//   - the attempt budget is bounded; exhausting it returns
//     RetryExhaustedError wrapping the last auth failure.
func (c *Client) execute(ctx context.Context, sess *model.Session, build func(token string) (*http.Request, error)) (json.RawMessage, error) {
	bo := c.newBackOff()
	var last error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := build(sess.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
		}

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%s %s: read response: %w", req.Method, req.URL.Path, readErr)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return raw, nil

		case resp.StatusCode == http.StatusUnauthorized:
			slog.Info("clio request unauthorized, refreshing token",
				"method", req.Method,
				"path", req.URL.Path,
				"attempt", attempt,
			)

			access, refresh, refreshErr := c.refresher.Refresh(ctx, sess.UserID, sess.RefreshToken)
			if refreshErr != nil {
				return nil, fmt.Errorf("%w: %w", driven.ErrAuthExpired, refreshErr)
			}
			// Thread both tokens: a rotated refresh token must be used
			// for any further 401 in this pipeline.
			sess.AccessToken = access
			sess.RefreshToken = refresh
			last = fmt.Errorf("%s %s: status 401 after token refresh", req.Method, req.URL.Path)

		default:
			return nil, &driven.RemoteError{
				StatusCode: resp.StatusCode,
				Message:    providerErrorText(raw),
			}
		}

		if attempt < c.maxAttempts {
			if err := sleepBackOff(ctx, bo.NextBackOff()); err != nil {
				return nil, err
			}
		}
	}

	return nil, &driven.RetryExhaustedError{Attempts: c.maxAttempts, Last: last}
}

// sleepBackOff waits for the next attempt, respecting context cancellation.
// A negative duration (backoff.Stop) is treated as no wait so the attempt
// budget, not the wait policy, ends the loop.
func sleepBackOff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// providerErrorText extracts a human-readable message from a Clio error
// body, falling back to the raw (truncated) body when it is not the
// documented shape.
func providerErrorText(raw []byte) string {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}

	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return string(bytes.TrimSpace(raw))
}
