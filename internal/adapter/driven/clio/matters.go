package clio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// CreateMatter creates an open matter linked to the given contact and
// returns its id. The open date is serialized as a UTC calendar date.
func (c *Client) CreateMatter(ctx context.Context, sess *model.Session, m model.NewMatter) (string, error) {
	payload := matterPayload{
		Client:      &clientRef{ID: json.Number(m.ContactID)},
		Status:      "Open",
		DisplayName: m.DisplayName,
		Description: m.Description,
		OpenDate:    m.OpenDate.UTC().Format("2006-01-02"),
	}

	raw, err := c.doJSON(ctx, sess, http.MethodPost, "/matters.json", payload)
	if err != nil {
		return "", fmt.Errorf("create matter: %w", err)
	}

	id, err := decodeID(raw)
	if err != nil {
		return "", &driven.InvalidRemoteResponseError{Operation: "create matter", Detail: "malformed response body"}
	}
	if id == "" {
		return "", &driven.InvalidRemoteResponseError{Operation: "create matter", Detail: "response missing matter id"}
	}
	return id, nil
}

// UpdateMatter patches an existing matter's display name and description.
// Used by the update-matter resync policy; status and client linkage are
// left untouched.
func (c *Client) UpdateMatter(ctx context.Context, sess *model.Session, matterID string, m model.NewMatter) (string, error) {
	payload := matterPayload{
		DisplayName: m.DisplayName,
		Description: m.Description,
	}

	raw, err := c.doJSON(ctx, sess, http.MethodPatch, "/matters/"+matterID+".json", payload)
	if err != nil {
		return "", fmt.Errorf("update matter %s: %w", matterID, err)
	}

	id, err := decodeID(raw)
	if err != nil || id == "" {
		return matterID, nil
	}
	return id, nil
}
