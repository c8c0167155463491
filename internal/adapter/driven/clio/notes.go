package clio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
)

// CreateNote appends a free-text note to the matter.
func (c *Client) CreateNote(ctx context.Context, sess *model.Session, matterID, content string) error {
	payload := notePayload{
		Content: content,
		Matter:  matterRef{ID: json.Number(matterID)},
	}

	if _, err := c.doJSON(ctx, sess, http.MethodPost, "/notes.json", payload); err != nil {
		return fmt.Errorf("create note on matter %s: %w", matterID, err)
	}
	return nil
}
