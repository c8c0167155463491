package clio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// documentMetadata is the JSON part of a multipart document upload.
type documentMetadata struct {
	Name     string       `json:"name"`
	Parent   parentRef    `json:"parent"`
	Category *categoryRef `json:"document_category,omitempty"`
}

type parentRef struct {
	ID   json.Number `json:"id"`
	Type string      `json:"type"`
}

type categoryRef struct {
	Name string `json:"name"`
}

// UploadDocument attaches a document to the matter via a multipart POST:
// a `data` part carrying metadata JSON and a `file` part carrying the
// bytes. The request body is rebuilt per attempt so a post-refresh retry
// sends the complete file again.
func (c *Client) UploadDocument(ctx context.Context, sess *model.Session, matterID string, doc model.Document) (string, error) {
	meta := documentMetadata{
		Name:   doc.Filename,
		Parent: parentRef{ID: json.Number(matterID), Type: "Matter"},
	}
	if doc.Category != "" {
		meta.Category = &categoryRef{Name: doc.Category}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal document metadata: %w", err)
	}

	raw, err := c.execute(ctx, sess, func(token string) (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		if err := w.WriteField("data", string(metaJSON)); err != nil {
			return nil, fmt.Errorf("write metadata part: %w", err)
		}

		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, doc.Filename))
		if doc.ContentType != "" {
			header.Set("Content-Type", doc.ContentType)
		}
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(doc.Data); err != nil {
			return nil, fmt.Errorf("write file part: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("finalize multipart body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents.json", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("upload document to matter %s: %w", matterID, err)
	}

	id, err := decodeID(raw)
	if err != nil {
		return "", &driven.InvalidRemoteResponseError{Operation: "upload document", Detail: "malformed response body"}
	}
	if id == "" {
		return "", &driven.InvalidRemoteResponseError{Operation: "upload document", Detail: "response missing document id"}
	}
	return id, nil
}
