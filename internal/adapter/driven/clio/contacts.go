package clio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// SearchContactByEmail looks up contacts matching the email exactly.
// Failures other than an unrecoverable auth expiry come back wrapped in
// TransientError: the reconciler treats those as "no match found" and
// falls through to create rather than blocking the sync.
func (c *Client) SearchContactByEmail(ctx context.Context, sess *model.Session, email string) ([]model.ContactMatch, error) {
	path := "/contacts.json?query=" + url.QueryEscape(email)

	raw, err := c.doJSON(ctx, sess, http.MethodGet, path, nil)
	if err != nil {
		if errors.Is(err, driven.ErrAuthExpired) {
			return nil, err
		}
		return nil, &driven.TransientError{Err: fmt.Errorf("contact search: %w", err)}
	}

	var body struct {
		Data []idResource `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &driven.TransientError{Err: fmt.Errorf("contact search: decode response: %w", err)}
	}

	matches := make([]model.ContactMatch, 0, len(body.Data))
	for _, d := range body.Data {
		if d.ID.String() == "" {
			continue
		}
		matches = append(matches, model.ContactMatch{ID: d.ID.String(), Name: d.Name})
	}
	return matches, nil
}

// CreateContact creates a Person contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, sess *model.Session, fields model.ContactFields) (string, error) {
	raw, err := c.doJSON(ctx, sess, http.MethodPost, "/contacts.json", contactBody(fields))
	if err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}

	id, err := decodeID(raw)
	if err != nil {
		return "", &driven.InvalidRemoteResponseError{Operation: "create contact", Detail: "malformed response body"}
	}
	if id == "" {
		return "", &driven.InvalidRemoteResponseError{Operation: "create contact", Detail: "response missing contact id"}
	}
	return id, nil
}

// UpdateContact replaces the contact's fields in full and returns its id.
func (c *Client) UpdateContact(ctx context.Context, sess *model.Session, contactID string, fields model.ContactFields) (string, error) {
	raw, err := c.doJSON(ctx, sess, http.MethodPut, "/contacts/"+contactID+".json", contactBody(fields))
	if err != nil {
		return "", fmt.Errorf("update contact %s: %w", contactID, err)
	}

	id, err := decodeID(raw)
	if err != nil || id == "" {
		// An update response without an id is tolerated; the caller
		// already holds the id it updated.
		return contactID, nil
	}
	return id, nil
}

func contactBody(fields model.ContactFields) contactPayload {
	p := contactPayload{
		Type:           "Person",
		FirstName:      fields.FirstName,
		LastName:       fields.LastName,
		EmailAddresses: []emailAddress{},
		PhoneNumbers:   []phoneNumber{},
	}
	if fields.Email != "" {
		p.EmailAddresses = append(p.EmailAddresses, emailAddress{Name: "Work", Address: fields.Email})
	}
	if fields.Phone != "" {
		p.PhoneNumbers = append(p.PhoneNumbers, phoneNumber{Name: "Work", Number: fields.Phone})
	}
	return p
}
