package clio

import "encoding/json"

// dataEnvelope wraps request payloads in Clio's nested `data` object.
type dataEnvelope struct {
	Data any `json:"data"`
}

// emailAddress is one entry in a contact's email_addresses collection.
type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// phoneNumber is one entry in a contact's phone_numbers collection.
type phoneNumber struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// contactPayload is the Person contact body for create and update.
type contactPayload struct {
	Type           string         `json:"type"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	EmailAddresses []emailAddress `json:"email_addresses"`
	PhoneNumbers   []phoneNumber  `json:"phone_numbers"`
}

// clientRef links a matter to its contact.
type clientRef struct {
	ID json.Number `json:"id"`
}

// matterPayload is the matter body for create and update.
type matterPayload struct {
	Client      *clientRef `json:"client,omitempty"`
	Status      string     `json:"status,omitempty"`
	DisplayName string     `json:"display_number,omitempty"`
	Description string     `json:"description,omitempty"`
	OpenDate    string     `json:"open_date,omitempty"`
}

// matterRef links a note to its matter.
type matterRef struct {
	ID json.Number `json:"id"`
}

// notePayload is the note body.
type notePayload struct {
	Content string    `json:"content"`
	Matter  matterRef `json:"matter"`
}

// idResource decodes any single created/updated resource down to its id.
type idResource struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

// decodeID unwraps a `data` envelope and returns the resource id as a
// string, empty when the response carried none.
func decodeID(raw json.RawMessage) (string, error) {
	var body struct {
		Data idResource `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	return body.Data.ID.String(), nil
}
