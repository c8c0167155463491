package model

import "time"

// ContactFields are the identifying fields sent to Clio when creating or
// updating a contact. Reconciliation keys on Email; Clio requires at least
// a name to create a Person contact.
type ContactFields struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// HasName reports whether the fields carry enough identity to create a
// contact remotely.
func (f ContactFields) HasName() bool {
	return f.FirstName != "" || f.LastName != ""
}

// ContactMatch is a contact returned by the remote search endpoint.
// The id is a loose cached mapping, never authoritative; callers re-resolve
// by search before every create/update because contacts may be edited
// outside this system.
type ContactMatch struct {
	ID   string
	Name string
}

// NewMatter carries the fields for creating or updating a Clio matter.
type NewMatter struct {
	ContactID   string
	DisplayName string
	Description string
	OpenDate    time.Time // Stamped at call time; serialized as a UTC date.
}

// Document is a file attached to an existing matter.
type Document struct {
	Filename    string
	ContentType string
	Category    string
	Data        []byte
}
