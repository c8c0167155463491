// Package model contains the domain types shared across all layers.
package model

import "time"

// Intake is a locally collected client intake record. SyncStatus,
// SyncError, and ExternalMatterID are mutated exclusively by the sync
// service; everything else is written once at collection time.
type Intake struct {
	ID          int64
	Link        string // Public identifier handed to clients; a UUID.
	UserID      string // Owning staff user; keys the Clio credentials.
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth string // ISO date as collected; not validated here.
	BenefitType string // Case type, e.g. "Asylum", "Family Visa".
	Reason      string // Free-text reason for the application.
	Summary     string // Generated case summary attached as a matter note.

	SyncStatus       SyncStatus
	SyncError        string // Human-readable failure reason; empty unless failed.
	ExternalMatterID string // Clio matter id; recorded once the matter step has succeeded.

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins the first and last name, tolerating either being empty.
func (i *Intake) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}

// ContactFields extracts the identifying fields used for contact
// reconciliation against the external system.
func (i *Intake) ContactFields() ContactFields {
	return ContactFields{
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Email:     i.Email,
		Phone:     i.Phone,
	}
}
