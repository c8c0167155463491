package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/intakesync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CreateIntakeRequest is the JSON body for the create intake endpoint.
type CreateIntakeRequest struct {
	UserID      string `json:"user_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
	BenefitType string `json:"benefit_type"`
	Reason      string `json:"reason"`
	Summary     string `json:"summary"`
}

// SyncRequest is the JSON body for the sync endpoint.
type SyncRequest struct {
	Resync bool `json:"resync"`
}

// IntakeResponse is the JSON representation of an intake record.
type IntakeResponse struct {
	Link             string `json:"link"`
	UserID           string `json:"user_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	DateOfBirth      string `json:"date_of_birth"`
	BenefitType      string `json:"benefit_type"`
	Reason           string `json:"reason"`
	Summary          string `json:"summary"`
	SyncStatus       string `json:"sync_status"`
	SyncError        string `json:"sync_error,omitempty"`
	ExternalMatterID string `json:"external_matter_id,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SyncResponse is the JSON representation of a sync outcome.
type SyncResponse struct {
	Ok            bool   `json:"ok"`
	AlreadySynced bool   `json:"already_synced"`
	MatterID      string `json:"matter_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// DocumentResponse is the JSON representation of an attached document.
type DocumentResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// ClioStatusResponse reports whether a usable Clio session is on file.
type ClioStatusResponse struct {
	IsConnected bool `json:"is_connected"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// toIntakeResponse converts a domain Intake to its JSON representation.
func toIntakeResponse(intake *model.Intake) IntakeResponse {
	return IntakeResponse{
		Link:             intake.Link,
		UserID:           intake.UserID,
		FirstName:        intake.FirstName,
		LastName:         intake.LastName,
		Email:            intake.Email,
		Phone:            intake.Phone,
		DateOfBirth:      intake.DateOfBirth,
		BenefitType:      intake.BenefitType,
		Reason:           intake.Reason,
		Summary:          intake.Summary,
		SyncStatus:       string(intake.SyncStatus),
		SyncError:        intake.SyncError,
		ExternalMatterID: intake.ExternalMatterID,
		CreatedAt:        intake.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        intake.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toSyncResponse converts a domain SyncResult to its JSON representation.
func toSyncResponse(result model.SyncResult) SyncResponse {
	return SyncResponse{
		Ok:            result.Ok,
		AlreadySynced: result.AlreadySynced,
		MatterID:      result.MatterID,
		Reason:        result.Reason,
	}
}
