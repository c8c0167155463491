// Package httphandler is the HTTP driving adapter serving the JSON API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ericfisherdev/intakesync/internal/application"
	"github.com/ericfisherdev/intakesync/internal/domain/model"
	"github.com/ericfisherdev/intakesync/internal/domain/port/driven"
)

// maxUploadBytes bounds document uploads held in memory.
const maxUploadBytes = 25 << 20

// Handler is the HTTP driving adapter.
type Handler struct {
	intakeStore driven.IntakeStore
	syncSvc     *application.SyncService
	authSvc     *application.AuthService
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	intakeStore driven.IntakeStore,
	syncSvc *application.SyncService,
	authSvc *application.AuthService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		intakeStore: intakeStore,
		syncSvc:     syncSvc,
		authSvc:     authSvc,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/intakes", h.CreateIntake)
	mux.HandleFunc("GET /api/v1/intakes/{link}", h.GetIntake)
	mux.HandleFunc("POST /api/v1/intakes/{link}/sync", h.SyncIntake)
	mux.HandleFunc("POST /api/v1/matters/{id}/documents", h.AttachDocument)
	mux.HandleFunc("GET /api/v1/clio/status", h.ClioStatus)
	mux.HandleFunc("DELETE /api/v1/clio/credentials", h.DisconnectClio)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CreateIntake stores a new intake record and returns its public link.
func (h *Handler) CreateIntake(w http.ResponseWriter, r *http.Request) {
	var req CreateIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	intake := &model.Intake{
		Link:        uuid.NewString(),
		UserID:      req.UserID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		BenefitType: req.BenefitType,
		Reason:      req.Reason,
		Summary:     req.Summary,
		SyncStatus:  model.SyncStatusNotSynced,
	}

	if err := h.intakeStore.Create(r.Context(), intake); err != nil {
		h.logger.Error("failed to create intake", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toIntakeResponse(intake))
}

// GetIntake returns a single intake record by its public link.
func (h *Handler) GetIntake(w http.ResponseWriter, r *http.Request) {
	link := r.PathValue("link")

	intake, err := h.intakeStore.GetByLink(r.Context(), link)
	if errors.Is(err, driven.ErrIntakeNotFound) {
		writeError(w, http.StatusNotFound, "intake not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get intake", "link", link, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toIntakeResponse(intake))
}

// SyncIntake pushes the intake into Clio.
func (h *Handler) SyncIntake(w http.ResponseWriter, r *http.Request) {
	link := r.PathValue("link")

	var req SyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.syncSvc.Sync(r.Context(), link, req.Resync)
	if err != nil {
		h.writeSyncError(w, link, result, err)
		return
	}

	if !result.Ok {
		// Lost the per-record lease to a concurrent sync.
		writeJSON(w, http.StatusConflict, toSyncResponse(result))
		return
	}

	writeJSON(w, http.StatusOK, toSyncResponse(result))
}

// AttachDocument uploads one multipart file to an existing matter.
// Expected parts: "file" (required), "user_id" and "category" fields.
func (h *Handler) AttachDocument(w http.ResponseWriter, r *http.Request) {
	matterID := r.PathValue("id")

	// MaxBytesReader makes an oversized body fail the multipart parse
	// instead of being read truncated.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	doc := model.Document{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Category:    r.FormValue("category"),
		Data:        data,
	}

	docID, err := h.syncSvc.AttachDocument(r.Context(), userID, matterID, doc)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, DocumentResponse{DocumentID: docID, Filename: doc.Filename})
}

// ClioStatus reports whether the given user has a usable Clio session.
func (h *Handler) ClioStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	ok, err := h.authSvc.IsAuthorized(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to check clio status", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ClioStatusResponse{IsConnected: ok})
}

// DisconnectClio removes the user's stored Clio credentials.
func (h *Handler) DisconnectClio(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.authSvc.Disconnect(r.Context(), userID); err != nil {
		h.logger.Error("failed to disconnect clio", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// writeSyncError maps sync failures onto HTTP statuses, keeping the
// persisted failure reason in the response body.
func (h *Handler) writeSyncError(w http.ResponseWriter, link string, result model.SyncResult, err error) {
	h.logger.Error("sync failed", "link", link, "error", err)

	resp := toSyncResponse(result)
	if resp.Reason == "" {
		resp.Reason = err.Error()
	}

	writeJSON(w, syncErrorStatus(err), resp)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validation *driven.ValidationError
	switch {
	case errors.Is(err, driven.ErrMissingAuthorization):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func syncErrorStatus(err error) int {
	var validation *driven.ValidationError
	switch {
	case errors.Is(err, driven.ErrIntakeNotFound):
		return http.StatusNotFound
	case errors.Is(err, driven.ErrMissingAuthorization), errors.Is(err, driven.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
