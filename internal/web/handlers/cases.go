package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/logging"
)

// RebuildScheduler starts an asynchronous embedding store rebuild.
type RebuildScheduler interface {
	Schedule(ctx context.Context)
}

// CasesHandler handles case intake and lifecycle endpoints.
type CasesHandler struct {
	cases     database.CaseWriter
	rebuilder RebuildScheduler // nil when no embedding service is configured
	logger    *slog.Logger
}

// NewCasesHandler creates a new cases handler.
func NewCasesHandler(cases database.CaseWriter, rebuilder RebuildScheduler, logger *slog.Logger) *CasesHandler {
	return &CasesHandler{
		cases:     cases,
		rebuilder: rebuilder,
		logger:    logging.NewComponentLogger(logger, "web.cases"),
	}
}

// CaseResponse represents a case in API responses.
type CaseResponse struct {
	CaseID       string    `json:"case_id"`
	Name         string    `json:"name"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toCaseResponse(c database.Case) CaseResponse {
	return CaseResponse{
		CaseID:       c.CaseID,
		Name:         c.Name,
		ContactPhone: c.ContactPhone,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
	}
}

// Create opens a case from a multipart form with name, contactPhone,
// features and up to constants.MaxPhotosPerCase photos.
func (h *CasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return
	}

	intake := database.CaseIntake{
		Name:         formValue(r, "name", "childName"),
		ContactPhone: formValue(r, "contactPhone", "parentPhone"),
		Features:     formValue(r, "features", "distinguishingFeatures"),
	}
	if intake.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	files := formFiles(r, "photos")
	if len(files) > constants.MaxPhotosPerCase {
		respondError(w, http.StatusBadRequest, "too many photos")
		return
	}
	for _, fh := range files {
		data, err := readFormFile(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable photo")
			return
		}
		if len(data) == 0 {
			continue
		}
		intake.Photos = append(intake.Photos, database.CasePhoto{Filename: fh.Filename, Data: data})
	}

	c, err := h.cases.CreateCase(r.Context(), intake)
	if err != nil {
		h.logger.Error("create case failed", logging.FieldIdentity, sanitizeForLog(intake.Name), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create case")
		return
	}

	h.logger.Info("case opened",
		logging.FieldCaseID, c.CaseID,
		logging.FieldIdentity, sanitizeForLog(c.Name),
		"photos", len(intake.Photos))
	if len(intake.Photos) > 0 {
		h.scheduleRebuild(r)
	}
	respondJSON(w, http.StatusCreated, toCaseResponse(*c))
}

// List returns cases, optionally filtered by ?status=open|closed.
func (h *CasesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := database.CaseStatus(r.URL.Query().Get("status"))
	switch status {
	case "", database.CaseOpen, database.CaseClosed:
	default:
		respondError(w, http.StatusBadRequest, "status must be open or closed")
		return
	}

	cases, err := h.cases.ListCases(r.Context(), status)
	if err != nil {
		h.logger.Error("list cases failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}

	result := make([]CaseResponse, len(cases))
	for i, c := range cases {
		result[i] = toCaseResponse(c)
	}
	respondJSON(w, http.StatusOK, result)
}

// Close marks an open case closed.
func (h *CasesHandler) Close(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	if caseID == "" {
		respondError(w, http.StatusBadRequest, "case id is required")
		return
	}

	closed, err := h.cases.CloseCase(r.Context(), caseID)
	if err != nil {
		h.logger.Error("close case failed", logging.FieldCaseID, sanitizeForLog(caseID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to close case")
		return
	}
	if !closed {
		respondError(w, http.StatusNotFound, "open case not found")
		return
	}

	h.logger.Info("case closed", logging.FieldCaseID, caseID)
	h.scheduleRebuild(r)
	respondJSON(w, http.StatusOK, map[string]any{"case_id": caseID, "status": database.CaseClosed})
}

// scheduleRebuild refreshes the embedding store so the change reaches the
// biometric channel. The rebuild outlives the request.
func (h *CasesHandler) scheduleRebuild(r *http.Request) {
	if h.rebuilder == nil {
		return
	}
	h.rebuilder.Schedule(context.WithoutCancel(r.Context()))
}
