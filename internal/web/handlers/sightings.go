package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/embedder"
	"github.com/kozaktomas/sightmatch/internal/logging"
	"github.com/kozaktomas/sightmatch/internal/resolution"
)

// Resolver decides sighting reports.
type Resolver interface {
	Resolve(ctx context.Context, report resolution.Report) (*resolution.Verdict, error)
}

// SightingsHandler handles sighting intake and listing.
type SightingsHandler struct {
	resolver  Resolver
	embedder  embedder.FaceEmbedder // nil when no embedding service is configured
	sightings database.SightingLister
	logger    *slog.Logger
}

// NewSightingsHandler creates a new sightings handler.
func NewSightingsHandler(resolver Resolver, emb embedder.FaceEmbedder, sightings database.SightingLister, logger *slog.Logger) *SightingsHandler {
	return &SightingsHandler{
		resolver:  resolver,
		embedder:  emb,
		sightings: sightings,
		logger:    logging.NewComponentLogger(logger, "web.sightings"),
	}
}

// SightingResponse represents a persisted sighting in API responses.
type SightingResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name,omitempty"`
	Location      string    `json:"location"`
	ReporterName  string    `json:"reporter_name"`
	ReporterPhone string    `json:"reporter_phone"`
	Details       string    `json:"details,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Report resolves a sighting from a multipart form with an optional photo,
// details, name, reporterName, reporterPhone and location.
func (h *SightingsHandler) Report(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidForm)
		return
	}

	report := resolution.Report{
		Details:       formValue(r, "details"),
		ClaimedName:   formValue(r, "name", "childName"),
		Location:      formValue(r, "location"),
		ReporterName:  formValue(r, "reporterName"),
		ReporterPhone: formValue(r, "reporterPhone"),
	}

	var photo []byte
	files := formFiles(r, "photo")
	if len(files) == 0 {
		files = formFiles(r, "foundPhoto")
	}
	if len(files) > 0 {
		data, err := readFormFile(files[0])
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable photo")
			return
		}
		photo = data
	}

	if len(photo) == 0 && report.Details == "" {
		respondError(w, http.StatusBadRequest, "photo or details required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.ResolveTimeout)
	defer cancel()

	if len(photo) > 0 && h.embedder == nil {
		h.logger.Warn("photo ignored, no face embedding service configured")
	} else if len(photo) > 0 {
		vec, err := h.embedder.FaceEmbedding(ctx, photo)
		switch {
		case errors.Is(err, embedder.ErrNoFace):
			h.logger.Info("no face in sighting photo")
		case err != nil:
			h.logger.Error("face embedding failed", "error", err)
			respondError(w, http.StatusBadGateway, "face embedding service unavailable")
			return
		default:
			report.Embedding = vec
		}
	}

	verdict, err := h.resolver.Resolve(ctx, report)
	if err != nil {
		h.logger.Error("resolve sighting failed", "error", err)
		if resolution.IsCollaboratorFailure(err) {
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve sighting")
		return
	}

	respondJSON(w, http.StatusOK, verdict)
}

// List returns recent sightings, newest first. ?limit= caps the result.
func (h *SightingsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultSightingsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.MaxSightingsLimit)
	}

	sightings, err := h.sightings.ListSightings(r.Context(), limit)
	if err != nil {
		h.logger.Error("list sightings failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sightings")
		return
	}

	result := make([]SightingResponse, len(sightings))
	for i, s := range sightings {
		result[i] = SightingResponse{
			ID:            s.ID,
			Name:          s.Name,
			Location:      s.Location,
			ReporterName:  s.ReporterName,
			ReporterPhone: s.ReporterPhone,
			Details:       s.Details,
			CreatedAt:     s.CreatedAt,
		}
	}
	respondJSON(w, http.StatusOK, result)
}
