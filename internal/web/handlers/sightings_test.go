package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/database/mock"
	"github.com/kozaktomas/sightmatch/internal/embedder"
	"github.com/kozaktomas/sightmatch/internal/notify"
	"github.com/kozaktomas/sightmatch/internal/resolution"
)

type stubResolver struct {
	reports []resolution.Report
	verdict *resolution.Verdict
	err     error
}

func (s *stubResolver) Resolve(_ context.Context, r resolution.Report) (*resolution.Verdict, error) {
	s.reports = append(s.reports, r)
	if s.err != nil {
		return nil, s.err
	}
	if s.verdict != nil {
		return s.verdict, nil
	}
	return &resolution.Verdict{Method: resolution.MethodNone}, nil
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) FaceEmbedding(context.Context, []byte) ([]float32, error) {
	return s.vec, s.err
}

type countingSender struct {
	sent int
}

func (s *countingSender) NotifyMatch(context.Context, notify.Match) (bool, error) {
	s.sent++
	return true, nil
}

func TestSightingsHandler_Report_PassesFields(t *testing.T) {
	res := &stubResolver{}
	h := NewSightingsHandler(res, stubEmbedder{vec: []float32{1, 0}}, mock.NewMockRegistry(), nil)

	req := multipartRequest(t, http.MethodPost, "/api/v1/sightings",
		map[string]string{
			"details":       "child with a mole on the left cheek",
			"childName":     "Alice",
			"reporterName":  "Ravi",
			"reporterPhone": "9123456780",
			"location":      "Central Station",
		},
		formFile{"foundPhoto", "found.jpg", []byte("jpeg")},
	)
	recorder := httptest.NewRecorder()
	h.Report(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if len(res.reports) != 1 {
		t.Fatalf("expected one resolution, got %d", len(res.reports))
	}
	got := res.reports[0]
	if got.ClaimedName != "Alice" || got.Location != "Central Station" || got.ReporterName != "Ravi" ||
		got.ReporterPhone != "9123456780" || got.Details != "child with a mole on the left cheek" {
		t.Errorf("unexpected report: %+v", got)
	}
	if len(got.Embedding) != 2 {
		t.Errorf("expected embedding from photo, got %v", got.Embedding)
	}
}

func TestSightingsHandler_Report_Embedding(t *testing.T) {
	tests := []struct {
		name      string
		embedder  embedder.FaceEmbedder
		wantCode  int
		wantEmbed bool
	}{
		{"face found", stubEmbedder{vec: []float32{1}}, http.StatusOK, true},
		{"no face", stubEmbedder{err: embedder.ErrNoFace}, http.StatusOK, false},
		{"no service configured", nil, http.StatusOK, false},
		{"service down", stubEmbedder{err: errors.New("connection refused")}, http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &stubResolver{}
			h := NewSightingsHandler(res, tt.embedder, mock.NewMockRegistry(), nil)

			req := multipartRequest(t, http.MethodPost, "/api/v1/sightings", nil,
				formFile{"photo", "p.jpg", []byte("jpeg")})
			recorder := httptest.NewRecorder()
			h.Report(recorder, req)

			assertStatusCode(t, recorder, tt.wantCode)
			if tt.wantCode != http.StatusOK {
				if len(res.reports) != 0 {
					t.Error("resolver must not run when embedding failed")
				}
				return
			}
			if len(res.reports) != 1 {
				t.Fatalf("expected one resolution, got %d", len(res.reports))
			}
			if has := len(res.reports[0].Embedding) > 0; has != tt.wantEmbed {
				t.Errorf("embedding present = %v, want %v", has, tt.wantEmbed)
			}
		})
	}
}

func TestSightingsHandler_Report_RequiresPhotoOrDetails(t *testing.T) {
	h := NewSightingsHandler(&stubResolver{}, nil, mock.NewMockRegistry(), nil)
	recorder := httptest.NewRecorder()
	h.Report(recorder, multipartRequest(t, http.MethodPost, "/api/v1/sightings",
		map[string]string{"location": "Park"}))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "photo or details required")
}

func TestSightingsHandler_Report_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"collaborator failure", &resolution.CollaboratorError{Op: "load contact", Err: errors.New("db down")}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSightingsHandler(&stubResolver{err: tt.err}, nil, mock.NewMockRegistry(), nil)
			recorder := httptest.NewRecorder()
			h.Report(recorder, multipartRequest(t, http.MethodPost, "/api/v1/sightings",
				map[string]string{"details": "mole on cheek"}))
			assertStatusCode(t, recorder, tt.wantCode)
		})
	}
}

func TestSightingsHandler_Report_EndToEnd(t *testing.T) {
	reg := mock.NewMockRegistry()
	reg.AddCase("Alice", "9876543210", "has a mole on the left cheek")
	sender := &countingSender{}
	orch, err := resolution.New(resolution.Deps{
		Registry:   reg,
		Embeddings: mock.NewMockEmbeddingStore(map[string][]float32{"Alice": {1, 0}}),
		Recorder:   reg,
		Sender:     sender,
	}, config.DefaultPolicy(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := NewSightingsHandler(orch, stubEmbedder{vec: []float32{1, 0}}, reg, nil)

	req := multipartRequest(t, http.MethodPost, "/api/v1/sightings",
		map[string]string{
			"details":       "she has a mole on the left cheek",
			"reporterName":  "Ravi",
			"reporterPhone": "9123456780",
			"location":      "Central Station",
		},
		formFile{"photo", "found.jpg", []byte("jpeg")},
	)
	recorder := httptest.NewRecorder()
	h.Report(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var v resolution.Verdict
	parseJSONResponse(t, recorder, &v)
	if !v.MatchFound || v.Method != resolution.MethodBiometric || v.Identity != "Alice" {
		t.Errorf("unexpected verdict: %+v", v)
	}
	if !v.Corroborated || !v.Recorded || !v.NotificationSent {
		t.Errorf("expected corroborated, recorded and notified verdict: %+v", v)
	}
	if sender.sent != 1 {
		t.Errorf("expected one notification, got %d", sender.sent)
	}

	// The recorded sighting shows up in the listing under the matched identity.
	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/sightings", nil))
	var listed []SightingResponse
	parseJSONResponse(t, recorder, &listed)
	if len(listed) != 1 || listed[0].Name != "Alice" || listed[0].Location != "Central Station" {
		t.Errorf("unexpected sightings: %+v", listed)
	}
}

func TestSightingsHandler_List(t *testing.T) {
	reg := mock.NewMockRegistry()
	for _, loc := range []string{"Park", "Station", "Market"} {
		reg.RecordSighting(context.Background(), database.Sighting{Location: loc, ReporterName: "r", ReporterPhone: "p"})
	}
	h := NewSightingsHandler(&stubResolver{}, nil, reg, nil)

	recorder := httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/sightings?limit=2", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var listed []SightingResponse
	parseJSONResponse(t, recorder, &listed)
	if len(listed) != 2 || listed[0].Location != "Market" || listed[1].Location != "Station" {
		t.Errorf("unexpected sightings: %+v", listed)
	}

	for _, q := range []string{"?limit=0", "?limit=abc", "?limit=-3"} {
		recorder = httptest.NewRecorder()
		h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/sightings"+q, nil))
		assertStatusCode(t, recorder, http.StatusBadRequest)
	}

	reg.SightingsError = errors.New("db down")
	recorder = httptest.NewRecorder()
	h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/sightings", nil))
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}
