// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/sightmatch/internal/database"
)

// MockRegistry is an in-memory implementation of database.Registry
type MockRegistry struct {
	mu        sync.RWMutex
	cases     []database.Case
	features  map[string]string // case_id -> description
	photos    []database.CasePhoto
	sightings []database.Sighting
	nextID    int64
	clock     time.Time

	// Error injection
	DescriptiveFeaturesError error
	DescriptionError         error
	ContactError             error
	CaseByNameError          error
	SightingsError           error
	RecordSightingError      error
	CreateCaseError          error
	CloseCaseError           error
	ListCasesError           error
	PhotosError              error

	// Call tracking
	DescriptionCalls    int
	ContactCalls        int
	RecordSightingCalls int
}

var _ database.Registry = (*MockRegistry)(nil)

// NewMockRegistry creates a new empty mock registry
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		features: make(map[string]string),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *MockRegistry) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// AddCase registers an open case with an optional contact phone and feature description
func (m *MockRegistry) AddCase(name, phone, features string) database.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := database.Case{
		ID:           m.nextID,
		CaseID:       fmt.Sprintf("case-%d", m.nextID),
		Name:         name,
		ContactPhone: phone,
		Status:       database.CaseOpen,
		CreatedAt:    m.tick(),
	}
	m.cases = append(m.cases, c)
	if features != "" {
		m.features[c.CaseID] = features
	}
	return c
}

// AddPhoto attaches a reference photo to the earliest open case called name
func (m *MockRegistry) AddPhoto(name, filename string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.openCase(name); c != nil {
		m.addPhoto(*c, filename, data)
	}
}

func (m *MockRegistry) addPhoto(c database.Case, filename string, data []byte) {
	m.nextID++
	m.photos = append(m.photos, database.CasePhoto{
		ID: m.nextID, CaseID: c.CaseID, Name: c.Name, Filename: filename, Data: data, CreatedAt: m.tick(),
	})
}

// Sightings returns the recorded sightings in insertion order
func (m *MockRegistry) Sightings() []database.Sighting {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sightings)
}

func (m *MockRegistry) openCase(name string) *database.Case {
	for i := range m.cases {
		if m.cases[i].Name == name && m.cases[i].Status == database.CaseOpen {
			return &m.cases[i]
		}
	}
	return nil
}

// DescriptiveFeatures returns the feature descriptions of open cases in creation order
func (m *MockRegistry) DescriptiveFeatures(ctx context.Context) ([]database.DescriptiveFeature, error) {
	if m.DescriptiveFeaturesError != nil {
		return nil, m.DescriptiveFeaturesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.DescriptiveFeature
	for _, c := range m.cases {
		if desc, ok := m.features[c.CaseID]; ok && c.Status == database.CaseOpen {
			out = append(out, database.DescriptiveFeature{Name: c.Name, Description: desc, CaseID: c.CaseID})
		}
	}
	return out, nil
}

// Description returns the first description of an open case called name
func (m *MockRegistry) Description(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.DescriptionCalls++
	m.mu.Unlock()
	if m.DescriptionError != nil {
		return "", m.DescriptionError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cases {
		if c.Name == name && c.Status == database.CaseOpen {
			if desc, ok := m.features[c.CaseID]; ok {
				return desc, nil
			}
		}
	}
	return "", nil
}

// Contact returns the first contact phone of an open case called name
func (m *MockRegistry) Contact(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	m.ContactCalls++
	m.mu.Unlock()
	if m.ContactError != nil {
		return "", m.ContactError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cases {
		if c.Name == name && c.Status == database.CaseOpen && c.ContactPhone != "" {
			return c.ContactPhone, nil
		}
	}
	return "", nil
}

// CaseByName returns the earliest open case called name
func (m *MockRegistry) CaseByName(ctx context.Context, name string) (*database.Case, error) {
	if m.CaseByNameError != nil {
		return nil, m.CaseByNameError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.openCase(name); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// RecentSightingLocations returns locations recorded for name, newest first
func (m *MockRegistry) RecentSightingLocations(ctx context.Context, name string) ([]string, error) {
	if m.SightingsError != nil {
		return nil, m.SightingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for i := len(m.sightings) - 1; i >= 0 && len(out) < 10; i-- {
		if m.sightings[i].Name == name {
			out = append(out, m.sightings[i].Location)
		}
	}
	return out, nil
}

// RecordSighting appends a sighting
func (m *MockRegistry) RecordSighting(ctx context.Context, s database.Sighting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordSightingCalls++
	if m.RecordSightingError != nil {
		return m.RecordSightingError
	}
	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.tick()
	}
	m.sightings = append(m.sightings, s)
	return nil
}

// ListSightings returns up to limit sightings, newest first
func (m *MockRegistry) ListSightings(ctx context.Context, limit int) ([]database.Sighting, error) {
	if m.SightingsError != nil {
		return nil, m.SightingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Sighting
	for i := len(m.sightings) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.sightings[i])
	}
	return out, nil
}

// CreateCase stores a case built from intake
func (m *MockRegistry) CreateCase(ctx context.Context, intake database.CaseIntake) (*database.Case, error) {
	if m.CreateCaseError != nil {
		return nil, m.CreateCaseError
	}
	name := strings.TrimSpace(intake.Name)
	if name == "" {
		return nil, fmt.Errorf("case name is required")
	}
	c := m.AddCase(name, strings.TrimSpace(intake.ContactPhone), strings.TrimSpace(intake.Features))
	m.mu.Lock()
	for _, p := range intake.Photos {
		if len(p.Data) > 0 {
			m.addPhoto(c, p.Filename, p.Data)
		}
	}
	m.mu.Unlock()
	return &c, nil
}

// CloseCase marks an open case closed
func (m *MockRegistry) CloseCase(ctx context.Context, caseID string) (bool, error) {
	if m.CloseCaseError != nil {
		return false, m.CloseCaseError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cases {
		if m.cases[i].CaseID == caseID && m.cases[i].Status == database.CaseOpen {
			m.cases[i].Status = database.CaseClosed
			return true, nil
		}
	}
	return false, nil
}

// ListCases returns cases filtered by status, newest first
func (m *MockRegistry) ListCases(ctx context.Context, status database.CaseStatus) ([]database.Case, error) {
	if m.ListCasesError != nil {
		return nil, m.ListCasesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Case
	for i := len(m.cases) - 1; i >= 0; i-- {
		if status == "" || m.cases[i].Status == status {
			out = append(out, m.cases[i])
		}
	}
	return out, nil
}

// OpenCasePhotos calls fn for each photo of an open case, ordered by name
func (m *MockRegistry) OpenCasePhotos(ctx context.Context, fn func(database.CasePhoto) error) error {
	if m.PhotosError != nil {
		return m.PhotosError
	}
	m.mu.RLock()
	var photos []database.CasePhoto
	for _, p := range m.photos {
		for _, c := range m.cases {
			if c.CaseID == p.CaseID && c.Status == database.CaseOpen {
				photos = append(photos, p)
			}
		}
	}
	m.mu.RUnlock()

	slices.SortStableFunc(photos, func(a, b database.CasePhoto) int { return strings.Compare(a.Name, b.Name) })
	for _, p := range photos {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// CountOpenCasePhotos counts photos of open cases
func (m *MockRegistry) CountOpenCasePhotos(ctx context.Context) (int, error) {
	n := 0
	err := m.OpenCasePhotos(ctx, func(database.CasePhoto) error { n++; return nil })
	return n, err
}

// Close is a no-op
func (m *MockRegistry) Close() error {
	return nil
}

// MockEmbeddingStore is an in-memory implementation of database.EmbeddingStoreWriter
type MockEmbeddingStore struct {
	mu   sync.RWMutex
	snap *database.EmbeddingSnapshot

	// Error injection
	LoadError    error
	PublishError error

	PublishCalls int
}

var _ database.EmbeddingStoreWriter = (*MockEmbeddingStore)(nil)

// NewMockEmbeddingStore creates a store pre-loaded with vectors; nil leaves it unpublished
func NewMockEmbeddingStore(vectors map[string][]float32) *MockEmbeddingStore {
	m := &MockEmbeddingStore{}
	if vectors != nil {
		m.snap = &database.EmbeddingSnapshot{Generation: 1, Vectors: vectors}
	}
	return m
}

// Load returns the current snapshot
func (m *MockEmbeddingStore) Load(ctx context.Context) (*database.EmbeddingSnapshot, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, nil
}

// Publish replaces the current snapshot
func (m *MockEmbeddingStore) Publish(ctx context.Context, snap *database.EmbeddingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls++
	if m.PublishError != nil {
		return m.PublishError
	}
	var gen int64
	if m.snap != nil {
		gen = m.snap.Generation
	}
	snap.Generation = gen + 1
	m.snap = snap
	return nil
}
