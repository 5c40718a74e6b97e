package database

import (
	"time"
)

// CaseStatus is the lifecycle state of a missing-person case.
type CaseStatus string

const (
	CaseOpen   CaseStatus = "open"
	CaseClosed CaseStatus = "closed"
)

// Case is a missing-person record. Name is the resolution key; two open cases
// sharing a name are indistinguishable to the resolvers.
type Case struct {
	ID           int64
	CaseID       string // UUID handed out at intake
	Name         string
	ContactPhone string // empty when no contact was registered
	Status       CaseStatus
	CreatedAt    time.Time
}

// DescriptiveFeature is a free-text distinguishing mark ("mole on left cheek") of a case.
type DescriptiveFeature struct {
	Name        string
	Description string
	CaseID      string
}

// CasePhoto is a reference photo uploaded at intake.
type CasePhoto struct {
	ID        int64
	CaseID    string
	Name      string
	Filename  string
	Data      []byte
	CreatedAt time.Time
}

// CaseIntake carries everything needed to open a case.
type CaseIntake struct {
	Name         string
	ContactPhone string
	Features     string // optional distinguishing-feature description
	Photos       []CasePhoto
}

// Sighting is a persisted sighting report.
type Sighting struct {
	ID            int64
	Name          string // claimed or matched identity, empty when unknown
	Location      string
	ReporterName  string
	ReporterPhone string
	Details       string
	CreatedAt     time.Time
}

// EmbeddingSnapshot is one fully built set of reference embeddings, keyed by
// identity name. A published snapshot is never modified.
type EmbeddingSnapshot struct {
	Generation int64
	BuiltAt    time.Time
	Model      string
	Dim        int
	Vectors    map[string][]float32
}

// Len returns the number of identities in the snapshot. A nil snapshot is empty.
func (s *EmbeddingSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Vectors)
}

// Names returns the identities of the snapshot in no particular order.
func (s *EmbeddingSnapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Vectors))
	for name := range s.Vectors {
		names = append(names, name)
	}
	return names
}
