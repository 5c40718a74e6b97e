package database

import (
	"context"
)

// RegistryReader provides read-only access to open cases. Lookups by name
// consider open cases only; when several share a name the earliest created wins.
type RegistryReader interface {
	// DescriptiveFeatures returns the feature descriptions of all open cases
	DescriptiveFeatures(ctx context.Context) ([]DescriptiveFeature, error)
	// Description returns the feature description registered for name, empty if none
	Description(ctx context.Context, name string) (string, error)
	// Contact returns the contact phone registered for name, empty if none
	Contact(ctx context.Context, name string) (string, error)
	// CaseByName returns the open case for name, nil if not found
	CaseByName(ctx context.Context, name string) (*Case, error)
	// RecentSightingLocations returns locations reported for name, newest first
	RecentSightingLocations(ctx context.Context, name string) ([]string, error)
}

// SightingRecorder persists sighting reports.
type SightingRecorder interface {
	RecordSighting(ctx context.Context, s Sighting) error
}

// SightingLister lists persisted sightings.
type SightingLister interface {
	// ListSightings returns up to limit sightings across all identities, newest first
	ListSightings(ctx context.Context, limit int) ([]Sighting, error)
}

// CaseWriter manages the case lifecycle.
type CaseWriter interface {
	// CreateCase stores the case, its photos and features in one transaction
	CreateCase(ctx context.Context, intake CaseIntake) (*Case, error)
	// CloseCase marks a case closed; returns false if no open case has that ID
	CloseCase(ctx context.Context, caseID string) (bool, error)
	// ListCases returns cases with the given status (all when empty), newest first
	ListCases(ctx context.Context, status CaseStatus) ([]Case, error)
}

// PhotoReader streams reference photos of open cases for the embedding builder.
type PhotoReader interface {
	// OpenCasePhotos calls fn for every photo of every open case, ordered by name
	OpenCasePhotos(ctx context.Context, fn func(CasePhoto) error) error
	// CountOpenCasePhotos returns the number of photos OpenCasePhotos would visit
	CountOpenCasePhotos(ctx context.Context) (int, error)
}

// Registry is the full case registry.
type Registry interface {
	RegistryReader
	SightingRecorder
	SightingLister
	CaseWriter
	PhotoReader
	Close() error
}

// EmbeddingStoreReader loads the last published embedding snapshot.
type EmbeddingStoreReader interface {
	// Load returns nil (and no error) when nothing has been published yet
	Load(ctx context.Context) (*EmbeddingSnapshot, error)
}

// EmbeddingStoreWriter publishes a complete snapshot, replacing the previous one atomically.
type EmbeddingStoreWriter interface {
	EmbeddingStoreReader
	Publish(ctx context.Context, snap *EmbeddingSnapshot) error
}
