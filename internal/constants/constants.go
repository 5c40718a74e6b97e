// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Request limits
const (
	// MaxUploadSize is the maximum multipart request size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// MaxPhotosPerCase is the maximum number of reference photos accepted per intake
	MaxPhotosPerCase = 10

	// DefaultSightingsLimit is the default number of sightings returned by listings
	DefaultSightingsLimit = 50

	// MaxSightingsLimit caps the limit query parameter of sighting listings
	MaxSightingsLimit = 500
)

// Timeouts
const (
	// ResolveTimeout bounds one sighting resolution including embedding and notification
	ResolveTimeout = 60 * time.Second

	// RebuildTimeout bounds a background embedding rebuild
	RebuildTimeout = 30 * time.Minute

	// ShutdownTimeout is the grace period for in-flight requests on shutdown
	ShutdownTimeout = 30 * time.Second
)

// EmbeddingModel is recorded on published embedding snapshots.
const EmbeddingModel = "face"
