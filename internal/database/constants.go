package database

// Defaults used by lookups and notifications when a value is missing.
const (
	UnknownLocation = "Unknown location"
	AnonymousName   = "Anonymous"
	UnknownPhone    = "Unknown"
)

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWCandidates is the number of neighbours fetched before exact rescoring.
	HNSWCandidates = 64
)
