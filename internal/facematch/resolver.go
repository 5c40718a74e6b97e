// Package facematch ranks reference identities against a face embedding.
package facematch

import (
	"cmp"
	"slices"

	"github.com/kozaktomas/sightmatch/internal/database"
)

// DefaultMaxDistance is the cosine distance a candidate must stay strictly below.
const DefaultMaxDistance = 0.4

// Candidate is an identity whose reference embedding is close to the query.
type Candidate struct {
	Identity   string  `json:"identity"`
	Confidence float64 `json:"confidence"` // 1 - Distance
	Distance   float64 `json:"distance"`
}

// Rank compares query with every reference vector and returns the identities
// with distance < maxDistance ordered by descending confidence, then by name.
// The result is empty, never nil-with-error, when nothing qualifies.
func Rank(query []float32, refs map[string][]float32, maxDistance float64) []Candidate {
	candidates := make([]Candidate, 0)
	for name, ref := range refs {
		d := CosineDistance(query, ref)
		if d < maxDistance {
			candidates = append(candidates, Candidate{Identity: name, Confidence: 1 - d, Distance: d})
		}
	}
	sortCandidates(candidates)
	return candidates
}

func sortCandidates(c []Candidate) {
	slices.SortFunc(c, func(a, b Candidate) int {
		if n := cmp.Compare(b.Confidence, a.Confidence); n != 0 {
			return n
		}
		return cmp.Compare(a.Identity, b.Identity)
	})
}

// Options configures a Resolver.
type Options struct {
	MaxDistance float64 // defaults to DefaultMaxDistance when not positive
	ANN         ANNOptions
}

// ANNOptions enables HNSW candidate generation for stores of at least
// MinStoreSize identities. It is off unless Enabled is set. Candidates found
// by the index are always rescored exactly, so the distance threshold holds on
// both paths. When the index returns Candidates neighbours and all of them
// qualify, more qualifying identities may exist and the exact scan runs instead.
type ANNOptions struct {
	Enabled      bool
	MinStoreSize int
	MaxNeighbors int
	Candidates   int
}

// Resolver ranks identities of an embedding snapshot. It is safe for concurrent use.
type Resolver struct {
	opts  Options
	index *annIndex
}

func NewResolver(opts Options) *Resolver {
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = DefaultMaxDistance
	}
	if opts.ANN.MaxNeighbors <= 0 {
		opts.ANN.MaxNeighbors = database.HNSWMaxNeighbors
	}
	if opts.ANN.Candidates <= 0 {
		opts.ANN.Candidates = database.HNSWCandidates
	}
	return &Resolver{opts: opts, index: &annIndex{}}
}

// MaxDistance returns the effective acceptance threshold.
func (r *Resolver) MaxDistance() float64 {
	return r.opts.MaxDistance
}

// Resolve returns the qualifying candidates of snap for query, best first.
// A nil or empty snapshot yields an empty result.
func (r *Resolver) Resolve(query []float32, snap *database.EmbeddingSnapshot) []Candidate {
	if len(query) == 0 || snap.Len() == 0 {
		return []Candidate{}
	}

	if r.useANN(snap) {
		if refs, ok := r.index.neighbours(snap, query, r.opts.ANN); ok {
			ranked := Rank(query, refs, r.opts.MaxDistance)
			if len(refs) < r.opts.ANN.Candidates || len(ranked) < len(refs) {
				return ranked
			}
		}
	}
	return Rank(query, snap.Vectors, r.opts.MaxDistance)
}

func (r *Resolver) useANN(snap *database.EmbeddingSnapshot) bool {
	return r.opts.ANN.Enabled && snap.Len() >= r.opts.ANN.MinStoreSize
}
