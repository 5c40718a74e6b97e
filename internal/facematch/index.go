package facematch

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/sightmatch/internal/database"
)

// annIndex caches an HNSW graph for the most recently seen snapshot.
type annIndex struct {
	mu         sync.Mutex
	graph      *hnsw.Graph[string]
	generation int64
	size       int
	dim        int
}

// neighbours returns the reference vectors of the approximate nearest
// identities. ok is false when the index cannot serve the query, in which
// case the caller falls back to the exact scan.
func (x *annIndex) neighbours(snap *database.EmbeddingSnapshot, query []float32, opts ANNOptions) (map[string][]float32, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil || x.generation != snap.Generation || x.size != snap.Len() {
		x.build(snap, opts.MaxNeighbors)
	}
	if x.graph == nil || len(query) != x.dim {
		return nil, false
	}

	nodes := x.graph.Search(query, opts.Candidates)
	refs := make(map[string][]float32, len(nodes))
	for _, n := range nodes {
		refs[n.Key] = n.Value
	}
	return refs, true
}

func (x *annIndex) build(snap *database.EmbeddingSnapshot, maxNeighbors int) {
	x.graph = nil
	x.generation = snap.Generation
	x.size = snap.Len()
	x.dim = snap.Dim

	g := hnsw.NewGraph[string]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance

	added := 0
	for name, vec := range snap.Vectors {
		if x.dim == 0 {
			x.dim = len(vec)
		}
		// The graph requires a single dimensionality.
		if len(vec) == 0 || len(vec) != x.dim {
			continue
		}
		g.Add(hnsw.MakeNode(name, vec))
		added++
	}
	if added > 0 {
		x.graph = g
	}
}
