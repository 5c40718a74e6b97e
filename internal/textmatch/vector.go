package textmatch

import (
	"math"
	"regexp"
	"slices"
	"strings"
)

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// TFIDFScorer ranks candidates by TF-IDF cosine similarity. The vocabulary and
// document frequencies are fitted on the query together with the candidates,
// using smoothed inverse document frequency ln((1+n)/(1+df))+1, raw term
// counts and L2 row normalization.
type TFIDFScorer struct{}

// sparseVec holds weights ordered by vocabulary index.
type sparseVec struct {
	idx []int
	val []float64
}

// BestVector returns the candidate most similar to query, scaled to [0, 100].
// Ties resolve to the lowest index. When no document contains a usable token
// the result is degraded with index -1.
func (TFIDFScorer) BestVector(query string, candidates []string) Score {
	if len(candidates) == 0 {
		return NoScore
	}

	counts := make([]map[string]int, 0, len(candidates)+1)
	counts = append(counts, termCounts(query))
	for _, c := range candidates {
		counts = append(counts, termCounts(c))
	}

	df := make(map[string]int)
	for _, doc := range counts {
		for term := range doc {
			df[term]++
		}
	}
	if len(df) == 0 {
		return Score{Index: -1, Degraded: true}
	}

	vocab := make([]string, 0, len(df))
	for term := range df {
		vocab = append(vocab, term)
	}
	slices.Sort(vocab)

	n := float64(len(counts))
	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		index[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vecs := make([]sparseVec, len(counts))
	for i, doc := range counts {
		vecs[i] = tfidfVector(doc, index, idf)
	}

	q := vecs[0]
	best := Score{Index: 0, Value: 100 * dot(q, vecs[1])}
	for i := 2; i < len(vecs); i++ {
		if s := 100 * dot(q, vecs[i]); s > best.Value {
			best = Score{Index: i - 1, Value: s}
		}
	}
	return best
}

func termCounts(doc string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(doc), -1) {
		counts[tok]++
	}
	return counts
}

// tfidfVector weights raw counts by idf and L2-normalizes the result.
// Documents without tokens stay empty and score 0 against everything.
func tfidfVector(doc map[string]int, index map[string]int, idf []float64) sparseVec {
	v := sparseVec{idx: make([]int, 0, len(doc))}
	for term := range doc {
		v.idx = append(v.idx, index[term])
	}
	slices.Sort(v.idx)

	terms := make(map[int]string, len(doc))
	for term := range doc {
		terms[index[term]] = term
	}

	v.val = make([]float64, len(v.idx))
	var norm float64
	for k, i := range v.idx {
		w := float64(doc[terms[i]]) * idf[i]
		v.val[k] = w
		norm += w * w
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for k := range v.val {
		v.val[k] /= norm
	}
	return v
}

func dot(a, b sparseVec) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.idx) && j < len(b.idx) {
		switch {
		case a.idx[i] == b.idx[j]:
			sum += a.val[i] * b.val[j]
			i++
			j++
		case a.idx[i] < b.idx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
