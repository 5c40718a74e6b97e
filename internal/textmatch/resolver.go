package textmatch

import "strings"

// Default acceptance thresholds on the 0-100 score scale.
const (
	DefaultLexicalAccept = 90
	DefaultVectorAccept  = 80
)

// Stage names the scorer that produced an accepted match.
type Stage string

const (
	StageNone    Stage = ""
	StageLexical Stage = "lexical"
	StageVector  Stage = "vector"
)

// Record is one stored distinguishing-feature description.
type Record struct {
	Identity    string
	Description string
	CaseID      string
}

// Match is the outcome of a text resolution. Record and Score are zero unless Found.
type Match struct {
	Record   Record
	Score    float64
	Found    bool
	Stage    Stage
	Degraded bool // normalization or vectorization ran on a fallback path
}

type LexicalScorer interface {
	BestLexical(query string, candidates []string) Score
}

type VectorScorer interface {
	BestVector(query string, candidates []string) Score
}

// Options configures a Resolver. Non-positive thresholds and nil components
// are replaced by the package defaults.
type Options struct {
	LexicalAccept float64
	VectorAccept  float64
	Normalizer    *Normalizer
	Lexical       LexicalScorer
	Vector        VectorScorer
}

// Resolver picks the stored description best matching a free-text report:
// lexical scoring first, TF-IDF only when the lexical score is inconclusive.
type Resolver struct {
	opts Options
}

func NewResolver(opts Options) *Resolver {
	if opts.LexicalAccept <= 0 {
		opts.LexicalAccept = DefaultLexicalAccept
	}
	if opts.VectorAccept <= 0 {
		opts.VectorAccept = DefaultVectorAccept
	}
	if opts.Normalizer == nil {
		opts.Normalizer = NewNormalizer(DefaultStopwords())
	}
	if opts.Lexical == nil {
		opts.Lexical = TokenSetScorer{}
	}
	if opts.Vector == nil {
		opts.Vector = TFIDFScorer{}
	}
	return &Resolver{opts: opts}
}

// Resolve returns the best record for text, or a Match with Found false.
func (r *Resolver) Resolve(text string, records []Record) Match {
	if strings.TrimSpace(text) == "" || len(records) == 0 {
		return Match{}
	}

	degraded := r.opts.Normalizer.Degraded()
	query := r.opts.Normalizer.Normalize(text)
	candidates := make([]string, len(records))
	for i, rec := range records {
		candidates[i] = r.opts.Normalizer.Normalize(rec.Description)
	}

	lex := r.opts.Lexical.BestLexical(query, candidates)
	if validIndex(lex.Index, records) && lex.Value >= r.opts.LexicalAccept {
		return Match{Record: records[lex.Index], Score: lex.Value, Found: true, Stage: StageLexical, Degraded: degraded}
	}

	vec := r.opts.Vector.BestVector(query, candidates)
	degraded = degraded || vec.Degraded
	if validIndex(vec.Index, records) && vec.Value >= r.opts.VectorAccept {
		return Match{Record: records[vec.Index], Score: vec.Value, Found: true, Stage: StageVector, Degraded: degraded}
	}

	return Match{Degraded: degraded}
}

// Accepts reports whether text matches description by itself with a score of at
// least threshold. It is used to corroborate a match found by another channel.
func (r *Resolver) Accepts(text, description string, threshold float64) (bool, float64) {
	m := r.Resolve(text, []Record{{Description: description}})
	return m.Found && m.Score >= threshold, m.Score
}

func validIndex(i int, records []Record) bool {
	return i >= 0 && i < len(records)
}
