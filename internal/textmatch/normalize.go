package textmatch

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed stopwords_english.txt
var englishStopwords string

// DefaultStopwords returns the embedded English stopword list.
func DefaultStopwords() []string {
	return parseStopwords(englishStopwords)
}

// LoadStopwords reads a newline separated stopword list. Blank lines and lines
// starting with # are ignored.
func LoadStopwords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords: %w", err)
	}
	return words, nil
}

func parseStopwords(s string) []string {
	var words []string
	for line := range strings.Lines(s) {
		if w := strings.TrimSpace(line); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Normalizer canonicalizes free text before comparison. A Normalizer without
// stopwords (including a nil *Normalizer) still folds case and punctuation.
type Normalizer struct {
	stopwords map[string]struct{}
}

// NewNormalizer builds a normalizer removing the given stopwords.
func NewNormalizer(stopwords []string) *Normalizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[w] = struct{}{}
	}
	return &Normalizer{stopwords: set}
}

// Degraded reports whether stopword removal is unavailable.
func (n *Normalizer) Degraded() bool {
	return n == nil || len(n.stopwords) == 0
}

// Normalize lower-cases s, folds diacritics, drops every character outside
// [a-z0-9] and whitespace, removes stopwords and joins the remaining tokens
// with single spaces.
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(RemoveDiacritics(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	if !n.Degraded() {
		kept := words[:0]
		for _, w := range words {
			if _, stop := n.stopwords[w]; !stop {
				kept = append(kept, w)
			}
		}
		words = kept
	}
	return strings.Join(words, " ")
}
