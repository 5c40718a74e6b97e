package textmatch

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Score is the best candidate found by a scorer. Index is -1 when no candidate
// could be scored. Degraded marks results produced from unusable input (for
// example a vocabulary left empty after tokenization) rather than a real comparison.
type Score struct {
	Index    int
	Value    float64
	Degraded bool
}

// NoScore is returned for empty candidate lists.
var NoScore = Score{Index: -1}

// TokenSetScorer ranks candidates by TokenSetRatio.
type TokenSetScorer struct{}

// BestLexical returns the candidate with the highest TokenSetRatio against query.
// Ties resolve to the lowest index.
func (TokenSetScorer) BestLexical(query string, candidates []string) Score {
	if len(candidates) == 0 {
		return NoScore
	}
	best := Score{Index: 0, Value: TokenSetRatio(query, candidates[0])}
	for i := 1; i < len(candidates); i++ {
		if s := TokenSetRatio(query, candidates[i]); s > best.Value {
			best = Score{Index: i, Value: s}
		}
	}
	return best
}

// TokenSetRatio scores the similarity of two strings in [0, 100] ignoring token
// order and duplicates. The shared tokens are compared against each side's
// shared-plus-remaining tokens, and the remaining tokens against each other,
// using the normalized Indel similarity. The best of the three comparisons wins;
// a non-empty intersection with nothing left over on one side scores 100.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var intersect, diffAB, diffBA []string
	for t := range tokensA {
		if _, ok := tokensB[t]; ok {
			intersect = append(intersect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for t := range tokensB {
		if _, ok := tokensA[t]; !ok {
			diffBA = append(diffBA, t)
		}
	}

	if len(intersect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	slices.Sort(intersect)
	slices.Sort(diffAB)
	slices.Sort(diffBA)

	joinedAB := strings.Join(diffAB, " ")
	joinedBA := strings.Join(diffBA, " ")
	abLen := utf8.RuneCountInString(joinedAB)
	baLen := utf8.RuneCountInString(joinedBA)

	sectLen := utf8.RuneCountInString(strings.Join(intersect, " "))
	if sectLen == 0 {
		return normalizedIndelSimilarity(joinedAB, joinedBA)
	}

	// The intersection is a prefix of "intersection + space + diff", so the
	// Indel distance between the two is the length of the appended suffix.
	sectABDist := 1 + abLen
	sectBADist := 1 + baLen
	sectABLen := sectLen + sectABDist
	sectBALen := sectLen + sectBADist

	// Both sides share the intersection prefix, so only the diffs contribute
	// to the distance while the full strings set the normalization.
	dist := abLen + baLen - 2*longestCommonSubsequence([]rune(joinedAB), []rune(joinedBA))
	result := 100 * (1 - float64(dist)/float64(sectABLen+sectBALen))

	sectAB := 100 * (1 - float64(sectABDist)/float64(sectLen+sectABLen))
	sectBA := 100 * (1 - float64(sectBADist)/float64(sectLen+sectBALen))

	return max(result, sectAB, sectBA)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// normalizedIndelSimilarity returns 100 * (1 - indel/(len(a)+len(b))), where the
// Indel distance counts the insertions and deletions turning a into b.
func normalizedIndelSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	dist := total - 2*longestCommonSubsequence(ra, rb)
	return 100 * (1 - float64(dist)/float64(total))
}

func longestCommonSubsequence(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
