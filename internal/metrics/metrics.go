package metrics

import (
	"strings"
)

// Metric names used as results-table column keys.
const (
	MetricCosineDistance    = "cosine_distance"
	MetricJaccardSimilarity = "jaccard_similarity"
	MetricSequenceRatio     = "sequence_ratio"
)

// AllMetrics lists every drift metric in report order.
var AllMetrics = []string{
	MetricCosineDistance,
	MetricJaccardSimilarity,
	MetricSequenceRatio,
}

// DriftScores bundles the drift metrics for one original/final text pair.
// SemanticDrift aliases the cosine distance, the headline metric.
type DriftScores struct {
	CosineDistance    float64 `json:"cosine_distance"`
	JaccardSimilarity float64 `json:"jaccard_similarity"`
	SequenceRatio     float64 `json:"sequence_ratio"`
	SemanticDrift     float64 `json:"semantic_drift"`
}

// Compute evaluates all drift metrics between the original text and the
// chain's final output.
func Compute(original, final string) DriftScores {
	cosine := CosineDistance(original, final)
	return DriftScores{
		CosineDistance:    cosine,
		JaccardSimilarity: JaccardSimilarity(original, final),
		SequenceRatio:     SequenceRatio(original, final),
		SemanticDrift:     cosine,
	}
}

// Value returns the named metric from the bundle.
func (d DriftScores) Value(metricName string) float64 {
	switch metricName {
	case MetricCosineDistance:
		return d.CosineDistance
	case MetricJaccardSimilarity:
		return d.JaccardSimilarity
	case MetricSequenceRatio:
		return d.SequenceRatio
	default:
		return 0
	}
}

// JaccardSimilarity measures word-set overlap between two texts: the size of
// the intersection over the size of the union of their lowercased whitespace
// tokens. Two empty texts score 0.0, not 1.0: no shared content is no overlap.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = true
	}
	return set
}

// SequenceRatio measures character-level similarity with the
// Ratcliff/Obershelp algorithm over lowercased runes: twice the total length
// of matching blocks divided by the combined length. Arguments are
// canonicalised so the ratio is symmetric.
func SequenceRatio(a, b string) float64 {
	if a > b {
		a, b = b, a
	}
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	matches := matchingTotal(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matches) / float64(total)
}

// matchingTotal sums the longest matching block in the window plus whatever
// matches recursively to its left and right.
func matchingTotal(a, b []rune, alo, ahi, blo, bhi int) int {
	bestI, bestJ, bestSize := longestMatch(a, b, alo, ahi, blo, bhi)
	if bestSize == 0 {
		return 0
	}
	total := bestSize
	total += matchingTotal(a, b, alo, bestI, blo, bestJ)
	total += matchingTotal(a, b, bestI+bestSize, ahi, bestJ+bestSize, bhi)
	return total
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] in the window,
// preferring the earliest in a, then earliest in b, as difflib does.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (int, int, int) {
	b2j := make(map[rune][]int)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	bestI, bestJ, bestSize := alo, blo, 0
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newJ2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return bestI, bestJ, bestSize
}
