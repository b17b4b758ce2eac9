package metrics

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxFeatures caps the TF-IDF vocabulary, largest collection
// frequencies first.
const DefaultMaxFeatures = 1000

// tokenize lowercases and splits on non-alphanumeric runes, dropping
// single-character tokens.
func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) >= 2 {
			out = append(out, tok)
		}
	}
	return out
}

// ngramCounts builds word n-gram counts for n in [1,3].
func ngramCounts(tokens []string) map[string]float64 {
	counts := make(map[string]float64)
	for n := 1; n <= 3; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return counts
}

// CosineDistance measures TF-IDF cosine distance between two texts using the
// default vocabulary cap.
func CosineDistance(a, b string) float64 {
	return CosineDistanceWithFeatures(a, b, DefaultMaxFeatures)
}

// CosineDistanceWithFeatures computes 1 - cosine similarity of the two texts'
// TF-IDF vectors over the joint two-document corpus. The vocabulary keeps the
// maxFeatures n-grams with the highest collection frequency (ties broken
// lexicographically). IDF is smoothed: ln((1+n)/(1+df)) + 1.
//
// An empty document has no direction to compare, so distance is 1.0 unless
// both are empty, which counts as no drift.
func CosineDistanceWithFeatures(a, b string, maxFeatures int) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 0.0
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 1.0
	}

	countsA := ngramCounts(tokensA)
	countsB := ngramCounts(tokensB)

	type termFreq struct {
		term  string
		total float64
	}
	terms := make([]termFreq, 0, len(countsA)+len(countsB))
	seen := make(map[string]bool, len(countsA)+len(countsB))
	for term, c := range countsA {
		seen[term] = true
		terms = append(terms, termFreq{term, c + countsB[term]})
	}
	for term, c := range countsB {
		if !seen[term] {
			terms = append(terms, termFreq{term, c})
		}
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].total != terms[j].total {
			return terms[i].total > terms[j].total
		}
		return terms[i].term < terms[j].term
	})
	if maxFeatures > 0 && len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}

	const nDocs = 2.0
	var vecA, vecB []float64
	for _, tf := range terms {
		df := 0.0
		if countsA[tf.term] > 0 {
			df++
		}
		if countsB[tf.term] > 0 {
			df++
		}
		idf := math.Log((1+nDocs)/(1+df)) + 1
		vecA = append(vecA, countsA[tf.term]*idf)
		vecB = append(vecB, countsB[tf.term]*idf)
	}

	normA := l2norm(vecA)
	normB := l2norm(vecB)
	if normA == 0 || normB == 0 {
		return 1.0
	}

	dot := 0.0
	for i := range vecA {
		dot += vecA[i] * vecB[i]
	}

	similarity := dot / (normA * normB)
	// Guard against floating point drift outside [0,1].
	if similarity > 1 {
		similarity = 1
	}
	if similarity < 0 {
		similarity = 0
	}
	return 1 - similarity
}

func l2norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
