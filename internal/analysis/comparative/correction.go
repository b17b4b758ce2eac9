package comparative

import (
	"sort"
)

// CorrectionStrategy names a multiple-comparison correction. Results always
// report which strategy produced their adjusted p-values.
type CorrectionStrategy string

const (
	CorrectionBonferroni CorrectionStrategy = "bonferroni"
	CorrectionHolm       CorrectionStrategy = "holm"
	CorrectionBH         CorrectionStrategy = "benjamini-hochberg"
	CorrectionNone       CorrectionStrategy = "none"
)

// Adjust applies the strategy to raw p-values, returning adjusted values in
// the input order.
func Adjust(pValues []float64, strategy CorrectionStrategy) []float64 {
	switch strategy {
	case CorrectionBonferroni:
		return Bonferroni(pValues)
	case CorrectionHolm:
		return Holm(pValues)
	case CorrectionBH:
		return BenjaminiHochberg(pValues)
	default:
		out := make([]float64, len(pValues))
		copy(out, pValues)
		return out
	}
}

// Bonferroni multiplies every p-value by the family size.
func Bonferroni(pValues []float64) []float64 {
	m := float64(len(pValues))
	out := make([]float64, len(pValues))
	for i, p := range pValues {
		out[i] = clampP(p * m)
	}
	return out
}

// Holm applies the step-down procedure: the smallest p-value faces the full
// Bonferroni factor, each next one faces one less. Adjusted values are forced
// monotone nondecreasing in rank order so a later test can never end up more
// significant than an earlier one.
func Holm(pValues []float64) []float64 {
	m := len(pValues)
	order := sortedOrder(pValues)

	out := make([]float64, m)
	running := 0.0
	for rank, idx := range order {
		adjusted := clampP(float64(m-rank) * pValues[idx])
		if adjusted < running {
			adjusted = running
		}
		running = adjusted
		out[idx] = adjusted
	}
	return out
}

// BenjaminiHochberg controls the false discovery rate: p*m/rank with a
// backwards cumulative minimum so adjusted values stay monotone.
func BenjaminiHochberg(pValues []float64) []float64 {
	m := len(pValues)
	order := sortedOrder(pValues)

	adjusted := make([]float64, m)
	for rank, idx := range order {
		adjusted[rank] = clampP(pValues[idx] * float64(m) / float64(rank+1))
	}
	for i := m - 2; i >= 0; i-- {
		if adjusted[i] > adjusted[i+1] {
			adjusted[i] = adjusted[i+1]
		}
	}

	out := make([]float64, m)
	for rank, idx := range order {
		out[idx] = adjusted[rank]
	}
	return out
}

// sortedOrder returns indices of pValues in ascending p order.
func sortedOrder(pValues []float64) []int {
	order := make([]int, len(pValues))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return pValues[order[i]] < pValues[order[j]]
	})
	return order
}

func clampP(p float64) float64 {
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
