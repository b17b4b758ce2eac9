package comparative

import (
	"fmt"
	"math"

	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal/analysis/statutil"
)

// Cliff's delta magnitude thresholds (Romano et al.).
const (
	cliffNegligible = 0.147
	cliffSmall      = 0.330
	cliffMedium     = 0.474
)

// PairwiseComparison is one condition pair's Mann-Whitney U result with its
// Cliff's delta effect size.
type PairwiseComparison struct {
	ConditionA string  `json:"condition_a"`
	ConditionB string  `json:"condition_b"`
	UStatistic float64 `json:"u_statistic"`
	PValue     float64 `json:"p_value"`
	AdjustedP  float64 `json:"adjusted_p"`
	Delta      float64 `json:"delta"`
	Magnitude  string  `json:"magnitude"`
}

// ComparePairs runs Mann-Whitney U on every condition pair and corrects the
// p-values with the given strategy. The correction used is always part of the
// result, never implicit.
func ComparePairs(labels []string, groups [][]float64, strategy CorrectionStrategy) ([]PairwiseComparison, results.ProcedureResult, error) {
	if len(groups) < 2 {
		return nil, results.ProcedureResult{}, core.NewInsufficientDataError("pairwise",
			fmt.Sprintf("need at least 2 groups, got %d", len(groups)))
	}
	for i, g := range groups {
		if len(g) < 2 {
			return nil, results.ProcedureResult{}, core.NewInsufficientDataError("pairwise",
				fmt.Sprintf("group %q has %d values, need at least 2", labels[i], len(g)))
		}
	}

	var comparisons []PairwiseComparison
	var rawPs []float64
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			u, p := MannWhitneyU(groups[i], groups[j])
			delta := CliffsDelta(groups[i], groups[j])
			comparisons = append(comparisons, PairwiseComparison{
				ConditionA: labels[i],
				ConditionB: labels[j],
				UStatistic: u,
				PValue:     p,
				Delta:      delta,
				Magnitude:  DeltaMagnitude(delta),
			})
			rawPs = append(rawPs, p)
		}
	}

	adjusted := Adjust(rawPs, strategy)
	significant := 0
	for i := range comparisons {
		comparisons[i].AdjustedP = adjusted[i]
		if adjusted[i] < 0.05 {
			significant++
		}
	}

	minAdjusted := 1.0
	maxAbsDelta := 0.0
	for _, c := range comparisons {
		if c.AdjustedP < minAdjusted {
			minAdjusted = c.AdjustedP
		}
		if math.Abs(c.Delta) > maxAbsDelta {
			maxAbsDelta = math.Abs(c.Delta)
		}
	}

	summary := results.ProcedureResult{
		Name:       "pairwise_mann_whitney",
		Statistic:  float64(significant),
		PValue:     minAdjusted,
		EffectSize: maxAbsDelta,
		Confidence: statutil.Confidence(minAdjusted),
		Interpretation: fmt.Sprintf("%d of %d pairwise comparisons significant after %s correction",
			significant, len(comparisons), strategy),
		Metadata: map[string]interface{}{
			"correction":  string(strategy),
			"comparisons": comparisons,
		},
	}
	return comparisons, summary, nil
}

// MannWhitneyU computes the two-sided Mann-Whitney U test using the normal
// approximation with tie correction.
func MannWhitneyU(a, b []float64) (u, p float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	combined := make([]float64, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	ranks := statutil.Ranks(combined)

	r1 := 0.0
	for i := range a {
		r1 += ranks[i]
	}

	u1 := r1 - n1*(n1+1)/2
	u2 := n1*n2 - u1
	u = math.Min(u1, u2)

	mean := n1 * n2 / 2

	// Tie correction for the variance.
	n := n1 + n2
	tieSum := 0.0
	counts := make(map[float64]float64)
	for _, v := range combined {
		counts[v]++
	}
	for _, t := range counts {
		tieSum += t*t*t - t
	}

	variance := n1 * n2 / 12 * ((n + 1) - tieSum/(n*(n-1)))
	if variance <= 0 {
		// Every value tied: no evidence either way.
		return u, 1.0
	}

	z := (u - mean) / math.Sqrt(variance)
	return u, statutil.NormalTwoTailedP(z)
}

// CliffsDelta measures how often values in b exceed values in a, as a signed
// proportion of all pairs.
func CliffsDelta(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	greater, less := 0, 0
	for _, x := range a {
		for _, y := range b {
			switch {
			case y > x:
				greater++
			case y < x:
				less++
			}
		}
	}
	return float64(greater-less) / float64(len(a)*len(b))
}

// DeltaMagnitude labels a Cliff's delta using the conventional thresholds.
func DeltaMagnitude(delta float64) string {
	abs := math.Abs(delta)
	switch {
	case abs < cliffNegligible:
		return "negligible"
	case abs < cliffSmall:
		return "small"
	case abs < cliffMedium:
		return "medium"
	default:
		return "large"
	}
}
