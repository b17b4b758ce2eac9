package sensitivity

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal/analysis/statutil"
)

// OneWayANOVA tests whether group means differ across conditions. Requires
// at least 2 groups with at least 2 values each; anything less is reported
// as insufficient data, not computed anyway.
func OneWayANOVA(labels []string, groups [][]float64) (results.ProcedureResult, error) {
	if len(groups) < 2 {
		return results.ProcedureResult{}, core.NewInsufficientDataError("anova",
			fmt.Sprintf("need at least 2 groups, got %d", len(groups)))
	}
	for i, g := range groups {
		if len(g) < 2 {
			return results.ProcedureResult{}, core.NewInsufficientDataError("anova",
				fmt.Sprintf("group %q has %d values, need at least 2", labels[i], len(g)))
		}
	}

	totalN := 0
	grandSum := 0.0
	for _, g := range groups {
		for _, v := range g {
			grandSum += v
			totalN++
		}
	}
	grandMean := grandSum / float64(totalN)

	ssBetween, ssWithin := 0.0, 0.0
	for _, g := range groups {
		mean, _ := stats.Mean(g)
		ssBetween += float64(len(g)) * (mean - grandMean) * (mean - grandMean)
		for _, v := range g {
			ssWithin += (v - mean) * (v - mean)
		}
	}
	ssTotal := ssBetween + ssWithin

	dfBetween := float64(len(groups) - 1)
	dfWithin := float64(totalN - len(groups))
	if dfWithin <= 0 {
		return results.ProcedureResult{}, core.NewInsufficientDataError("anova", "no within-group degrees of freedom")
	}

	msBetween := ssBetween / dfBetween
	msWithin := ssWithin / dfWithin

	var fStat, pValue float64
	if msWithin == 0 {
		// All groups internally constant. Identical means give F=0; any mean
		// difference is infinitely strong evidence.
		if ssBetween == 0 {
			fStat, pValue = 0, 1.0
		} else {
			fStat, pValue = math.MaxFloat64, 0.0
		}
	} else {
		fStat = msBetween / msWithin
		pValue = statutil.FSurvival(fStat, dfBetween, dfWithin)
	}

	etaSquared := 0.0
	if ssTotal > 0 {
		etaSquared = ssBetween / ssTotal
	}

	interpretation := fmt.Sprintf("no significant mean difference across %d conditions (F=%.3f, p=%.4f)", len(groups), fStat, pValue)
	if pValue < 0.05 {
		interpretation = fmt.Sprintf("condition means differ (F=%.3f, p=%.4f, eta²=%.3f)", fStat, pValue, etaSquared)
	}

	return results.ProcedureResult{
		Name:           "anova",
		Statistic:      fStat,
		PValue:         pValue,
		EffectSize:     etaSquared,
		Confidence:     statutil.Confidence(pValue),
		Interpretation: interpretation,
		Metadata: map[string]interface{}{
			"groups":      labels,
			"df_between":  dfBetween,
			"df_within":   dfWithin,
			"ss_between":  ssBetween,
			"ss_within":   ssWithin,
			"grand_mean":  grandMean,
			"sample_size": totalN,
		},
	}, nil
}

// CohensD computes the standardized mean difference between two groups using
// the pooled standard deviation.
func CohensD(a, b []float64) (float64, error) {
	if len(a) < 2 || len(b) < 2 {
		return 0, core.NewInsufficientDataError("cohens_d", "both groups need at least 2 values")
	}

	meanA, _ := stats.Mean(a)
	meanB, _ := stats.Mean(b)
	varA, _ := stats.SampleVariance(a)
	varB, _ := stats.SampleVariance(b)

	nA, nB := float64(len(a)), float64(len(b))
	pooled := math.Sqrt(((nA-1)*varA + (nB-1)*varB) / (nA + nB - 2))
	if pooled == 0 {
		if meanA == meanB {
			return 0, nil
		}
		// Zero variance with different means: saturate rather than divide.
		return math.Copysign(math.MaxFloat64, meanB-meanA), nil
	}
	return (meanB - meanA) / pooled, nil
}
