package sensitivity

import (
	"fmt"
	"math"

	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal/analysis/statutil"
	"godrift/internal/metrics"
)

// DefaultDimensions are the vocabulary caps swept to check that the
// intensity/drift relationship does not hinge on one TF-IDF configuration.
var DefaultDimensions = []int{100, 250, 500, 1000, 2000, 5000}

// StabilityThreshold is the maximum rho spread across dimensions for the
// relationship to be called stable.
const StabilityThreshold = 0.1

// TextPair is one condition's original/final text pair with its intensity.
type TextPair struct {
	Intensity float64
	Original  string
	Final     string
}

// SweepAnalyzer recomputes cosine distances under different vocabulary caps
// and checks that the intensity correlation survives all of them.
type SweepAnalyzer struct {
	dimensions []int
}

// NewSweepAnalyzer creates a sweep over the default dimension grid.
func NewSweepAnalyzer() *SweepAnalyzer {
	return &SweepAnalyzer{dimensions: DefaultDimensions}
}

// NewSweepAnalyzerWithDimensions creates a sweep over a custom grid.
func NewSweepAnalyzerWithDimensions(dimensions []int) *SweepAnalyzer {
	if len(dimensions) == 0 {
		dimensions = DefaultDimensions
	}
	return &SweepAnalyzer{dimensions: dimensions}
}

// Analyze runs the sweep. The statistic is the rho spread across dimensions;
// the effect size is the mean rho.
func (s *SweepAnalyzer) Analyze(pairs []TextPair) (results.ProcedureResult, error) {
	if len(pairs) < 3 {
		return results.ProcedureResult{}, core.NewInsufficientDataError("parameter_sweep",
			fmt.Sprintf("need at least 3 text pairs, got %d", len(pairs)))
	}

	intensities := make([]float64, len(pairs))
	for i, pair := range pairs {
		intensities[i] = pair.Intensity
	}

	perDimension := make([]map[string]interface{}, 0, len(s.dimensions))
	minRho, maxRho := math.Inf(1), math.Inf(-1)
	sumRho, worstP := 0.0, 0.0

	for _, dim := range s.dimensions {
		distances := make([]float64, len(pairs))
		for i, pair := range pairs {
			distances[i] = metrics.CosineDistanceWithFeatures(pair.Original, pair.Final, dim)
		}

		rho, pValue := SpearmanRho(intensities, distances)
		sumRho += rho
		if pValue > worstP {
			worstP = pValue
		}
		if rho < minRho {
			minRho = rho
		}
		if rho > maxRho {
			maxRho = rho
		}

		perDimension = append(perDimension, map[string]interface{}{
			"max_features": dim,
			"rho":          rho,
			"p_value":      pValue,
		})
	}

	spread := maxRho - minRho
	meanRho := sumRho / float64(len(s.dimensions))

	interpretation := fmt.Sprintf("intensity/drift correlation stable across %d vocabulary sizes (spread %.3f)", len(s.dimensions), spread)
	if spread > StabilityThreshold {
		interpretation = fmt.Sprintf("intensity/drift correlation varies with vocabulary size (spread %.3f exceeds %.2f)", spread, StabilityThreshold)
	}

	return results.ProcedureResult{
		Name:           "parameter_sweep",
		Statistic:      spread,
		PValue:         worstP,
		EffectSize:     meanRho,
		Confidence:     statutil.Clamp(1-spread/StabilityThreshold*0.5, 0, 1),
		Interpretation: interpretation,
		Metadata: map[string]interface{}{
			"dimensions": perDimension,
			"min_rho":    minRho,
			"max_rho":    maxRho,
			"stable":     spread <= StabilityThreshold,
		},
	}, nil
}

// SpearmanRho computes Spearman's rank correlation with tie-averaged ranks
// and a t-distribution two-tailed p-value.
func SpearmanRho(x, y []float64) (float64, float64) {
	n := len(x)
	if n != len(y) || n < 3 {
		return 0, 1.0
	}

	xRanks := statutil.Ranks(x)
	yRanks := statutil.Ranks(y)

	// Pearson on ranks handles ties correctly; the classic d² formula does not.
	rho := statutil.Pearson(xRanks, yRanks)

	if math.Abs(rho) >= 1 {
		return rho, 0.0
	}

	df := float64(n - 2)
	t := rho * math.Sqrt(df/(1-rho*rho))
	return rho, statutil.TTwoTailedP(t, df)
}
