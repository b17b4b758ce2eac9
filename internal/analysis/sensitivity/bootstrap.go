package sensitivity

import (
	"context"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal"
	"godrift/ports"
)

// DefaultBootstrapIterations follows the usual B=10,000 convention.
const DefaultBootstrapIterations = 10000

// degenerateSampleSize is the n below which percentile intervals carry little
// information and the result is flagged.
const degenerateSampleSize = 8

// Bootstrapper estimates the sampling distribution of the mean by seeded
// resampling with replacement.
type Bootstrapper struct {
	rng        ports.RNGPort
	logger     *internal.Logger
	iterations int
}

// NewBootstrapper creates a bootstrapper with the given iteration count.
func NewBootstrapper(rng ports.RNGPort, logger *internal.Logger, iterations int) *Bootstrapper {
	if iterations <= 0 {
		iterations = DefaultBootstrapIterations
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Bootstrapper{rng: rng, logger: logger, iterations: iterations}
}

// Run bootstraps the mean of values. The statistic is the observed mean, the
// effect size the bias, and the confidence interval sits in the metadata.
func (b *Bootstrapper) Run(ctx context.Context, name string, values []float64, seed int64) (results.ProcedureResult, error) {
	if len(values) < 2 {
		return results.ProcedureResult{}, core.NewInsufficientDataError("bootstrap",
			fmt.Sprintf("need at least 2 values, got %d", len(values)))
	}

	degenerate := len(values) < degenerateSampleSize
	if degenerate {
		b.logger.Warn("bootstrap %s: sample size %d is small, interval will be unstable", name, len(values))
	}

	stream, err := b.rng.SeededStream(ctx, "bootstrap:"+name, seed)
	if err != nil {
		return results.ProcedureResult{}, err
	}

	observed, err := stats.Mean(values)
	if err != nil {
		return results.ProcedureResult{}, err
	}

	resampled := make([]float64, b.iterations)
	sample := make([]float64, len(values))
	for i := 0; i < b.iterations; i++ {
		for j := range sample {
			sample[j] = values[stream.Intn(len(values))]
		}
		m, _ := stats.Mean(sample)
		resampled[i] = m
	}

	sort.Float64s(resampled)
	low := percentileSorted(resampled, 2.5)
	high := percentileSorted(resampled, 97.5)

	resampleMean, _ := stats.Mean(resampled)
	bias := resampleMean - observed
	stdErr, _ := stats.StandardDeviation(resampled)

	return results.ProcedureResult{
		Name:           "bootstrap",
		Statistic:      observed,
		PValue:         0,
		EffectSize:     bias,
		Confidence:     0.95,
		Interpretation: fmt.Sprintf("%s mean %.4f, 95%% CI [%.4f, %.4f], bias %.5f", name, observed, low, high, bias),
		Metadata: map[string]interface{}{
			"target":      name,
			"iterations":  b.iterations,
			"seed":        seed,
			"sample_size": len(values),
			"ci_low":      low,
			"ci_high":     high,
			"std_error":   stdErr,
			"degenerate":  degenerate,
		},
	}, nil
}

// percentileSorted reads the pth percentile from an already sorted slice
// using linear interpolation between closest ranks.
func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
