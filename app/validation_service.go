package app

import (
	"context"
	"fmt"

	"godrift/domain/core"
	"godrift/domain/corruption"
	"godrift/domain/results"
	"godrift/internal"
	"godrift/internal/analysis/comparative"
	"godrift/internal/analysis/sensitivity"
	"godrift/internal/metrics"
	"godrift/ports"
)

// ValidationService runs the statistical battery over a completed results
// table. The table barrier comes first: a single missing cell stops the
// whole analysis with an invariant violation.
type ValidationService struct {
	bootstrapper *sensitivity.Bootstrapper
	sweeper      *sensitivity.SweepAnalyzer
	ledger       ports.LedgerPort
	logger       *internal.Logger
	correction   comparative.CorrectionStrategy
	alpha        float64
}

// NewValidationService wires the battery. ledger may be nil.
func NewValidationService(
	bootstrapper *sensitivity.Bootstrapper,
	sweeper *sensitivity.SweepAnalyzer,
	ledger ports.LedgerPort,
	logger *internal.Logger,
	correction comparative.CorrectionStrategy,
) *ValidationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if correction == "" {
		correction = comparative.CorrectionHolm
	}
	return &ValidationService{
		bootstrapper: bootstrapper,
		sweeper:      sweeper,
		ledger:       ledger,
		logger:       logger,
		correction:   correction,
		alpha:        0.05,
	}
}

// Validate checks the grid barrier, then runs diagnostics, the omnibus test,
// pairwise comparisons, correlations, regression and the sensitivity checks.
// Procedures that cannot run are reported as skipped with their reason.
func (s *ValidationService) Validate(ctx context.Context, batch *BatchResult, seed int64) (*results.Report, error) {
	if len(batch.Tables) == 0 {
		return nil, core.NewInsufficientDataError("validation", "no replicate tables")
	}

	// Barrier: every replicate grid must be complete before anything runs.
	for i, table := range batch.Tables {
		if err := table.Validate(batch.Conditions, metrics.AllMetrics); err != nil {
			return nil, fmt.Errorf("replicate %d incomplete: %w", i, err)
		}
	}

	report := &results.Report{
		ID:         core.ReportID(core.NewID()),
		BatchID:    batch.BatchID,
		TableHash:  batch.Tables[0].Hash(),
		MetricName: metrics.MetricCosineDistance,
		Conditions: batch.Conditions,
		CreatedAt:  core.Now(),
	}

	groups, err := results.MergeReplicates(batch.Tables, metrics.MetricCosineDistance, batch.Conditions)
	if err != nil {
		return nil, err
	}

	labels := groups.Conditions
	samples := make([][]float64, len(labels))
	for i, cond := range labels {
		samples[i] = groups.Sample(cond)
	}

	// Diagnostics drive the recommendation; the rest of the battery runs
	// either way so the report shows the full picture.
	diagnostics, err := comparative.RunDiagnostics(labels, samples)
	if err != nil {
		s.skip(report, "diagnostics", err)
		report.Recommendation = results.RecommendNonparametric
	} else {
		report.Recommendation = diagnostics.Recommendation
		report.Procedures = append(report.Procedures, diagnostics.Normality...)
		report.Procedures = append(report.Procedures, diagnostics.Homogeneity...)
	}

	if anova, err := sensitivity.OneWayANOVA(labels, samples); err != nil {
		s.skip(report, "anova", err)
	} else {
		report.Procedures = append(report.Procedures, anova)
	}

	if len(samples) >= 2 {
		if d, err := sensitivity.CohensD(samples[0], samples[len(samples)-1]); err != nil {
			s.skip(report, "cohens_d", err)
		} else {
			report.Procedures = append(report.Procedures, results.ProcedureResult{
				Name:           "cohens_d",
				Statistic:      d,
				EffectSize:     d,
				Interpretation: fmt.Sprintf("standardized drift gap between %s and %s: d=%.2f", labels[0], labels[len(labels)-1], d),
			})
		}
	}

	if _, summary, err := comparative.ComparePairs(labels, samples, s.correction); err != nil {
		s.skip(report, "pairwise_mann_whitney", err)
	} else {
		report.Procedures = append(report.Procedures, summary)
	}

	intensities, values := flattenByIntensity(labels, samples)
	if battery, err := comparative.CorrelationBattery(intensities, values); err != nil {
		s.skip(report, "correlation", err)
	} else {
		report.Procedures = append(report.Procedures, battery...)
	}

	if regression, err := comparative.SelectPolynomial(intensities, values); err != nil {
		s.skip(report, "polynomial_regression", err)
	} else {
		report.Procedures = append(report.Procedures, regression)
	}

	if s.sweeper != nil {
		if sweep, err := s.sweeper.Analyze(batch.Pairs); err != nil {
			s.skip(report, "parameter_sweep", err)
		} else {
			report.Procedures = append(report.Procedures, sweep)
		}
	}

	if s.bootstrapper != nil {
		if bootstrap, err := s.bootstrapper.Run(ctx, metrics.MetricCosineDistance, values, seed); err != nil {
			s.skip(report, "bootstrap", err)
		} else {
			report.Procedures = append(report.Procedures, bootstrap)
		}
	}

	for _, failed := range batch.Failed {
		report.Skipped = append(report.Skipped, results.SkippedProcedure{
			Name:   "run:" + failed.ConditionKey,
			Reason: failed.Error,
		})
	}

	s.logger.Info("report %s: %d procedures, %d skipped, recommendation %s",
		report.ID, len(report.Procedures), len(report.Skipped), report.Recommendation)

	if s.ledger != nil {
		if err := s.ledger.SaveReport(ctx, *report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *ValidationService) skip(report *results.Report, name string, err error) {
	if !core.IsInsufficientData(err) {
		s.logger.Warn("procedure %s failed: %v", name, err)
	}
	report.Skipped = append(report.Skipped, results.SkippedProcedure{Name: name, Reason: err.Error()})
}

// flattenByIntensity expands per-condition samples into paired
// (intensity, value) series for correlation and regression.
func flattenByIntensity(labels []string, samples [][]float64) ([]float64, []float64) {
	var xs, ys []float64
	for i, label := range labels {
		intensity := parseIntensity(label)
		for _, v := range samples[i] {
			xs = append(xs, intensity)
			ys = append(ys, v)
		}
	}
	return xs, ys
}

func parseIntensity(conditionKey string) float64 {
	intensity, ok := corruption.ParseConditionKey(conditionKey)
	if !ok {
		return 0
	}
	return intensity
}
