package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"godrift/adapters/transform"
	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal"
	"godrift/internal/analysis/comparative"
	"godrift/internal/analysis/sensitivity"
	"godrift/internal/config"
	"godrift/internal/metrics"
	"godrift/internal/rng"
)

func newValidationService(t *testing.T) *ValidationService {
	t.Helper()
	logger := internal.NewLogger(internal.LogLevelError)
	return NewValidationService(
		sensitivity.NewBootstrapper(rng.NewAdapter(), logger, 200),
		sensitivity.NewSweepAnalyzer(),
		nil,
		logger,
		comparative.CorrectionHolm,
	)
}

func runTestBatch(t *testing.T) *BatchResult {
	t.Helper()
	cfg := config.ExperimentConfig{
		IntensityLevels: []float64{0, 20, 40, 60},
		SamplesPerLevel: 3,
		BaseSeed:        42,
		MaxRetries:      1,
		BackoffBase:     0,
		MaxConcurrent:   4,
	}
	batch, err := newTestService(t, transform.NewMockTransformer(), nil, cfg).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err)
	require.True(t, batch.Complete())
	return batch
}

func TestValidationProducesFullReport(t *testing.T) {
	batch := runTestBatch(t)
	report, err := newValidationService(t).Validate(context.Background(), batch, 42)
	require.NoError(t, err)

	require.Equal(t, batch.BatchID, report.BatchID)
	require.Equal(t, metrics.MetricCosineDistance, report.MetricName)
	require.Contains(t, []string{results.RecommendParametric, results.RecommendNonparametric}, report.Recommendation)

	for _, name := range []string{"anova", "cohens_d", "pairwise_mann_whitney", "polynomial_regression", "bootstrap"} {
		if _, ok := report.Find(name); !ok {
			require.True(t, hasSkip(report, name), "procedure %s neither ran nor was skipped", name)
		}
	}

	// Drift is produced by corruption alone here, so it must rise with
	// intensity and the correlation battery should see that.
	pearson, ok := report.Find("pearson")
	require.True(t, ok)
	require.Greater(t, pearson.Statistic, 0.5)

	spearman, ok := report.Find("spearman")
	require.True(t, ok)
	require.Greater(t, spearman.Statistic, 0.5)
}

func TestValidationBarrierRejectsIncompleteGrid(t *testing.T) {
	batch := runTestBatch(t)

	// Rebuild the last replicate with one cell withheld.
	partial := results.NewTable()
	skipped := false
	for _, obs := range batch.Tables[len(batch.Tables)-1].Observations() {
		if !skipped && obs.MetricName == metrics.MetricCosineDistance {
			skipped = true
			continue
		}
		require.NoError(t, partial.Add(obs))
	}
	batch.Tables[len(batch.Tables)-1] = partial

	_, err := newValidationService(t).Validate(context.Background(), batch, 42)
	require.Error(t, err)
	require.True(t, core.IsInvariantViolation(err))
}

func TestValidationRequiresTables(t *testing.T) {
	batch := &BatchResult{BatchID: core.BatchID(core.NewID())}
	_, err := newValidationService(t).Validate(context.Background(), batch, 42)
	require.Error(t, err)
	require.True(t, core.IsInsufficientData(err))
}

func TestValidationReportsFailedRuns(t *testing.T) {
	batch := runTestBatch(t)
	batch.Failed = append(batch.Failed, FailedRun{
		ConditionKey: "intensity=80",
		Replicate:    1,
		Error:        "mock fatal failure",
	})

	report, err := newValidationService(t).Validate(context.Background(), batch, 42)
	require.NoError(t, err)

	found := false
	for _, s := range report.Skipped {
		if strings.HasPrefix(s.Name, "run:") {
			found = true
		}
	}
	require.True(t, found, "failed runs must surface in the report")
}

func TestValidationDeterministicAcrossCalls(t *testing.T) {
	batch := runTestBatch(t)
	service := newValidationService(t)

	first, err := service.Validate(context.Background(), batch, 7)
	require.NoError(t, err)
	second, err := service.Validate(context.Background(), batch, 7)
	require.NoError(t, err)

	b1, ok1 := first.Find("bootstrap")
	b2, ok2 := second.Find("bootstrap")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, b1.Statistic, b2.Statistic)
	require.Equal(t, b1.Metadata["ci_low"], b2.Metadata["ci_low"])
}

func hasSkip(report *results.Report, name string) bool {
	for _, s := range report.Skipped {
		if s.Name == name {
			return true
		}
	}
	return false
}
