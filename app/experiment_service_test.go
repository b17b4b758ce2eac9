package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	corruptadapter "godrift/adapters/corruption"
	"godrift/adapters/ledger/jsonfile"
	"godrift/adapters/transform"
	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/internal"
	"godrift/internal/config"
	"godrift/internal/executor"
	"godrift/internal/metrics"
	"godrift/internal/rng"
	"godrift/internal/usage"
	"godrift/ports"
)

const testSource = "The old lighthouse keeper climbed the spiral staircase every evening at dusk. " +
	"He had tended the lamp for thirty years through storms that shook the tower. " +
	"The ships that passed never knew his name but they trusted the light."

func testConfig() config.ExperimentConfig {
	return config.ExperimentConfig{
		IntensityLevels: []float64{0, 25, 50},
		SamplesPerLevel: 2,
		BaseSeed:        42,
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
		MaxConcurrent:   2,
		BootstrapIters:  200,
	}
}

func newTestService(t *testing.T, mock *transform.MockTransformer, ledger ports.LedgerPort, cfg config.ExperimentConfig) *ExperimentService {
	t.Helper()
	logger := internal.NewLogger(internal.LogLevelError)
	exec := executor.New(mock, usage.NewAccumulator(), logger, cfg.MaxRetries, cfg.BackoffBase)
	corruptor := corruptadapter.NewCorruptor(rng.NewAdapter())
	return NewExperimentService(corruptor, exec, ledger, usage.NewAccumulator(), logger, cfg)
}

func TestExperimentBatchCompletes(t *testing.T) {
	cfg := testConfig()
	service := newTestService(t, transform.NewMockTransformer(), nil, cfg)

	batch, err := service.Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err)
	require.True(t, batch.Complete())
	require.Len(t, batch.Runs, len(cfg.IntensityLevels)*cfg.SamplesPerLevel)
	require.Len(t, batch.Tables, cfg.SamplesPerLevel)

	for _, table := range batch.Tables {
		require.NoError(t, table.Validate(batch.Conditions, metrics.AllMetrics))
	}

	// The mock echoes its input, so drift comes entirely from corruption:
	// zero at intensity 0, measurable at intensity 50.
	clean, ok := batch.Tables[0].Get("intensity=0", metrics.MetricCosineDistance)
	require.True(t, ok)
	require.Equal(t, 0.0, clean.Value)

	noisy, ok := batch.Tables[0].Get("intensity=50", metrics.MetricCosineDistance)
	require.True(t, ok)
	require.Greater(t, noisy.Value, 0.0)
}

func TestExperimentFingerprintDeterministic(t *testing.T) {
	cfg := testConfig()

	first, err := newTestService(t, transform.NewMockTransformer(), nil, cfg).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err)

	second, err := newTestService(t, transform.NewMockTransformer(), nil, cfg).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err)

	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.NotEqual(t, first.BatchID, second.BatchID)
}

func TestExperimentTransientFailureRecovers(t *testing.T) {
	mock := transform.NewMockTransformer()
	mock.TransientFailures["en_to_fr"] = 2

	batch, err := newTestService(t, mock, nil, testConfig()).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err)
	require.True(t, batch.Complete(), "retries should absorb transient failures")
}

func TestExperimentFatalStageRecordsFailures(t *testing.T) {
	cfg := testConfig()
	mock := transform.NewMockTransformer()
	mock.FatalStages["fr_to_he"] = true

	batch, err := newTestService(t, mock, nil, cfg).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err, "failed runs are recorded, not returned")
	require.False(t, batch.Complete())
	require.Len(t, batch.Failed, len(cfg.IntensityLevels)*cfg.SamplesPerLevel)

	for _, table := range batch.Tables {
		require.Zero(t, table.Len(), "failed runs must not produce observations")
	}
}

func TestExperimentEmptyStageOutputFailsCondition(t *testing.T) {
	cfg := testConfig()
	mock := transform.NewMockTransformer()
	mock.EmptyStages["he_to_en"] = true

	batch, err := newTestService(t, mock, nil, cfg).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err, "failed runs are recorded, not returned")
	require.False(t, batch.Complete())
	require.Len(t, batch.Failed, len(cfg.IntensityLevels)*cfg.SamplesPerLevel)

	for _, table := range batch.Tables {
		require.Zero(t, table.Len(), "an empty final text must not produce observations")
	}
	for _, run := range batch.Runs {
		require.True(t, run.Failed())
	}
}

func TestExperimentRejectsEmptySource(t *testing.T) {
	_, err := newTestService(t, transform.NewMockTransformer(), nil, testConfig()).
		Run(context.Background(), chain.DefaultChain(), "   ")
	require.Error(t, err)
	require.True(t, core.IsFatal(err))
}

func TestExperimentPersistsToLedger(t *testing.T) {
	cfg := testConfig()
	ledger, err := jsonfile.NewLedger(t.TempDir())
	require.NoError(t, err)

	batch, err := newTestService(t, transform.NewMockTransformer(), ledger, cfg).
		Run(context.Background(), chain.DefaultChain(), testSource)
	require.NoError(t, err)

	ctx := context.Background()
	batches, err := ledger.ListBatches(ctx)
	require.NoError(t, err)
	require.Contains(t, batches, batch.BatchID)

	observations, err := ledger.LoadObservations(ctx, batch.BatchID)
	require.NoError(t, err)
	wantCells := len(cfg.IntensityLevels) * cfg.SamplesPerLevel * len(metrics.AllMetrics)
	require.Len(t, observations, wantCells)

	runs, err := ledger.LoadRuns(ctx, batch.BatchID)
	require.NoError(t, err)
	require.Len(t, runs, len(batch.Runs))
}
