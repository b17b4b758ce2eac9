package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	corruptadapter "godrift/adapters/corruption"
	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/domain/corruption"
	"godrift/domain/results"
	"godrift/internal"
	"godrift/internal/analysis/sensitivity"
	"godrift/internal/config"
	"godrift/internal/executor"
	"godrift/internal/metrics"
	"godrift/internal/usage"
	"godrift/ports"
)

// FailedRun records a chain run that did not complete, so the batch report
// can say exactly which cells are missing and why.
type FailedRun struct {
	ConditionKey string `json:"condition_key"`
	Replicate    int    `json:"replicate"`
	Error        string `json:"error"`
}

// BatchResult is the output of one experiment batch: per-replicate observation
// tables plus everything the validation stage needs.
type BatchResult struct {
	BatchID     core.BatchID
	Conditions  []string
	Tables      []*results.Table
	Runs        []chain.Run
	Failed      []FailedRun
	Pairs       []sensitivity.TextPair
	TotalUsage  chain.Usage
	Fingerprint core.Fingerprint
}

// Complete reports whether every chain run landed.
func (b *BatchResult) Complete() bool { return len(b.Failed) == 0 }

// ExperimentService orchestrates a drift experiment: corrupt the source text
// at each intensity level, push each corrupted copy through the translation
// chain, and measure drift of the final text against the clean original.
type ExperimentService struct {
	corruptor   *corruptadapter.Corruptor
	executor    *executor.Executor
	ledger      ports.LedgerPort
	accumulator *usage.Accumulator
	logger      *internal.Logger
	cfg         config.ExperimentConfig
}

// NewExperimentService wires the experiment pipeline. ledger may be nil for
// dry runs.
func NewExperimentService(
	corruptor *corruptadapter.Corruptor,
	exec *executor.Executor,
	ledger ports.LedgerPort,
	accumulator *usage.Accumulator,
	logger *internal.Logger,
	cfg config.ExperimentConfig,
) *ExperimentService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ExperimentService{
		corruptor:   corruptor,
		executor:    exec,
		ledger:      ledger,
		accumulator: accumulator,
		logger:      logger,
		cfg:         cfg,
	}
}

// ConditionKeys renders the configured intensity levels as grid keys.
func (s *ExperimentService) ConditionKeys() []string {
	keys := make([]string, len(s.cfg.IntensityLevels))
	for i, level := range s.cfg.IntensityLevels {
		keys[i] = corruption.Spec{Intensity: level}.ConditionKey()
	}
	return keys
}

// conditionSeed derives a per-condition, per-replicate seed from the base
// seed so any cell can be replayed in isolation.
func conditionSeed(baseSeed int64, conditionKey string, replicate int) int64 {
	h := core.NewHash([]byte(conditionKey))
	var folded int64
	for _, c := range h.String()[:16] {
		folded = folded*31 + int64(c)
	}
	return baseSeed + folded + int64(replicate)*7919
}

// Run executes the full batch with bounded concurrency. A failed chain run
// marks its cell as failed and the rest of the batch keeps going.
func (s *ExperimentService) Run(ctx context.Context, kch chain.Chain, sourceText string) (*BatchResult, error) {
	if strings.TrimSpace(sourceText) == "" {
		return nil, core.NewFatalError("experiment", fmt.Errorf("source text is empty"))
	}
	if err := s.corruptor.AuditReplay(ctx, s.cfg.BaseSeed); err != nil {
		return nil, core.NewFatalError("experiment", err)
	}

	batch := &BatchResult{
		BatchID:    core.BatchID(core.NewID()),
		Conditions: s.ConditionKeys(),
	}
	for r := 0; r < s.cfg.SamplesPerLevel; r++ {
		batch.Tables = append(batch.Tables, results.NewTable())
	}

	s.logger.Info("batch %s: %d conditions x %d replicates, chain %s",
		batch.BatchID, len(s.cfg.IntensityLevels), s.cfg.SamplesPerLevel, kch.Hash())

	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrent))
	var wg sync.WaitGroup
	var mu sync.Mutex

	var corruptedInputs []string
	var invariantErr error

	for _, level := range s.cfg.IntensityLevels {
		for replicate := 0; replicate < s.cfg.SamplesPerLevel; replicate++ {
			spec := corruption.Spec{
				Intensity: level,
				Seed:      conditionSeed(s.cfg.BaseSeed, corruption.Spec{Intensity: level}.ConditionKey(), replicate),
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return batch, core.NewFatalError("experiment", err)
			}
			wg.Add(1)

			go func(spec corruption.Spec, replicate int) {
				defer sem.Release(1)
				defer wg.Done()

				condKey := spec.ConditionKey()

				corrupted, err := s.corruptor.Corrupt(ctx, sourceText, spec)
				if err != nil {
					mu.Lock()
					batch.Failed = append(batch.Failed, FailedRun{condKey, replicate, err.Error()})
					mu.Unlock()
					return
				}

				run, err := s.executor.RunChain(ctx, executor.Request{
					Chain:        kch,
					Input:        corrupted.Corrupted,
					ConditionKey: condKey,
					Replicate:    replicate,
				})

				mu.Lock()
				defer mu.Unlock()

				corruptedInputs = append(corruptedInputs, condKey+":"+corrupted.Corrupted)
				batch.Runs = append(batch.Runs, run)
				batch.TotalUsage.Add(run.TotalUsage)

				if err != nil {
					batch.Failed = append(batch.Failed, FailedRun{condKey, replicate, err.Error()})
					s.logger.Warn("batch %s: run %s/%d failed: %v", batch.BatchID, condKey, replicate, err)
					return
				}

				scores := metrics.Compute(sourceText, run.FinalText)
				for _, metricName := range metrics.AllMetrics {
					obs := results.Observation{
						ID:           core.ObservationID(core.NewID()),
						ConditionKey: condKey,
						MetricName:   metricName,
						Value:        scores.Value(metricName),
						RunID:        run.RunID,
						Replicate:    replicate,
						CreatedAt:    core.Now(),
					}
					if addErr := batch.Tables[replicate].Add(obs); addErr != nil {
						// A duplicate cell means the grid bookkeeping itself
						// is broken; that must surface, not be smoothed over.
						invariantErr = addErr
						return
					}
				}

				batch.Pairs = append(batch.Pairs, sensitivity.TextPair{
					Intensity: spec.Intensity,
					Original:  sourceText,
					Final:     run.FinalText,
				})
			}(spec, replicate)
		}
	}

	wg.Wait()

	if invariantErr != nil {
		return batch, invariantErr
	}

	// Stable fingerprint over the corrupted inputs proves two batches saw
	// the same noise.
	sorted := append([]string(nil), corruptedInputs...)
	sort.Strings(sorted)
	batch.Fingerprint = core.NewFingerprint([]byte(strings.Join(sorted, "\n")))

	s.logger.Info("batch %s: %d runs, %d failed, %d tokens",
		batch.BatchID, len(batch.Runs), len(batch.Failed), batch.TotalUsage.TotalTokens)

	if s.ledger != nil {
		if err := s.persist(ctx, batch); err != nil {
			return batch, err
		}
	}

	return batch, nil
}

func (s *ExperimentService) persist(ctx context.Context, batch *BatchResult) error {
	for _, run := range batch.Runs {
		if err := s.ledger.SaveRun(ctx, batch.BatchID, run); err != nil {
			return err
		}
	}
	var observations []results.Observation
	for _, table := range batch.Tables {
		observations = append(observations, table.Observations()...)
	}
	return s.ledger.SaveObservations(ctx, batch.BatchID, observations)
}
