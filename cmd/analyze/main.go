package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"godrift/adapters/excel"
	"godrift/adapters/ledger/jsonfile"
	"godrift/adapters/postgres"
	"godrift/app"
	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/domain/corruption"
	"godrift/domain/results"
	"godrift/internal"
	"godrift/internal/analysis/comparative"
	"godrift/internal/analysis/sensitivity"
	"godrift/internal/config"
	"godrift/internal/report"
	"godrift/internal/rng"
	"godrift/ports"
)

func main() {
	_ = godotenv.Load()

	var (
		batch      string
		correction string
		seed       int64
		mdPath     string
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "drift-analyze",
		Short: "Run the statistical battery over a recorded batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), batch, correction, seed, mdPath, exportPath)
		},
	}

	cmd.Flags().StringVar(&batch, "batch", "", "Batch ID to analyze (default: most recent)")
	cmd.Flags().StringVar(&correction, "correction", string(comparative.CorrectionHolm), "Multiple-comparison correction: bonferroni, holm, benjamini-hochberg, none")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the bootstrap resampler")
	cmd.Flags().StringVar(&mdPath, "out", "", "Write the report as markdown to this path")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write grid and report to this .xlsx path")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, batchFlag, correction string, seed int64, mdPath, exportPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewDefaultLogger().WithComponent("validation")

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	batchID, err := resolveBatch(ctx, ledger, batchFlag)
	if err != nil {
		return err
	}

	batch, err := rebuildBatch(ctx, ledger, batchID)
	if err != nil {
		return err
	}

	service := app.NewValidationService(
		sensitivity.NewBootstrapper(rng.NewAdapter(), logger, cfg.Experiment.BootstrapIters),
		sensitivity.NewSweepAnalyzer(),
		ledger,
		logger,
		comparative.CorrectionStrategy(correction),
	)

	rep, err := service.Validate(ctx, batch, seed)
	if err != nil {
		return err
	}

	fmt.Printf("report %s for batch %s\n", rep.ID, rep.BatchID)
	fmt.Printf("  procedures:     %d\n", len(rep.Procedures))
	fmt.Printf("  skipped:        %d\n", len(rep.Skipped))
	fmt.Printf("  recommendation: %s\n", rep.Recommendation)

	if mdPath != "" {
		if err := os.WriteFile(mdPath, []byte(report.Markdown(rep)), 0o644); err != nil {
			return fmt.Errorf("write markdown: %w", err)
		}
		fmt.Printf("  markdown:       %s\n", mdPath)
	}
	if exportPath != "" && len(batch.Tables) > 0 {
		exporter := excel.NewExporter()
		if err := exporter.Export(ctx, batch.Tables[0], rep, exportPath); err != nil {
			return err
		}
		fmt.Printf("  workbook:       %s\n", exportPath)
	}
	return nil
}

func resolveBatch(ctx context.Context, ledger ports.LedgerStore, flag string) (core.BatchID, error) {
	if flag != "" {
		return core.BatchID(flag), nil
	}
	batches, err := ledger.ListBatches(ctx)
	if err != nil {
		return "", err
	}
	if len(batches) == 0 {
		return "", fmt.Errorf("ledger holds no batches")
	}
	return batches[len(batches)-1], nil
}

// rebuildBatch reconstructs the in-memory batch from the ledger. The clean
// source text is recovered from an intensity=0 run, whose input is by
// definition uncorrupted; without one the parameter sweep is skipped.
func rebuildBatch(ctx context.Context, ledger ports.LedgerStore, batchID core.BatchID) (*app.BatchResult, error) {
	observations, err := ledger.LoadObservations(ctx, batchID)
	if err != nil {
		return nil, err
	}
	runs, err := ledger.LoadRuns(ctx, batchID)
	if err != nil {
		return nil, err
	}

	batch := &app.BatchResult{BatchID: batchID, Runs: runs}

	conditionSet := make(map[string]bool)
	maxReplicate := 0
	for _, obs := range observations {
		conditionSet[obs.ConditionKey] = true
		if obs.Replicate > maxReplicate {
			maxReplicate = obs.Replicate
		}
	}
	for cond := range conditionSet {
		batch.Conditions = append(batch.Conditions, cond)
	}
	sort.Slice(batch.Conditions, func(i, j int) bool {
		a, _ := corruption.ParseConditionKey(batch.Conditions[i])
		b, _ := corruption.ParseConditionKey(batch.Conditions[j])
		return a < b
	})

	for r := 0; r <= maxReplicate; r++ {
		batch.Tables = append(batch.Tables, results.NewTable())
	}
	for _, obs := range observations {
		if err := batch.Tables[obs.Replicate].Add(obs); err != nil {
			return nil, err
		}
	}

	var original string
	zeroKey := corruption.Spec{Intensity: 0}.ConditionKey()
	for _, run := range runs {
		if run.ConditionKey == zeroKey && run.State == chain.RunSucceeded {
			original = run.Input
			break
		}
	}
	if original != "" {
		for _, run := range runs {
			if run.State != chain.RunSucceeded {
				continue
			}
			intensity, ok := corruption.ParseConditionKey(run.ConditionKey)
			if !ok {
				continue
			}
			batch.Pairs = append(batch.Pairs, sensitivity.TextPair{
				Intensity: intensity,
				Original:  original,
				Final:     run.FinalText,
			})
		}
	}

	return batch, nil
}

func openLedger(cfg *config.Config) (ports.LedgerStore, error) {
	if cfg.Database.URL != "" {
		return postgres.NewObservationRepository(cfg.Database.URL)
	}
	ledger, err := jsonfile.NewLedger(cfg.Paths.LedgerDir)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}
