package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	corruptadapter "godrift/adapters/corruption"
	"godrift/adapters/excel"
	"godrift/adapters/ledger/jsonfile"
	"godrift/adapters/postgres"
	"godrift/adapters/transform"
	"godrift/app"
	"godrift/domain/chain"
	"godrift/internal"
	"godrift/internal/config"
	"godrift/internal/executor"
	"godrift/internal/rng"
	"godrift/internal/usage"
	"godrift/ports"
)

// defaultSource is used when no input text is given, so a dry run works out
// of the box.
const defaultSource = `The old lighthouse keeper climbed the spiral staircase every evening at dusk.
He had tended the lamp for thirty years, through storms that shook the tower
and calm nights when the sea lay flat as glass. The ships that passed never
knew his name, but they trusted the light without thinking about it.`

func main() {
	_ = godotenv.Load()

	var (
		text       string
		textFile   string
		exportPath string
		useMock    bool
	)

	cmd := &cobra.Command{
		Use:   "drift-experiment",
		Short: "Run a corruption-intensity batch through the translation chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := text
			if textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("read source text: %w", err)
				}
				source = string(data)
			}
			if source == "" {
				source = defaultSource
			}
			return run(cmd.Context(), source, exportPath, useMock)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Source text to corrupt and translate")
	cmd.Flags().StringVar(&textFile, "file", "", "File containing the source text")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the observation grid to this .xlsx path")
	cmd.Flags().BoolVar(&useMock, "mock", false, "Use the echo transformer instead of the OpenAI API")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, source, exportPath string, useMock bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewDefaultLogger().WithComponent("experiment")

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	transformer, err := buildTransformer(cfg, useMock)
	if err != nil {
		return err
	}

	accumulator := usage.NewAccumulator()
	exec := executor.New(transformer, accumulator, logger,
		cfg.Experiment.MaxRetries, cfg.Experiment.BackoffBase)
	corruptor := corruptadapter.NewCorruptor(rng.NewAdapter())

	service := app.NewExperimentService(corruptor, exec, ledger, accumulator, logger, cfg.Experiment)

	batch, err := service.Run(ctx, chain.DefaultChain(), source)
	if err != nil {
		return err
	}

	fmt.Printf("batch %s finished\n", batch.BatchID)
	fmt.Printf("  conditions:  %d\n", len(batch.Conditions))
	fmt.Printf("  runs:        %d (%d failed)\n", len(batch.Runs), len(batch.Failed))
	fmt.Printf("  tokens:      %d\n", batch.TotalUsage.TotalTokens)
	fmt.Printf("  fingerprint: %s\n", batch.Fingerprint)

	if exportPath != "" && len(batch.Tables) > 0 {
		exporter := excel.NewExporter()
		if err := exporter.Export(ctx, batch.Tables[0], nil, exportPath); err != nil {
			return err
		}
		fmt.Printf("  exported:    %s\n", exportPath)
	}
	return nil
}

func buildTransformer(cfg *config.Config, useMock bool) (ports.Transformer, error) {
	if useMock || cfg.AI.OpenAIKey == "" {
		internal.DefaultLogger.Warn("no API key configured, using echo transformer")
		return transform.NewMockTransformer(), nil
	}
	return transform.NewTransformer(transform.Config{
		APIKey:      cfg.AI.OpenAIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.OpenAIModel,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})
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
