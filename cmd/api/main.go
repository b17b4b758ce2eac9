package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"godrift/adapters/ledger/jsonfile"
	"godrift/adapters/postgres"
	"godrift/internal"
	"godrift/internal/api"
	"godrift/internal/config"
	"godrift/ports"
)

func main() {
	_ = godotenv.Load()

	cmd := &cobra.Command{
		Use:   "drift-api",
		Short: "Serve recorded batches and validation reports over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Server.GinMode)

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	server := api.NewServer(ledger, internal.NewDefaultLogger().WithComponent("api"))
	return server.Start(":" + cfg.Server.Port)
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
