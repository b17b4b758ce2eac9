package ports

import (
	"context"

	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/domain/results"
)

// LedgerPort persists experiment outputs.
type LedgerPort interface {
	SaveRun(ctx context.Context, batchID core.BatchID, run chain.Run) error
	SaveObservations(ctx context.Context, batchID core.BatchID, observations []results.Observation) error
	SaveReport(ctx context.Context, report results.Report) error
}

// LedgerReaderPort reads back what the ledger holds, for analysis and the
// dashboard.
type LedgerReaderPort interface {
	ListBatches(ctx context.Context) ([]core.BatchID, error)
	LoadRuns(ctx context.Context, batchID core.BatchID) ([]chain.Run, error)
	LoadObservations(ctx context.Context, batchID core.BatchID) ([]results.Observation, error)
	LoadReport(ctx context.Context, batchID core.BatchID) (*results.Report, error)
}

// LedgerStore is a ledger that serves both sides.
type LedgerStore interface {
	LedgerPort
	LedgerReaderPort
	Close() error
}
