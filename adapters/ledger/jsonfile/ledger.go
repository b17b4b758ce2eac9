package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal/errors"
)

// Ledger persists runs, observations and reports as JSON files under one
// directory per batch. It is the default sink when no database is configured.
type Ledger struct {
	root string
}

// NewLedger creates the ledger root directory if needed.
func NewLedger(root string) (*Ledger, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.ConfigInvalid("ledger root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.StorageFailed("create ledger root", err)
	}
	return &Ledger{root: root}, nil
}

func (l *Ledger) batchDir(batchID core.BatchID) string {
	return filepath.Join(l.root, batchID.String())
}

// Close satisfies the store contract; the file ledger holds nothing open.
func (l *Ledger) Close() error { return nil }

// SaveRun writes one chain run as runs/<runID>.json.
func (l *Ledger) SaveRun(ctx context.Context, batchID core.BatchID, run chain.Run) error {
	dir := filepath.Join(l.batchDir(batchID), "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.StorageFailed("create runs dir", err)
	}
	return writeJSON(filepath.Join(dir, run.RunID.String()+".json"), run)
}

// SaveObservations writes the full observation list for the batch.
func (l *Ledger) SaveObservations(ctx context.Context, batchID core.BatchID, observations []results.Observation) error {
	if err := os.MkdirAll(l.batchDir(batchID), 0o755); err != nil {
		return errors.StorageFailed("create batch dir", err)
	}
	return writeJSON(filepath.Join(l.batchDir(batchID), "observations.json"), observations)
}

// SaveReport writes the validation report.
func (l *Ledger) SaveReport(ctx context.Context, report results.Report) error {
	if err := os.MkdirAll(l.batchDir(report.BatchID), 0o755); err != nil {
		return errors.StorageFailed("create batch dir", err)
	}
	return writeJSON(filepath.Join(l.batchDir(report.BatchID), "report.json"), report)
}

// ListBatches returns every batch directory, newest last.
func (l *Ledger) ListBatches(ctx context.Context) ([]core.BatchID, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, errors.StorageFailed("read ledger root", err)
	}
	var batches []core.BatchID
	for _, entry := range entries {
		if entry.IsDir() {
			batches = append(batches, core.BatchID(entry.Name()))
		}
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i] < batches[j] })
	return batches, nil
}

// LoadRuns reads every run file for the batch.
func (l *Ledger) LoadRuns(ctx context.Context, batchID core.BatchID) ([]chain.Run, error) {
	dir := filepath.Join(l.batchDir(batchID), "runs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: batch %s", core.ErrRunNotFound, batchID)
		}
		return nil, errors.StorageFailed("read runs dir", err)
	}

	var runs []chain.Run
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var run chain.Run
		if err := readJSON(filepath.Join(dir, entry.Name()), &run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID < runs[j].RunID })
	return runs, nil
}

// LoadObservations reads the batch's observation list.
func (l *Ledger) LoadObservations(ctx context.Context, batchID core.BatchID) ([]results.Observation, error) {
	var observations []results.Observation
	path := filepath.Join(l.batchDir(batchID), "observations.json")
	if err := readJSON(path, &observations); err != nil {
		return nil, err
	}
	return observations, nil
}

// LoadReport reads the batch's validation report, if one was written.
func (l *Ledger) LoadReport(ctx context.Context, batchID core.BatchID) (*results.Report, error) {
	var report results.Report
	path := filepath.Join(l.batchDir(batchID), "report.json")
	if err := readJSON(path, &report); err != nil {
		if os.IsNotExist(unwrapCause(err)) {
			return nil, fmt.Errorf("%w: batch %s", core.ErrReportNotFound, batchID)
		}
		return nil, err
	}
	return &report, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.StorageFailed("marshal "+filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.StorageFailed("write "+filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.StorageFailed("read "+filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.StorageFailed("unmarshal "+filepath.Base(path), err)
	}
	return nil
}

func unwrapCause(err error) error {
	for {
		appErr, ok := err.(*errors.AppError)
		if !ok || appErr.Cause == nil {
			return err
		}
		err = appErr.Cause
	}
}
