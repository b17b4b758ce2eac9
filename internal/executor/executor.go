package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"godrift/domain/chain"
	"godrift/domain/core"
	"godrift/internal"
	"godrift/internal/usage"
	"godrift/ports"
)

var errEmptyOutput = errors.New("transform returned empty output")

// Request describes one chain execution.
type Request struct {
	Chain        chain.Chain
	Input        string
	ConditionKey string
	Replicate    int
}

// Executor runs translation chains stage by stage with retry on transient
// failures. A fatal error or exhausted retries fails the run; other runs in
// the same batch are unaffected.
type Executor struct {
	transformer ports.Transformer
	accumulator *usage.Accumulator
	logger      *internal.Logger
	maxRetries  int
	backoffBase time.Duration
}

// New creates an executor. maxRetries counts retries after the first attempt;
// backoffBase is the delay before the first retry and doubles per attempt.
func New(transformer ports.Transformer, accumulator *usage.Accumulator, logger *internal.Logger, maxRetries int, backoffBase time.Duration) *Executor {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	return &Executor{
		transformer: transformer,
		accumulator: accumulator,
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
	}
}

// RunChain executes all stages sequentially, feeding each stage's output into
// the next. The returned Run always carries the records for every stage that
// started, including the failed one.
func (e *Executor) RunChain(ctx context.Context, req Request) (chain.Run, error) {
	run := chain.Run{
		RunID:        core.RunID(core.NewID()),
		ChainID:      req.Chain.ID,
		ConditionKey: req.ConditionKey,
		Replicate:    req.Replicate,
		Input:        req.Input,
		State:        chain.RunRunning,
		StartedAt:    core.Now(),
	}

	current := req.Input
	for _, stage := range req.Chain.Stages {
		record, err := e.runStage(ctx, stage, current)
		run.Records = append(run.Records, record)
		run.TotalUsage.Add(record.Usage)
		if err != nil {
			run.State = chain.RunFailed
			run.FinishedAt = core.Now()
			e.logger.Warn("chain run %s failed at stage %s after %d attempts: %v",
				run.RunID, stage.Name, record.Attempts, err)
			return run, err
		}
		current = record.Output
	}

	run.FinalText = current
	run.State = chain.RunSucceeded
	run.FinishedAt = core.Now()
	return run, nil
}

// runStage drives one stage through the retry state machine:
// pending -> running -> (retrying -> running)* -> succeeded | failed.
func (e *Executor) runStage(ctx context.Context, stage chain.Stage, input string) (chain.TransformationRecord, error) {
	record := chain.TransformationRecord{
		StageName: stage.Name,
		Input:     input,
		State:     chain.StagePending,
	}

	var lastErr error
	started := time.Now()
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			record.State = chain.StageRetrying
			delay := e.backoffBase << (attempt - 1)
			e.logger.Debug("stage %s retry %d after %s", stage.Name, attempt, delay)
			select {
			case <-ctx.Done():
				record.State = chain.StageFailed
				record.Error = ctx.Err().Error()
				record.Latency = time.Since(started)
				return record, core.NewFatalError(stage.Name, ctx.Err())
			case <-time.After(delay):
			}
		}

		record.State = chain.StageRunning
		record.Attempts = attempt + 1

		result, err := e.transformer.Transform(ctx, stage, input)
		if err == nil {
			record.Usage = result.Usage
			if e.accumulator != nil {
				e.accumulator.Record(result.Usage)
			}
			// An empty output is a failure, not a success with nothing in
			// it: every downstream metric on "" is meaningless.
			if strings.TrimSpace(result.Text) == "" {
				record.State = chain.StageFailed
				record.Error = "transform returned empty output"
				record.Latency = time.Since(started)
				return record, core.NewFatalError(stage.Name, errEmptyOutput)
			}
			record.Output = result.Text
			record.State = chain.StageSucceeded
			record.Latency = time.Since(started)
			return record, nil
		}

		lastErr = err
		if core.IsFatal(err) {
			record.State = chain.StageFailed
			record.Error = err.Error()
			record.Latency = time.Since(started)
			return record, err
		}
		if !core.IsTransient(err) {
			// Unclassified errors are treated as fatal rather than burning
			// retries on something that will never succeed.
			record.State = chain.StageFailed
			record.Error = err.Error()
			record.Latency = time.Since(started)
			return record, core.NewFatalError(stage.Name, err)
		}
	}

	// Past the retry budget a transient failure is no longer retryable, so it
	// escalates to fatal for this run.
	record.State = chain.StageFailed
	record.Error = lastErr.Error()
	record.Latency = time.Since(started)
	return record, fmt.Errorf("%w: stage %s exhausted %d retries: %v", core.ErrFatal, stage.Name, e.maxRetries, lastErr)
}
