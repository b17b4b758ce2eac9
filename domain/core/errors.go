package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Execution errors
	ErrTransient = errors.New("transient failure")
	ErrFatal     = errors.New("fatal failure")

	// Analysis errors
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrInvariantViolation = errors.New("results table invariant violated")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrSeedMismatch     = errors.New("seed mismatch")
	ErrHashMismatch     = errors.New("hash mismatch")

	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrRunNotFound    = fmt.Errorf("%w: run", ErrNotFound)
	ErrReportNotFound = fmt.Errorf("%w: report", ErrNotFound)
)

// Error constructors with context
func NewTransientError(stage string, err error) error {
	return fmt.Errorf("%w: stage %s: %v", ErrTransient, stage, err)
}

func NewFatalError(stage string, err error) error {
	return fmt.Errorf("%w: stage %s: %v", ErrFatal, stage, err)
}

func NewInsufficientDataError(procedure string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInsufficientData, procedure, reason)
}

func NewDuplicateCellError(conditionKey, metricName string) error {
	return fmt.Errorf("%w: duplicate observation for condition %q metric %q", ErrInvariantViolation, conditionKey, metricName)
}

func NewMissingCellError(conditionKey, metricName string) error {
	return fmt.Errorf("%w: missing observation for condition %q metric %q", ErrInvariantViolation, conditionKey, metricName)
}

// Error checking helpers
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
