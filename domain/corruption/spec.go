package corruption

import (
	"fmt"

	"godrift/domain/core"
)

// Operator identifies a character-level corruption operation.
type Operator string

const (
	OpSubstitution  Operator = "substitution"
	OpDeletion      Operator = "deletion"
	OpTransposition Operator = "transposition"
)

// Operator selection weights. Substitution is favoured because it degrades
// meaning without changing token boundaries.
const (
	WeightSubstitution  = 0.4
	WeightDeletion      = 0.3
	WeightTransposition = 0.3
)

// Spec describes one corruption condition: how hard to corrupt and with
// which seed. Intensity is a percentage of characters to touch.
type Spec struct {
	Intensity float64 `json:"intensity"`
	Seed      int64   `json:"seed"`
}

// Validate rejects intensities outside [0, 100].
func (s Spec) Validate() error {
	if s.Intensity < 0 || s.Intensity > 100 {
		return fmt.Errorf("%w: intensity %.2f outside [0,100]", core.ErrFatal, s.Intensity)
	}
	return nil
}

// ConditionKey renders the spec as a stable grid key, e.g. "intensity=30".
func (s Spec) ConditionKey() string {
	return fmt.Sprintf("intensity=%g", s.Intensity)
}

// ParseConditionKey reads the intensity back out of a grid key produced by
// ConditionKey. The second return is false for malformed keys.
func ParseConditionKey(key string) (float64, bool) {
	var intensity float64
	if _, err := fmt.Sscanf(key, "intensity=%g", &intensity); err != nil {
		return 0, false
	}
	return intensity, true
}

// Result is the outcome of corrupting one text under one Spec.
type Result struct {
	Original         string           `json:"original"`
	Corrupted        string           `json:"corrupted"`
	PositionsTouched int              `json:"positions_touched"`
	OperatorCounts   map[Operator]int `json:"operator_counts"`
	Fingerprint      core.Fingerprint `json:"fingerprint"`
}
