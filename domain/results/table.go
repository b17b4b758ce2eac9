package results

import (
	"fmt"
	"sort"

	"godrift/domain/core"
)

// Observation is one measured metric value for one experimental condition.
type Observation struct {
	ID           core.ObservationID `json:"id"`
	ConditionKey string             `json:"condition_key"`
	MetricName   string             `json:"metric_name"`
	Value        float64            `json:"value"`
	RunID        core.RunID         `json:"run_id"`
	Replicate    int                `json:"replicate"`
	CreatedAt    core.Timestamp     `json:"created_at"`
}

func cellKey(conditionKey, metricName string) string {
	return conditionKey + "\x1f" + metricName
}

// Table is a condition x metric observation grid. The invariant is strict:
// exactly one observation per cell. Replicates get their own tables and are
// grouped, never averaged, by MergeReplicates.
type Table struct {
	cells map[string]Observation
}

// NewTable creates an empty observation grid.
func NewTable() *Table {
	return &Table{cells: make(map[string]Observation)}
}

// Add inserts an observation, failing fast on a duplicate cell.
func (t *Table) Add(obs Observation) error {
	key := cellKey(obs.ConditionKey, obs.MetricName)
	if _, exists := t.cells[key]; exists {
		return core.NewDuplicateCellError(obs.ConditionKey, obs.MetricName)
	}
	t.cells[key] = obs
	return nil
}

// Get returns the observation for a cell.
func (t *Table) Get(conditionKey, metricName string) (Observation, bool) {
	obs, ok := t.cells[cellKey(conditionKey, metricName)]
	return obs, ok
}

// Len returns the number of filled cells.
func (t *Table) Len() int { return len(t.cells) }

// Validate checks that every (condition, metric) cell is filled. This is the
// barrier before statistical validation: a gap means the experiment is not
// done and analysis must not start.
func (t *Table) Validate(conditions []string, metrics []string) error {
	for _, cond := range conditions {
		for _, metric := range metrics {
			if _, ok := t.cells[cellKey(cond, metric)]; !ok {
				return core.NewMissingCellError(cond, metric)
			}
		}
	}
	return nil
}

// Series returns metric values in the given condition order. Every condition
// must be present.
func (t *Table) Series(metricName string, conditions []string) ([]float64, error) {
	values := make([]float64, 0, len(conditions))
	for _, cond := range conditions {
		obs, ok := t.cells[cellKey(cond, metricName)]
		if !ok {
			return nil, core.NewMissingCellError(cond, metricName)
		}
		values = append(values, obs.Value)
	}
	return values, nil
}

// Observations returns all cells sorted by (condition, metric) for stable output.
func (t *Table) Observations() []Observation {
	out := make([]Observation, 0, len(t.cells))
	for _, obs := range t.cells {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConditionKey != out[j].ConditionKey {
			return out[i].ConditionKey < out[j].ConditionKey
		}
		return out[i].MetricName < out[j].MetricName
	})
	return out
}

// Hash fingerprints the grid contents.
func (t *Table) Hash() core.TableHash {
	cells := make(map[string]float64, len(t.cells))
	for key, obs := range t.cells {
		cells[key] = obs.Value
	}
	return core.ComputeTableHash(cells)
}

// Groups holds per-condition replicate samples for one metric.
type Groups struct {
	MetricName string
	Conditions []string
	Samples    map[string][]float64
}

// Sample returns the replicate values for one condition.
func (g Groups) Sample(condition string) []float64 {
	return g.Samples[condition]
}

// MergeReplicates combines replicate tables into per-condition sample groups
// for a metric. Each replicate table must satisfy the grid invariant on its
// own; merging collects values, it never collapses them.
func MergeReplicates(tables []*Table, metricName string, conditions []string) (Groups, error) {
	g := Groups{
		MetricName: metricName,
		Conditions: conditions,
		Samples:    make(map[string][]float64, len(conditions)),
	}
	for i, t := range tables {
		for _, cond := range conditions {
			obs, ok := t.Get(cond, metricName)
			if !ok {
				return Groups{}, fmt.Errorf("replicate %d: %w", i, core.NewMissingCellError(cond, metricName))
			}
			g.Samples[cond] = append(g.Samples[cond], obs.Value)
		}
	}
	return g, nil
}
