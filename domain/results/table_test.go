package results

import (
	"testing"

	"godrift/domain/core"
)

func obs(cond, metric string, value float64) Observation {
	return Observation{
		ID:           core.ObservationID(core.NewID()),
		ConditionKey: cond,
		MetricName:   metric,
		Value:        value,
	}
}

func TestTableRejectsDuplicateCell(t *testing.T) {
	table := NewTable()
	if err := table.Add(obs("intensity=10", "cosine_distance", 0.2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := table.Add(obs("intensity=10", "cosine_distance", 0.9))
	if err == nil {
		t.Fatalf("expected duplicate cell to be rejected")
	}
	if !core.IsInvariantViolation(err) {
		t.Errorf("expected invariant violation, got %v", err)
	}

	// The original observation must survive the rejected write.
	got, ok := table.Get("intensity=10", "cosine_distance")
	if !ok || got.Value != 0.2 {
		t.Errorf("duplicate add must not overwrite, got %+v", got)
	}
}

func TestTableValidateFindsGaps(t *testing.T) {
	table := NewTable()
	conditions := []string{"intensity=0", "intensity=50"}
	metrics := []string{"cosine_distance", "jaccard_similarity"}

	for _, cond := range conditions {
		if err := table.Add(obs(cond, "cosine_distance", 0.1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := table.Add(obs("intensity=0", "jaccard_similarity", 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := table.Validate(conditions, metrics)
	if err == nil {
		t.Fatalf("expected validation to flag the missing cell")
	}
	if !core.IsInvariantViolation(err) {
		t.Errorf("expected invariant violation, got %v", err)
	}

	if err := table.Add(obs("intensity=50", "jaccard_similarity", 0.4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := table.Validate(conditions, metrics); err != nil {
		t.Errorf("complete grid should validate: %v", err)
	}
}

func TestTableSeriesFollowsConditionOrder(t *testing.T) {
	table := NewTable()
	for i, cond := range []string{"intensity=0", "intensity=25", "intensity=50"} {
		if err := table.Add(obs(cond, "cosine_distance", float64(i)/10)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	values, err := table.Series("cosine_distance", []string{"intensity=50", "intensity=0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0] != 0.2 || values[1] != 0.0 {
		t.Errorf("series must follow the requested order, got %v", values)
	}

	if _, err := table.Series("cosine_distance", []string{"intensity=99"}); err == nil {
		t.Errorf("missing condition should error")
	}
}

func TestMergeReplicatesGroupsWithoutAveraging(t *testing.T) {
	conditions := []string{"intensity=0", "intensity=50"}
	var tables []*Table
	for r := 0; r < 3; r++ {
		table := NewTable()
		for i, cond := range conditions {
			if err := table.Add(obs(cond, "cosine_distance", float64(i)+float64(r)/10)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		tables = append(tables, table)
	}

	groups, err := MergeReplicates(tables, "cosine_distance", conditions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sample := groups.Sample("intensity=50")
	if len(sample) != 3 {
		t.Fatalf("expected 3 replicate values, got %v", sample)
	}
	want := []float64{1.0, 1.1, 1.2}
	for i, v := range want {
		if sample[i] != v {
			t.Errorf("replicate values must be kept, not collapsed: got %v", sample)
			break
		}
	}
}

func TestMergeReplicatesRequiresCompleteTables(t *testing.T) {
	complete := NewTable()
	if err := complete.Add(obs("intensity=0", "cosine_distance", 0.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	empty := NewTable()

	_, err := MergeReplicates([]*Table{complete, empty}, "cosine_distance", []string{"intensity=0"})
	if err == nil {
		t.Fatalf("expected missing cell in second replicate to fail the merge")
	}
	if !core.IsInvariantViolation(err) {
		t.Errorf("expected invariant violation, got %v", err)
	}
}

func TestTableHashTracksContents(t *testing.T) {
	a := NewTable()
	b := NewTable()
	for _, table := range []*Table{a, b} {
		if err := table.Add(obs("intensity=0", "cosine_distance", 0.5)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if a.Hash() != b.Hash() {
		t.Errorf("identical grids should hash identically")
	}

	if err := b.Add(obs("intensity=50", "cosine_distance", 0.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Hash() == b.Hash() {
		t.Errorf("different grids should hash differently")
	}
}
