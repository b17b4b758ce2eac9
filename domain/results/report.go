package results

import (
	"godrift/domain/core"
)

// ProcedureResult is the common envelope for one statistical procedure.
type ProcedureResult struct {
	Name           string                 `json:"name"`
	Statistic      float64                `json:"statistic"`
	PValue         float64                `json:"p_value"`
	EffectSize     float64                `json:"effect_size"`
	Confidence     float64                `json:"confidence"`
	Interpretation string                 `json:"interpretation"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Significant reports whether the procedure cleared the given alpha.
func (p ProcedureResult) Significant(alpha float64) bool {
	return p.PValue < alpha
}

// SkippedProcedure records why a procedure could not run. Skips are reported,
// never silently dropped.
type SkippedProcedure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report is the full statistical validation output for one results table.
type Report struct {
	ID             core.ReportID      `json:"id"`
	BatchID        core.BatchID       `json:"batch_id"`
	TableHash      core.TableHash     `json:"table_hash"`
	MetricName     string             `json:"metric_name"`
	Conditions     []string           `json:"conditions"`
	Recommendation string             `json:"recommendation"`
	Procedures     []ProcedureResult  `json:"procedures"`
	Skipped        []SkippedProcedure `json:"skipped,omitempty"`
	CreatedAt      core.Timestamp     `json:"created_at"`
}

// Find returns the first procedure result with the given name.
func (r Report) Find(name string) (ProcedureResult, bool) {
	for _, p := range r.Procedures {
		if p.Name == name {
			return p, true
		}
	}
	return ProcedureResult{}, false
}

// Recommendation values from the diagnostic battery.
const (
	RecommendParametric    = "parametric"
	RecommendNonparametric = "nonparametric"
)
