package report

import (
	"fmt"
	"strings"

	"godrift/domain/results"
)

// Markdown renders a validation report as a markdown document. The same text
// backs the analyze command's file output and the API's HTML view.
func Markdown(r *results.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Drift Validation Report\n\n")
	fmt.Fprintf(&b, "- **Batch:** `%s`\n", r.BatchID)
	fmt.Fprintf(&b, "- **Metric:** %s\n", r.MetricName)
	fmt.Fprintf(&b, "- **Conditions:** %s\n", strings.Join(r.Conditions, ", "))
	fmt.Fprintf(&b, "- **Table hash:** `%s`\n", r.TableHash)
	fmt.Fprintf(&b, "- **Recommendation:** %s\n", r.Recommendation)
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", r.CreatedAt)

	if len(r.Procedures) > 0 {
		b.WriteString("## Procedures\n\n")
		b.WriteString("| Procedure | Statistic | p | Effect | Confidence |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, p := range r.Procedures {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %.0f%% |\n",
				p.Name, formatStat(p.Statistic), formatP(p.PValue), formatStat(p.EffectSize), p.Confidence*100)
		}
		b.WriteString("\n")

		for _, p := range r.Procedures {
			if p.Interpretation != "" {
				fmt.Fprintf(&b, "- **%s:** %s\n", p.Name, p.Interpretation)
			}
		}
		b.WriteString("\n")
	}

	if len(r.Skipped) > 0 {
		b.WriteString("## Skipped\n\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "- **%s:** %s\n", s.Name, s.Reason)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func formatStat(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := v
	if abs < 0 {
		abs = -abs
	}
	if abs >= 1e6 {
		return fmt.Sprintf("%.3g", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func formatP(p float64) string {
	if p == 0 {
		return "<1e-16"
	}
	if p < 0.001 {
		return fmt.Sprintf("%.2e", p)
	}
	return fmt.Sprintf("%.4f", p)
}
