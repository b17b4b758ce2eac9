package comparative

import (
	"fmt"
	"math"

	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal/analysis/statutil"
)

// CorrelationBattery runs Pearson, Spearman and Kendall correlations between
// x (e.g. corruption intensity) and y (a drift metric). Each comes back as
// its own procedure result with a p-value; Pearson also carries a Fisher z
// 95% confidence interval.
func CorrelationBattery(x, y []float64) ([]results.ProcedureResult, error) {
	if len(x) != len(y) {
		return nil, core.NewInsufficientDataError("correlation", "series lengths differ")
	}
	if len(x) < 3 {
		return nil, core.NewInsufficientDataError("correlation",
			fmt.Sprintf("need at least 3 points, got %d", len(x)))
	}

	pearson := PearsonResult(x, y)
	spearman := SpearmanResult(x, y)
	kendall := KendallResult(x, y)
	return []results.ProcedureResult{pearson, spearman, kendall}, nil
}

// PearsonResult computes the linear correlation with a t-test p-value and a
// Fisher z-transform confidence interval.
func PearsonResult(x, y []float64) results.ProcedureResult {
	r, t, p := statutil.PearsonTest(x, y)
	low, high := FisherCI(r, len(x), 0.95)

	return results.ProcedureResult{
		Name:           "pearson",
		Statistic:      t,
		PValue:         p,
		EffectSize:     r,
		Confidence:     statutil.Confidence(p),
		Interpretation: describeCorrelation("linear", r, p),
		Metadata: map[string]interface{}{
			"ci_low":      low,
			"ci_high":     high,
			"ci_level":    0.95,
			"sample_size": len(x),
		},
	}
}

// SpearmanResult computes the rank correlation via Pearson on tie-averaged ranks.
func SpearmanResult(x, y []float64) results.ProcedureResult {
	xRanks := statutil.Ranks(x)
	yRanks := statutil.Ranks(y)
	rho, t, p := statutil.PearsonTest(xRanks, yRanks)

	return results.ProcedureResult{
		Name:           "spearman",
		Statistic:      t,
		PValue:         p,
		EffectSize:     rho,
		Confidence:     statutil.Confidence(p),
		Interpretation: describeCorrelation("monotonic", rho, p),
		Metadata: map[string]interface{}{
			"sample_size": len(x),
		},
	}
}

// KendallResult computes Kendall's tau-b with tie adjustment and a normal
// approximation p-value.
func KendallResult(x, y []float64) results.ProcedureResult {
	n := len(x)
	concordant, discordant := 0, 0
	tiesX, tiesY := 0, 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			switch {
			case dx == 0 && dy == 0:
				tiesX++
				tiesY++
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx*dy > 0:
				concordant++
			default:
				discordant++
			}
		}
	}

	n0 := float64(n*(n-1)) / 2
	denom := math.Sqrt((n0 - float64(tiesX)) * (n0 - float64(tiesY)))

	var tau float64
	if denom > 0 {
		tau = float64(concordant-discordant) / denom
	}
	tau = statutil.Clamp(tau, -1, 1)

	// Normal approximation for the null distribution of C-D.
	variance := float64(n*(n-1)*(2*n+5)) / 18
	p := 1.0
	if variance > 0 {
		z := float64(concordant-discordant) / math.Sqrt(variance)
		p = statutil.NormalTwoTailedP(z)
	}

	return results.ProcedureResult{
		Name:           "kendall",
		Statistic:      float64(concordant - discordant),
		PValue:         p,
		EffectSize:     tau,
		Confidence:     statutil.Confidence(p),
		Interpretation: describeCorrelation("ordinal", tau, p),
		Metadata: map[string]interface{}{
			"concordant":  concordant,
			"discordant":  discordant,
			"sample_size": n,
		},
	}
}

// FisherCI computes a confidence interval for a correlation coefficient via
// the Fisher z transform.
func FisherCI(r float64, n int, level float64) (float64, float64) {
	if n < 4 {
		return -1, 1
	}
	if math.Abs(r) >= 1 {
		return r, r
	}

	z := 0.5 * math.Log((1+r)/(1-r))
	se := 1 / math.Sqrt(float64(n-3))

	// Two-sided critical value; 1.959964 for 95%.
	zCrit := 1.959964
	if level != 0.95 {
		zCrit = normQuantile(0.5 + level/2)
	}

	low := math.Tanh(z - zCrit*se)
	high := math.Tanh(z + zCrit*se)
	return low, high
}

// normQuantile approximates the standard normal quantile (Beasley-Springer-Moro).
func normQuantile(p float64) float64 {
	if p <= 0 || p >= 1 {
		return math.NaN()
	}
	a := []float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := []float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := []float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := []float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	pLow, pHigh := 0.02425, 1-0.02425
	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p <= pHigh:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}
}

func describeCorrelation(kind string, r, p float64) string {
	if p > 0.05 {
		return fmt.Sprintf("no significant %s relationship (r=%.3f, p=%.3f)", kind, r, p)
	}

	direction := "positive"
	if r < 0 {
		direction = "negative"
	}

	strength := "weak"
	abs := math.Abs(r)
	switch {
	case abs >= 0.8:
		strength = "very strong"
	case abs >= 0.6:
		strength = "strong"
	case abs >= 0.4:
		strength = "moderate"
	}

	return fmt.Sprintf("%s %s %s relationship (r=%.3f, p=%.3f)", strength, direction, kind, r, p)
}
