package comparative

import (
	"math"
	"testing"

	"godrift/domain/core"
	"godrift/domain/results"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBonferroni(t *testing.T) {
	raw := []float64{0.01, 0.04, 0.3}
	adjusted := Bonferroni(raw)
	want := []float64{0.03, 0.12, 0.9}
	for i := range want {
		if !approxEqual(adjusted[i], want[i], 1e-12) {
			t.Errorf("index %d: got %g, want %g", i, adjusted[i], want[i])
		}
	}

	if got := Bonferroni([]float64{0.5, 0.6})[1]; got != 1.0 {
		t.Errorf("bonferroni must clamp at 1, got %g", got)
	}
}

func TestHolmNeverMoreSignificantThanRaw(t *testing.T) {
	raw := []float64{0.001, 0.02, 0.03, 0.5}
	adjusted := Holm(raw)
	for i := range raw {
		if adjusted[i] < raw[i] {
			t.Errorf("index %d: adjusted %g below raw %g", i, adjusted[i], raw[i])
		}
	}

	// Known example: ranks get factors 4,3,2,1.
	want := []float64{0.004, 0.06, 0.06, 0.5}
	for i := range want {
		if !approxEqual(adjusted[i], want[i], 1e-12) {
			t.Errorf("index %d: got %g, want %g", i, adjusted[i], want[i])
		}
	}
}

func TestHolmMonotoneInRankOrder(t *testing.T) {
	raw := []float64{0.04, 0.01, 0.02, 0.005}
	adjusted := Holm(raw)

	order := sortedOrder(raw)
	prev := 0.0
	for _, idx := range order {
		if adjusted[idx] < prev {
			t.Errorf("holm adjusted values must be nondecreasing in rank order")
		}
		prev = adjusted[idx]
	}
}

func TestBenjaminiHochberg(t *testing.T) {
	raw := []float64{0.01, 0.02, 0.03, 0.04}
	adjusted := BenjaminiHochberg(raw)

	// All equal to 0.04 after the backwards cumulative minimum.
	for i := range adjusted {
		if !approxEqual(adjusted[i], 0.04, 1e-12) {
			t.Errorf("index %d: got %g, want 0.04", i, adjusted[i])
		}
	}

	order := sortedOrder(raw)
	prev := 0.0
	for _, idx := range order {
		if adjusted[idx] < prev-1e-12 {
			t.Errorf("BH adjusted values must be monotone in rank order")
		}
		prev = adjusted[idx]
	}
}

func TestMannWhitneySeparatedGroups(t *testing.T) {
	a := []float64{0.01, 0.02, 0.03, 0.02, 0.01, 0.03, 0.02, 0.01}
	b := []float64{0.80, 0.82, 0.79, 0.81, 0.83, 0.78, 0.80, 0.82}

	u, p := MannWhitneyU(a, b)
	if u != 0 {
		t.Errorf("fully separated groups should give U=0, got %g", u)
	}
	if p > 0.01 {
		t.Errorf("expected small p for separated groups, got %g", p)
	}
}

func TestMannWhitneyIdenticalGroups(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	_, p := MannWhitneyU(a, a)
	if p < 0.9 {
		t.Errorf("identical groups should not be significant, p=%g", p)
	}
}

func TestCliffsDelta(t *testing.T) {
	low := []float64{1, 2, 3}
	high := []float64{10, 11, 12}

	if d := CliffsDelta(low, high); !approxEqual(d, 1.0, 1e-12) {
		t.Errorf("full separation upward should give delta 1, got %g", d)
	}
	if d := CliffsDelta(high, low); !approxEqual(d, -1.0, 1e-12) {
		t.Errorf("full separation downward should give delta -1, got %g", d)
	}
	if d := CliffsDelta(low, low); d != 0 {
		t.Errorf("identical groups should give delta 0, got %g", d)
	}
}

func TestDeltaMagnitudeThresholds(t *testing.T) {
	cases := []struct {
		delta float64
		want  string
	}{
		{0.10, "negligible"},
		{0.20, "small"},
		{0.40, "medium"},
		{0.60, "large"},
		{-0.60, "large"},
	}
	for _, c := range cases {
		if got := DeltaMagnitude(c.delta); got != c.want {
			t.Errorf("delta %g: got %q, want %q", c.delta, got, c.want)
		}
	}
}

func TestComparePairsReportsCorrection(t *testing.T) {
	labels := []string{"intensity=0", "intensity=50", "intensity=90"}
	groups := [][]float64{
		{0.01, 0.02, 0.03, 0.02, 0.015},
		{0.40, 0.42, 0.38, 0.41, 0.39},
		{0.80, 0.82, 0.79, 0.81, 0.805},
	}

	comparisons, summary, err := ComparePairs(labels, groups, CorrectionHolm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(comparisons) != 3 {
		t.Fatalf("expected 3 pairwise comparisons, got %d", len(comparisons))
	}
	if summary.Metadata["correction"] != string(CorrectionHolm) {
		t.Errorf("summary must name the correction strategy, got %v", summary.Metadata["correction"])
	}
	for _, c := range comparisons {
		if c.AdjustedP < c.PValue {
			t.Errorf("%s vs %s: adjusted p %g below raw %g", c.ConditionA, c.ConditionB, c.AdjustedP, c.PValue)
		}
		if c.Magnitude != "large" {
			t.Errorf("%s vs %s: expected large effect, got %s", c.ConditionA, c.ConditionB, c.Magnitude)
		}
	}
}

func TestComparePairsInsufficientData(t *testing.T) {
	_, _, err := ComparePairs([]string{"a"}, [][]float64{{1, 2}}, CorrectionBonferroni)
	if !core.IsInsufficientData(err) {
		t.Errorf("expected insufficient data, got %v", err)
	}
}

func TestPearsonPerfectLinearRelationship(t *testing.T) {
	x := []float64{1, 2, 3}
	y := []float64{0.1, 0.5, 0.9}

	result := PearsonResult(x, y)
	if !approxEqual(result.EffectSize, 1.0, 1e-9) {
		t.Errorf("expected r=1.0 for exact linear data, got %g", result.EffectSize)
	}
	if result.PValue > 1e-6 {
		t.Errorf("expected p near 0 for perfect correlation, got %g", result.PValue)
	}
}

func TestCorrelationBatteryMonotoneSeries(t *testing.T) {
	x := []float64{0, 10, 20, 30, 40, 50, 60, 70}
	y := []float64{0.02, 0.09, 0.18, 0.25, 0.35, 0.41, 0.52, 0.58}

	battery, err := CorrelationBattery(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(battery) != 3 {
		t.Fatalf("expected pearson, spearman, kendall, got %d results", len(battery))
	}

	byName := map[string]results.ProcedureResult{}
	for _, r := range battery {
		byName[r.Name] = r
	}

	if r := byName["spearman"]; !approxEqual(r.EffectSize, 1.0, 1e-9) {
		t.Errorf("monotone series should give rho 1.0, got %g", r.EffectSize)
	}
	if r := byName["kendall"]; !approxEqual(r.EffectSize, 1.0, 1e-9) {
		t.Errorf("monotone series should give tau 1.0, got %g", r.EffectSize)
	}
	if r := byName["pearson"]; r.EffectSize < 0.98 {
		t.Errorf("near-linear series should give high r, got %g", r.EffectSize)
	}

	pearson := byName["pearson"]
	low := pearson.Metadata["ci_low"].(float64)
	high := pearson.Metadata["ci_high"].(float64)
	if !(low <= pearson.EffectSize && pearson.EffectSize <= high) {
		t.Errorf("r=%g outside Fisher CI [%g, %g]", pearson.EffectSize, low, high)
	}
}

func TestFisherCIShrinksWithN(t *testing.T) {
	low10, high10 := FisherCI(0.8, 10, 0.95)
	low100, high100 := FisherCI(0.8, 100, 0.95)
	if (high100 - low100) >= (high10 - low10) {
		t.Errorf("CI should shrink with sample size: n=10 width %g, n=100 width %g",
			high10-low10, high100-low100)
	}
}

func TestPolynomialRegressionLinearData(t *testing.T) {
	x := []float64{0, 10, 20, 30, 40, 50}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 0.05 + 0.008*v
	}

	fit, err := PolynomialFit(x, y, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(fit.Coefficients[1], 0.008, 1e-9) {
		t.Errorf("expected slope 0.008, got %g", fit.Coefficients[1])
	}
	if fit.RSquared < 0.999 {
		t.Errorf("expected near-perfect fit, R²=%g", fit.RSquared)
	}
}

func TestSelectPolynomialPrefersQuadraticForCurvedData(t *testing.T) {
	x := []float64{0, 10, 20, 30, 40, 50, 60, 70}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 0.02 + 0.0001*v*v // pure curvature
	}

	result, err := SelectPolynomial(x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Metadata["selected_degree"] != 2 {
		t.Errorf("curved data should select degree 2, got %v", result.Metadata["selected_degree"])
	}
}

func TestPolynomialRegressionInsufficientData(t *testing.T) {
	_, err := PolynomialFit([]float64{1, 2}, []float64{1, 2}, 2)
	if !core.IsInsufficientData(err) {
		t.Errorf("expected insufficient data, got %v", err)
	}
}

func TestDiagnosticsRecommendsParametricForWellBehavedGroups(t *testing.T) {
	a := []float64{4.2, 5.1, 4.8, 5.6, 4.9, 5.3, 4.5, 5.0, 5.4, 4.7}
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = v + 0.5
	}

	d, err := RunDiagnostics([]string{"a", "b"}, [][]float64{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.EqualVariances {
		t.Errorf("shifted copies have identical variances")
	}
	if d.Recommendation != results.RecommendParametric {
		t.Errorf("expected parametric recommendation, got %s", d.Recommendation)
	}
}

func TestDiagnosticsFlagsUnequalVariances(t *testing.T) {
	a := []float64{1.00, 1.01, 0.99, 1.02, 0.98, 1.01, 0.99, 1.00, 1.02, 0.98}
	b := []float64{10, 25, 40, 5, 55, 30, 15, 45, 20, 50}

	d, err := RunDiagnostics([]string{"tight", "wide"}, [][]float64{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.EqualVariances {
		t.Errorf("variance ratio of ~1000 should be flagged")
	}
	if d.Recommendation != results.RecommendNonparametric {
		t.Errorf("expected nonparametric recommendation, got %s", d.Recommendation)
	}
}
