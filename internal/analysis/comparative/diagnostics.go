package comparative

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"godrift/domain/core"
	"godrift/domain/results"
	"godrift/internal/analysis/statutil"
)

// Diagnostics summarises distributional checks and the resulting test-family
// recommendation.
type Diagnostics struct {
	Normality      []results.ProcedureResult `json:"normality"`
	Homogeneity    []results.ProcedureResult `json:"homogeneity"`
	AllNormal      bool                      `json:"all_normal"`
	EqualVariances bool                      `json:"equal_variances"`
	Recommendation string                    `json:"recommendation"`
}

// RunDiagnostics tests each group for normality and the family for variance
// homogeneity, and recommends parametric or nonparametric procedures.
func RunDiagnostics(labels []string, groups [][]float64) (Diagnostics, error) {
	if len(groups) < 2 {
		return Diagnostics{}, core.NewInsufficientDataError("diagnostics",
			fmt.Sprintf("need at least 2 groups, got %d", len(groups)))
	}

	d := Diagnostics{AllNormal: true, EqualVariances: true}

	for i, g := range groups {
		normal, p := NormalityTest(g)
		d.Normality = append(d.Normality, results.ProcedureResult{
			Name:           "normality:" + labels[i],
			Statistic:      p,
			PValue:         p,
			Confidence:     statutil.Confidence(p),
			Interpretation: normalityText(labels[i], normal, p),
			Metadata:       map[string]interface{}{"sample_size": len(g)},
		})
		if !normal {
			d.AllNormal = false
		}
	}

	levene, err := LeveneTest(groups)
	if err == nil {
		d.Homogeneity = append(d.Homogeneity, levene)
		if levene.PValue < 0.05 {
			d.EqualVariances = false
		}
	}

	bartlett, err := BartlettTest(groups)
	if err == nil {
		d.Homogeneity = append(d.Homogeneity, bartlett)
		if bartlett.PValue < 0.05 {
			d.EqualVariances = false
		}
	}

	if d.AllNormal && d.EqualVariances {
		d.Recommendation = results.RecommendParametric
	} else {
		d.Recommendation = results.RecommendNonparametric
	}
	return d, nil
}

// NormalityTest applies D'Agostino's K² for n >= 8 and a skewness/kurtosis
// approximation below that. Small samples never pass: there is not enough
// information to call them normal.
func NormalityTest(data []float64) (isNormal bool, pValue float64) {
	if len(data) < 3 {
		return false, 1.0
	}
	if len(data) >= 8 {
		return dagostinoK2(data)
	}

	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	if stdDev == 0 {
		return false, 1.0
	}
	skewness := sampleSkewness(data, mean, stdDev)
	kurtosis := sampleKurtosis(data, mean, stdDev) - 3

	testStat := math.Abs(skewness) + math.Abs(kurtosis)/2
	pValue = statutil.ChiSquaredSurvival(testStat*testStat, 2)
	return pValue > 0.05, pValue
}

// dagostinoK2 combines the D'Agostino skewness transform with the
// Anscombe-Glynn kurtosis transform into a chi-squared K² statistic.
func dagostinoK2(data []float64) (isNormal bool, pValue float64) {
	n := float64(len(data))

	mean, _ := stats.Mean(data)
	stdDev, _ := stats.StandardDeviation(data)
	if stdDev == 0 || math.IsNaN(stdDev) || math.IsInf(stdDev, 0) {
		return false, 1.0
	}

	g1 := sampleSkewness(data, mean, stdDev)
	g2excess := sampleKurtosis(data, mean, stdDev) - 3

	// Skewness transform to Z1.
	y := g1 * math.Sqrt((n+1)*(n+3)/(6*(n-2)))
	beta2 := (3 * (n*n + 27*n - 70) * (n + 1) * (n + 3)) / ((n - 2) * (n + 5) * (n + 7) * (n + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	if w2 <= 0 {
		return false, 1.0
	}
	delta := 1 / math.Sqrt(math.Log(math.Sqrt(w2)))
	alpha := math.Sqrt(2 / (w2 - 1))
	ay := y / alpha
	z1 := delta * math.Log(ay+math.Sqrt(ay*ay+1))

	// Kurtosis transform to Z2 (Anscombe-Glynn, on total kurtosis).
	g2 := g2excess + 3
	e := 3 * (n - 1) / (n + 1)
	v := 24 * n * (n - 2) * (n - 3) / ((n + 1) * (n + 1) * (n + 3) * (n + 5))
	if v <= 0 {
		return false, 1.0
	}
	x := (g2 - e) / math.Sqrt(v)

	sqrtBeta1 := 6 * (n*n - 5*n + 2) / ((n + 7) * (n + 9)) * math.Sqrt(6*(n+3)*(n+5)/(n*(n-2)*(n-3)))
	a := 6 + 8/sqrtBeta1*(2/sqrtBeta1+math.Sqrt(1+4/(sqrtBeta1*sqrtBeta1)))
	if a <= 4 {
		return false, 1.0
	}

	term := 1 - 2/(9*a)
	den := 1 + x*math.Sqrt(2/(a-4))
	if den <= 0 {
		return false, 0.0
	}
	z2 := (term - math.Pow((1-2/a)/den, 1.0/3.0)) / math.Sqrt(2/(9*a))

	k2 := z1*z1 + z2*z2
	pValue = statutil.ChiSquaredSurvival(k2, 2)
	return pValue > 0.05, pValue
}

// LeveneTest checks variance homogeneity using the Brown-Forsythe variant:
// absolute deviations from group medians, then a one-way F test on those.
func LeveneTest(groups [][]float64) (results.ProcedureResult, error) {
	k := len(groups)
	if k < 2 {
		return results.ProcedureResult{}, core.NewInsufficientDataError("levene", "need at least 2 groups")
	}

	deviations := make([][]float64, k)
	totalN := 0
	for i, g := range groups {
		if len(g) < 2 {
			return results.ProcedureResult{}, core.NewInsufficientDataError("levene",
				fmt.Sprintf("group %d has %d values, need at least 2", i, len(g)))
		}
		median, _ := stats.Median(g)
		devs := make([]float64, len(g))
		for j, v := range g {
			devs[j] = math.Abs(v - median)
		}
		deviations[i] = devs
		totalN += len(g)
	}

	grandSum := 0.0
	for _, devs := range deviations {
		for _, v := range devs {
			grandSum += v
		}
	}
	grandMean := grandSum / float64(totalN)

	ssBetween, ssWithin := 0.0, 0.0
	for _, devs := range deviations {
		mean, _ := stats.Mean(devs)
		ssBetween += float64(len(devs)) * (mean - grandMean) * (mean - grandMean)
		for _, v := range devs {
			ssWithin += (v - mean) * (v - mean)
		}
	}

	dfBetween := float64(k - 1)
	dfWithin := float64(totalN - k)

	var w, p float64
	if ssWithin == 0 {
		if ssBetween == 0 {
			w, p = 0, 1.0
		} else {
			w, p = math.MaxFloat64, 0.0
		}
	} else {
		w = (ssBetween / dfBetween) / (ssWithin / dfWithin)
		p = statutil.FSurvival(w, dfBetween, dfWithin)
	}

	return results.ProcedureResult{
		Name:           "levene",
		Statistic:      w,
		PValue:         p,
		Confidence:     statutil.Confidence(p),
		Interpretation: homogeneityText("Levene", p),
		Metadata: map[string]interface{}{
			"centering":  "median",
			"df_between": dfBetween,
			"df_within":  dfWithin,
		},
	}, nil
}

// BartlettTest checks variance homogeneity assuming normality; it reacts
// faster than Levene but is fragile under non-normal data.
func BartlettTest(groups [][]float64) (results.ProcedureResult, error) {
	k := len(groups)
	if k < 2 {
		return results.ProcedureResult{}, core.NewInsufficientDataError("bartlett", "need at least 2 groups")
	}

	totalN := 0
	pooledNum := 0.0
	variances := make([]float64, k)
	for i, g := range groups {
		if len(g) < 2 {
			return results.ProcedureResult{}, core.NewInsufficientDataError("bartlett",
				fmt.Sprintf("group %d has %d values, need at least 2", i, len(g)))
		}
		v, _ := stats.SampleVariance(g)
		variances[i] = v
		pooledNum += float64(len(g)-1) * v
		totalN += len(g)
	}

	dfTotal := float64(totalN - k)
	pooled := pooledNum / dfTotal
	if pooled == 0 {
		return results.ProcedureResult{
			Name:           "bartlett",
			Statistic:      0,
			PValue:         1.0,
			Confidence:     0,
			Interpretation: homogeneityText("Bartlett", 1.0),
		}, nil
	}

	num := dfTotal * math.Log(pooled)
	corr := 0.0
	for i, g := range groups {
		if variances[i] > 0 {
			num -= float64(len(g)-1) * math.Log(variances[i])
		} else {
			// A zero-variance group is as heterogeneous as it gets.
			return results.ProcedureResult{
				Name:           "bartlett",
				Statistic:      math.MaxFloat64,
				PValue:         0.0,
				Confidence:     1,
				Interpretation: homogeneityText("Bartlett", 0.0),
			}, nil
		}
		corr += 1/float64(len(g)-1) - 1/dfTotal
	}
	c := 1 + corr/(3*float64(k-1))

	statistic := num / c
	p := statutil.ChiSquaredSurvival(statistic, float64(k-1))

	return results.ProcedureResult{
		Name:           "bartlett",
		Statistic:      statistic,
		PValue:         p,
		Confidence:     statutil.Confidence(p),
		Interpretation: homogeneityText("Bartlett", p),
		Metadata: map[string]interface{}{
			"df": k - 1,
		},
	}, nil
}

func sampleSkewness(data []float64, mean, stdDev float64) float64 {
	n := float64(len(data))
	sum := 0.0
	for _, v := range data {
		d := (v - mean) / stdDev
		sum += d * d * d
	}
	return sum / n
}

func sampleKurtosis(data []float64, mean, stdDev float64) float64 {
	n := float64(len(data))
	sum := 0.0
	for _, v := range data {
		d := (v - mean) / stdDev
		sum += d * d * d * d
	}
	return sum / n
}

func normalityText(label string, normal bool, p float64) string {
	if normal {
		return fmt.Sprintf("%s looks normal (p=%.3f)", label, p)
	}
	return fmt.Sprintf("%s departs from normality (p=%.3f)", label, p)
}

func homogeneityText(test string, p float64) string {
	if p < 0.05 {
		return fmt.Sprintf("%s: group variances differ (p=%.4f)", test, p)
	}
	return fmt.Sprintf("%s: no evidence against equal variances (p=%.4f)", test, p)
}
