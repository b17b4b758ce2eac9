package statutil

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Ranks converts values to ranks, handling ties by averaging
func Ranks(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return []float64{}
	}

	type pair struct {
		value float64
		index int
	}

	pairs := make([]pair, n)
	for i, val := range data {
		pairs[i] = pair{value: val, index: i}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	ranks := make([]float64, n)

	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}

		// Average rank for the tie group
		groupSize := j - i
		avgRank := float64(i+1) + float64(groupSize-1)/2.0
		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avgRank
		}

		i = j
	}

	return ranks
}

// Pearson computes the Pearson correlation coefficient, clamped to [-1, 1].
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}

	meanX, meanY := 0.0, 0.0
	for i := 0; i < n; i++ {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0
	}

	r := cov / math.Sqrt(varX*varY)
	return Clamp(r, -1, 1)
}

// PearsonTest returns the correlation coefficient with its t statistic and
// two-tailed p-value against the null of zero correlation.
func PearsonTest(x, y []float64) (r, t, p float64) {
	n := len(x)
	r = Pearson(x, y)
	if n < 3 {
		return r, 0, 1.0
	}
	if math.Abs(r) >= 1 {
		// Perfect correlation: the t statistic diverges, saturate instead.
		return r, math.Copysign(math.MaxFloat64, r), 0.0
	}

	df := float64(n - 2)
	t = r * math.Sqrt(df/(1-r*r))
	p = TTwoTailedP(t, df)
	return r, t, p
}

// TTwoTailedP computes a two-tailed p-value from Student's t distribution.
func TTwoTailedP(t, df float64) float64 {
	if df <= 0 {
		return 1.0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return Clamp(p, 0, 1)
}

// NormalTwoTailedP computes a two-tailed p-value from the standard normal.
func NormalTwoTailedP(z float64) float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * dist.CDF(-math.Abs(z))
	return Clamp(p, 0, 1)
}

// FSurvival returns P(F > f) for an F distribution with the given degrees of
// freedom.
func FSurvival(f, d1, d2 float64) float64 {
	if f <= 0 || d1 <= 0 || d2 <= 0 {
		return 1.0
	}
	dist := distuv.F{D1: d1, D2: d2}
	return Clamp(1-dist.CDF(f), 0, 1)
}

// ChiSquaredSurvival returns P(X > x) for a chi-squared distribution.
func ChiSquaredSurvival(x, df float64) float64 {
	if x <= 0 || df <= 0 {
		return 1.0
	}
	dist := distuv.ChiSquared{K: df}
	return Clamp(1-dist.CDF(x), 0, 1)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Confidence converts a p-value into a bounded confidence score.
func Confidence(pValue float64) float64 {
	return Clamp(1-pValue, 0, 1)
}
