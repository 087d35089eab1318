package outlier

import (
	"math"
	"sort"
)

// ecod implements empirical-CDF outlier detection: each dimension
// contributes the negative log tail probability of the value under the
// fitted empirical distribution, and the final score is the worst of the
// left-tail, right-tail, and skewness-directed aggregates.
type ecod struct {
	sorted [][]float64 // per-dimension sorted fitted values
	skew   []float64
}

func (m *ecod) fit(rows [][]float64) {
	m.sorted, m.skew = fitColumns(rows)
}

func (m *ecod) scores(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		var left, right, auto float64
		for d, v := range row {
			pl, pr := tailProbs(m.sorted[d], v)
			left += -math.Log(pl)
			right += -math.Log(pr)
			if m.skew[d] < 0 {
				auto += -math.Log(pl)
			} else {
				auto += -math.Log(pr)
			}
		}
		out[i] = math.Max(left, math.Max(right, auto))
	}
	return out
}

// fitColumns prepares per-dimension sorted values and sample skewness for
// the empirical-CDF detectors.
func fitColumns(rows [][]float64) (sorted [][]float64, skew []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	dims := len(rows[0])
	sorted = make([][]float64, dims)
	skew = make([]float64, dims)

	for d := 0; d < dims; d++ {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[d]
		}
		skew[d] = skewness(col)
		sort.Float64s(col)
		sorted[d] = col
	}
	return sorted, skew
}

// tailProbs returns the empirical left and right tail probabilities of v,
// floored at 1/n so the log stays finite.
func tailProbs(sorted []float64, v float64) (left, right float64) {
	n := float64(len(sorted))
	// count of values <= v
	le := sort.Search(len(sorted), func(i int) bool { return sorted[i] > v })
	// count of values >= v
	ge := len(sorted) - sort.SearchFloat64s(sorted, v)

	left = math.Max(float64(le), 1) / n
	right = math.Max(float64(ge), 1) / n
	return left, right
}

func skewness(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	m2, m3 := 0.0, 0.0
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}
