package outlier

import "math"

// copod implements copula-based outlier detection over the empirical
// marginals. Each dimension contributes the negative log of its
// skewness-directed tail probability; unlike ecod, the per-dimension tail
// choice is folded into a single aggregate rather than taking the worst of
// three.
type copod struct {
	sorted [][]float64
	skew   []float64
}

func (m *copod) fit(rows [][]float64) {
	m.sorted, m.skew = fitColumns(rows)
}

func (m *copod) scores(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		score := 0.0
		for d, v := range row {
			pl, pr := tailProbs(m.sorted[d], v)
			// Symmetric tail blended with the skew-directed one,
			// following the COPOD aggregation.
			sym := math.Min(-math.Log(pl), -math.Log(pr))
			var directed float64
			if m.skew[d] < 0 {
				directed = -math.Log(pl)
			} else {
				directed = -math.Log(pr)
			}
			score += math.Max(sym, directed)
		}
		out[i] = score
	}
	return out
}
