package outlier

import (
	"sort"

	"github.com/HerbHall/driftwatch/pkg/detect"
)

const defaultNeighbors = 5

// knn scores each point by its mean distance to the k nearest fitted rows.
// Points that sit far from all neighbours score high.
type knn struct {
	k    int
	rows [][]float64
}

func newKNN(cfg detect.Config) *knn {
	k := cfg.Neighbors
	if k <= 0 {
		k = defaultNeighbors
	}
	return &knn{k: k}
}

func (m *knn) fit(rows [][]float64) {
	m.rows = rows
}

func (m *knn) scores(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = m.score(row, i)
	}
	return out
}

// score computes the mean distance to the k nearest fitted rows. selfIdx
// excludes the row's own zero distance when scoring the training set; pass
// -1 for unseen points.
func (m *knn) score(row []float64, selfIdx int) float64 {
	dists := make([]float64, 0, len(m.rows))
	for j, other := range m.rows {
		if j == selfIdx {
			continue
		}
		dists = append(dists, euclidean(row, other))
	}
	if len(dists) == 0 {
		return 0
	}
	sort.Float64s(dists)

	k := m.k
	if k > len(dists) {
		k = len(dists)
	}
	sum := 0.0
	for _, d := range dists[:k] {
		sum += d
	}
	return sum / float64(k)
}
