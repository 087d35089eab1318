package outlier

import (
	"math"
	"math/rand"

	"github.com/HerbHall/driftwatch/pkg/detect"
)

// Isolation forest defaults.
const (
	forestTrees      = 100
	forestSampleSize = 256
	defaultSeed      = 42
)

// forest implements isolation-forest scoring: anomalous points isolate in
// fewer random splits, giving shorter average path lengths across the
// trees. The seed is fixed by default so repeated evaluations of the same
// series agree.
type forest struct {
	nTrees     int
	sampleSize int
	maxDepth   int
	rng        *rand.Rand
	trees      []*forestNode
	sampleUsed int
}

type forestNode struct {
	splitFeature int
	splitValue   float64
	left         *forestNode
	right        *forestNode
	size         int // samples reaching this leaf
}

func newForest(cfg detect.Config) *forest {
	seed := cfg.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	return &forest{
		nTrees:     forestTrees,
		sampleSize: forestSampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (f *forest) fit(rows [][]float64) {
	sampleSize := f.sampleSize
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}
	f.sampleUsed = sampleSize
	f.maxDepth = int(math.Ceil(math.Log2(float64(sampleSize) + 1)))

	f.trees = make([]*forestNode, f.nTrees)
	for t := 0; t < f.nTrees; t++ {
		sample := make([][]float64, sampleSize)
		for i, j := range f.rng.Perm(len(rows))[:sampleSize] {
			sample[i] = rows[j]
		}
		f.trees[t] = f.grow(sample, 0)
	}
}

// grow builds one isolation tree by recursive random splitting.
func (f *forest) grow(rows [][]float64, depth int) *forestNode {
	if len(rows) <= 1 || depth >= f.maxDepth {
		return &forestNode{size: len(rows)}
	}

	feature := f.rng.Intn(len(rows[0]))
	min, max := rows[0][feature], rows[0][feature]
	for _, row := range rows[1:] {
		if row[feature] < min {
			min = row[feature]
		}
		if row[feature] > max {
			max = row[feature]
		}
	}
	if min == max {
		return &forestNode{size: len(rows)}
	}

	split := min + f.rng.Float64()*(max-min)
	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &forestNode{
		splitFeature: feature,
		splitValue:   split,
		left:         f.grow(left, depth+1),
		right:        f.grow(right, depth+1),
	}
}

// pathLength walks a row down a tree, adding the average-path adjustment
// c(size) at the leaf it lands in.
func pathLength(n *forestNode, row []float64, depth float64) float64 {
	if n.left == nil && n.right == nil {
		return depth + avgPathLength(n.size)
	}
	if row[n.splitFeature] < n.splitValue {
		return pathLength(n.left, row, depth+1)
	}
	return pathLength(n.right, row, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}

// scores returns the standard isolation-forest anomaly score in (0, 1):
// 2^(-E[path] / c(sampleSize)).
func (f *forest) scores(rows [][]float64) []float64 {
	c := avgPathLength(f.sampleUsed)
	if c == 0 {
		c = 1
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		sum := 0.0
		for _, tree := range f.trees {
			sum += pathLength(tree, row, 0)
		}
		mean := sum / float64(len(f.trees))
		out[i] = math.Pow(2, -mean/c)
	}
	return out
}
