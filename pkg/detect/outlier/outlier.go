// Package outlier provides the optional outlier-model detectors: isolation
// forest, k-nearest-neighbour distance, ECOD, and COPOD. Linking this
// package registers the four kinds against the default detect registry:
//
//	import _ "github.com/HerbHall/driftwatch/pkg/detect/outlier"
//
// Builds that omit the import simply run without these kinds; requesting one
// then fails with the registry's standard unknown-type configuration error.
//
// Each detector expands the series into lag-feature rows, fits its model on
// all rows, and flags the points whose scores fall in the top contamination
// fraction of the fitted scores.
package outlier

import (
	"fmt"
	"math"
	"sort"

	"github.com/HerbHall/driftwatch/pkg/detect"
)

func init() {
	r := detect.Default()
	r.Register(detect.KindIsolationForest, func(cfg detect.Config) (detect.Detector, error) {
		return newModelDetector(cfg, newForest(cfg)), nil
	})
	r.Register(detect.KindKNN, func(cfg detect.Config) (detect.Detector, error) {
		return newModelDetector(cfg, newKNN(cfg)), nil
	})
	r.Register(detect.KindECOD, func(cfg detect.Config) (detect.Detector, error) {
		return newModelDetector(cfg, &ecod{}), nil
	})
	r.Register(detect.KindCOPOD, func(cfg detect.Config) (detect.Detector, error) {
		return newModelDetector(cfg, &copod{}), nil
	})
}

// model is the minimal contract an outlier algorithm implements: fit on
// feature rows, then score them (higher means more anomalous).
type model interface {
	fit(rows [][]float64)
	scores(rows [][]float64) []float64
}

// Defaults for the model wrapper.
const (
	defaultLags          = 3
	defaultContamination = 0.1
	minModelPoints       = 20
)

// modelDetector adapts a score-based outlier model to the detect.Detector
// contract.
type modelDetector struct {
	m             model
	lags          int
	contamination float64
}

func newModelDetector(cfg detect.Config, m model) *modelDetector {
	d := &modelDetector{m: m, lags: cfg.Lags, contamination: cfg.Contamination}
	if d.lags <= 0 {
		d.lags = defaultLags
	}
	if d.contamination <= 0 || d.contamination >= 0.5 {
		d.contamination = defaultContamination
	}
	return d
}

// run fits the model and derives the score threshold as the
// (1 - contamination) quantile of the fitted scores.
func (d *modelDetector) run(series []float64) (scores []float64, threshold float64) {
	rows := detect.LagMatrix(series, d.lags)
	d.m.fit(rows)
	scores = d.m.scores(rows)
	threshold = quantile(scores, 1-d.contamination)
	return scores, threshold
}

func (d *modelDetector) Detect(series []float64) detect.DetectionResult {
	if len(series) < minModelPoints {
		return tooFewPoints(len(series))
	}

	scores, threshold := d.run(series)
	last := scores[len(scores)-1]
	res := detect.DetectionResult{
		Score:    &last,
		Metadata: map[string]any{"score_threshold": threshold},
	}
	if last > threshold {
		res.IsAnomaly = true
		res.TriggeredIndices = []int{len(series) - 1}
	}
	return res
}

func (d *modelDetector) DetectBatch(series []float64) detect.DetectionResult {
	if len(series) < minModelPoints {
		return tooFewPoints(len(series))
	}

	scores, threshold := d.run(series)
	res := detect.DetectionResult{
		AllScores: make([]*float64, len(series)),
		Metadata:  map[string]any{"score_threshold": threshold},
	}
	for i := range scores {
		s := scores[i]
		res.AllScores[i] = &s
		if s > threshold {
			res.TriggeredIndices = append(res.TriggeredIndices, i)
		}
	}
	res.IsAnomaly = len(res.TriggeredIndices) > 0
	res.Score = res.AllScores[len(series)-1]
	return res
}

func tooFewPoints(got int) detect.DetectionResult {
	return detect.DetectionResult{
		Metadata: map[string]any{
			"reason": fmt.Sprintf("insufficient data for outlier model: need at least %d points, got %d", minModelPoints, got),
		},
	}
}

// quantile computes the q-th quantile (0-1) with linear interpolation.
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := q * float64(len(sorted)-1)
	lower := int(idx)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[lower+1]*weight
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
