package detect

import "math"

const (
	defaultWindow    = 10
	defaultThreshold = 3.0
)

// ZScoreDetector flags points whose distance from the rolling mean exceeds a
// multiple of the rolling standard deviation. The baseline window trails the
// checked point and excludes it.
type ZScoreDetector struct {
	window    int
	threshold float64
}

// NewZScore builds a z-score detector from cfg. Window defaults to 10 and
// threshold to 3.0.
func NewZScore(cfg Config) (Detector, error) {
	d := &ZScoreDetector{window: cfg.Window, threshold: cfg.Threshold}
	if d.window <= 0 {
		d.window = defaultWindow
	}
	if d.threshold <= 0 {
		d.threshold = defaultThreshold
	}
	return d, nil
}

// scoreAt computes the z-score of series[i] against the window preceding it.
// The caller guarantees i >= window.
func (d *ZScoreDetector) scoreAt(series []float64, i int) (score, baseMean, baseStd float64) {
	window := series[i-d.window : i]
	baseMean = mean(window)
	baseStd = stdDev(window)
	v := series[i]

	if baseStd == 0 {
		// Constant baseline: any deviation from it is treated as
		// infinitely anomalous. Documented engine behavior, kept as-is.
		if v != baseMean {
			return math.Inf(1), baseMean, baseStd
		}
		return 0, baseMean, baseStd
	}
	return math.Abs(v-baseMean) / baseStd, baseMean, baseStd
}

// Detect checks the most recent point.
func (d *ZScoreDetector) Detect(series []float64) DetectionResult {
	if len(series) < d.window+1 {
		return insufficientData(len(series), d.window+1)
	}

	i := len(series) - 1
	score, baseMean, baseStd := d.scoreAt(series, i)
	res := DetectionResult{
		Score: ptr(score),
		Metadata: map[string]any{
			"mean": baseMean,
			"std":  baseStd,
		},
	}
	if score > d.threshold {
		res.IsAnomaly = true
		res.TriggeredIndices = []int{i}
	}
	return res
}

// DetectBatch checks every point from index window onward. Earlier points
// have no score (nil) for lack of history.
func (d *ZScoreDetector) DetectBatch(series []float64) DetectionResult {
	if len(series) < d.window+1 {
		return insufficientData(len(series), d.window+1)
	}

	res := DetectionResult{AllScores: make([]*float64, len(series))}
	for i := d.window; i < len(series); i++ {
		score, _, _ := d.scoreAt(series, i)
		res.AllScores[i] = ptr(score)
		if score > d.threshold {
			res.TriggeredIndices = append(res.TriggeredIndices, i)
		}
	}
	res.IsAnomaly = len(res.TriggeredIndices) > 0
	res.Score = res.AllScores[len(series)-1]
	return res
}
