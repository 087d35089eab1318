package detect

import "math"

// madScale converts a median absolute deviation into a standard-deviation
// equivalent under an assumed normal distribution.
const madScale = 1.4826

// MADDetector flags points far from the rolling median, measured in scaled
// median-absolute-deviation units. More robust to outliers in the baseline
// window than the z-score detector.
type MADDetector struct {
	window    int
	threshold float64
}

// NewMAD builds a MAD detector from cfg. Window defaults to 10 and
// threshold to 3.0.
func NewMAD(cfg Config) (Detector, error) {
	d := &MADDetector{window: cfg.Window, threshold: cfg.Threshold}
	if d.window <= 0 {
		d.window = defaultWindow
	}
	if d.threshold <= 0 {
		d.threshold = defaultThreshold
	}
	return d, nil
}

// scoreAt computes the scaled MAD score of series[i] against the window
// preceding it. The caller guarantees i >= window.
func (d *MADDetector) scoreAt(series []float64, i int) (score, med, scaledMAD float64) {
	window := series[i-d.window : i]
	med = median(window)

	deviations := make([]float64, len(window))
	for j, v := range window {
		deviations[j] = math.Abs(v - med)
	}
	scaledMAD = madScale * median(deviations)

	if scaledMAD == 0 {
		return 0, med, scaledMAD
	}
	return math.Abs(series[i]-med) / scaledMAD, med, scaledMAD
}

// Detect checks the most recent point.
func (d *MADDetector) Detect(series []float64) DetectionResult {
	if len(series) < d.window+1 {
		return insufficientData(len(series), d.window+1)
	}

	i := len(series) - 1
	score, med, scaledMAD := d.scoreAt(series, i)
	res := DetectionResult{
		Score: ptr(score),
		Metadata: map[string]any{
			"median":     med,
			"scaled_mad": scaledMAD,
		},
	}
	if score > d.threshold {
		res.IsAnomaly = true
		res.TriggeredIndices = []int{i}
	}
	return res
}

// DetectBatch checks every point from index window onward.
func (d *MADDetector) DetectBatch(series []float64) DetectionResult {
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
