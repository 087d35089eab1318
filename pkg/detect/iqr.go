package detect

// IQRDetector flags points outside Tukey fences built from the rolling
// interquartile range: [Q1 - k*IQR, Q3 + k*IQR] over the trailing window,
// excluding the checked point.
type IQRDetector struct {
	window     int
	multiplier float64
}

const defaultMultiplier = 1.5

// NewIQR builds an IQR detector from cfg. Window defaults to 10 and the
// fence multiplier to 1.5.
func NewIQR(cfg Config) (Detector, error) {
	d := &IQRDetector{window: cfg.Window, multiplier: cfg.Multiplier}
	if d.window <= 0 {
		d.window = defaultWindow
	}
	if d.multiplier <= 0 {
		d.multiplier = defaultMultiplier
	}
	return d, nil
}

// scoreAt evaluates series[i] against fences from the preceding window. The
// score is the distance beyond the nearer fence normalized by the IQR: 0
// inside the fences, and 0 when the IQR collapses to zero. The caller
// guarantees i >= window.
func (d *IQRDetector) scoreAt(series []float64, i int) (score float64, anomalous bool, q1, q3 float64) {
	window := series[i-d.window : i]
	q1 = percentile(window, 25)
	q3 = percentile(window, 75)
	iqr := q3 - q1

	lower := q1 - d.multiplier*iqr
	upper := q3 + d.multiplier*iqr
	v := series[i]

	if v >= lower && v <= upper {
		return 0, false, q1, q3
	}
	if iqr == 0 {
		return 0, true, q1, q3
	}
	if v < lower {
		return (lower - v) / iqr, true, q1, q3
	}
	return (v - upper) / iqr, true, q1, q3
}

// Detect checks the most recent point.
func (d *IQRDetector) Detect(series []float64) DetectionResult {
	if len(series) < d.window+1 {
		return insufficientData(len(series), d.window+1)
	}

	i := len(series) - 1
	score, anomalous, q1, q3 := d.scoreAt(series, i)
	res := DetectionResult{
		Score: ptr(score),
		Metadata: map[string]any{
			"q1": q1,
			"q3": q3,
		},
	}
	if anomalous {
		res.IsAnomaly = true
		res.TriggeredIndices = []int{i}
	}
	return res
}

// DetectBatch checks every point from index window onward.
func (d *IQRDetector) DetectBatch(series []float64) DetectionResult {
	if len(series) < d.window+1 {
		return insufficientData(len(series), d.window+1)
	}

	res := DetectionResult{AllScores: make([]*float64, len(series))}
	for i := d.window; i < len(series); i++ {
		score, anomalous, _, _ := d.scoreAt(series, i)
		res.AllScores[i] = ptr(score)
		if anomalous {
			res.TriggeredIndices = append(res.TriggeredIndices, i)
		}
	}
	res.IsAnomaly = len(res.TriggeredIndices) > 0
	res.Score = res.AllScores[len(series)-1]
	return res
}
