package detect

import "fmt"

// ThresholdDetector flags values outside fixed lower/upper bounds. Either
// bound may be absent; with both absent it never flags. Unlike the windowed
// detectors it needs no history, so every point is eligible.
type ThresholdDetector struct {
	lower *float64
	upper *float64
}

// NewThreshold builds a threshold detector from cfg.
func NewThreshold(cfg Config) (Detector, error) {
	return &ThresholdDetector{lower: cfg.LowerBound, upper: cfg.UpperBound}, nil
}

func (d *ThresholdDetector) breaches(v float64) bool {
	if d.lower != nil && v < *d.lower {
		return true
	}
	if d.upper != nil && v > *d.upper {
		return true
	}
	return false
}

// Detect checks the latest value against the bounds. The score is the raw
// value itself.
func (d *ThresholdDetector) Detect(series []float64) DetectionResult {
	if len(series) == 0 {
		return insufficientData(0, 1)
	}

	v := series[len(series)-1]
	res := DetectionResult{
		Score:    ptr(v),
		Metadata: d.metadata(),
	}
	if d.breaches(v) {
		res.IsAnomaly = true
		res.TriggeredIndices = []int{len(series) - 1}
	}
	return res
}

// DetectBatch checks every value against the bounds.
func (d *ThresholdDetector) DetectBatch(series []float64) DetectionResult {
	if len(series) == 0 {
		return insufficientData(0, 1)
	}

	res := DetectionResult{
		AllScores: make([]*float64, len(series)),
		Metadata:  d.metadata(),
	}
	for i, v := range series {
		res.AllScores[i] = ptr(v)
		if d.breaches(v) {
			res.TriggeredIndices = append(res.TriggeredIndices, i)
		}
	}
	res.IsAnomaly = len(res.TriggeredIndices) > 0
	res.Score = res.AllScores[len(series)-1]
	return res
}

func (d *ThresholdDetector) metadata() map[string]any {
	md := make(map[string]any, 2)
	if d.lower != nil {
		md["lower_bound"] = *d.lower
	}
	if d.upper != nil {
		md["upper_bound"] = *d.upper
	}
	return md
}

// insufficientData is the shared "too little history" result: never
// anomalous, no score, with a human-readable reason in the metadata.
func insufficientData(got, need int) DetectionResult {
	return DetectionResult{
		Metadata: map[string]any{
			"reason": fmt.Sprintf("insufficient data: need at least %d points, got %d", need, got),
		},
	}
}
