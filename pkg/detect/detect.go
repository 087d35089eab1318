// Package detect provides the driftwatch anomaly-detection engine: a library
// of statistical and clustering detectors over numeric time series, a
// name-keyed detector registry, AND/OR ensemble composition, and the alert
// evaluator that drives breach decisions.
//
// The package is self-contained and performs no I/O. Detectors are stateless
// value objects constructed per evaluation; see Registry for construction and
// Evaluate for the service-facing entry point.
package detect

// Detector is the common contract for all anomaly detectors.
//
// Detect checks only the most recent point of the series. DetectBatch checks
// every point that has enough trailing history. Both degrade to a
// non-anomalous result (never an error) when the series is too short; only
// construction can fail, with a *ConfigError.
type Detector interface {
	Detect(series []float64) DetectionResult
	DetectBatch(series []float64) DetectionResult
}

// DetectionResult is the universal output of a single detector.
type DetectionResult struct {
	// IsAnomaly reports whether the checked point breaches. For batch
	// evaluation it is equivalent to len(TriggeredIndices) > 0.
	IsAnomaly bool `json:"is_anomaly"`

	// Score is the detector-specific anomaly magnitude for the checked
	// point. Nil when undefined (insufficient data).
	Score *float64 `json:"score"`

	// TriggeredIndices lists the 0-based series positions flagged as
	// anomalous, in ascending order. Empty for single-point evaluation
	// unless the checked point breaches.
	TriggeredIndices []int `json:"triggered_indices"`

	// AllScores holds one entry per input point, aligned to the series.
	// Entries for points without enough trailing history are nil. Only
	// populated by DetectBatch.
	AllScores []*float64 `json:"all_scores,omitempty"`

	// Metadata carries detector-specific diagnostics (baseline mean,
	// quartiles, cluster sizes, shortfall reasons).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DetectorResult is the alert-level verdict produced by the evaluator and
// the group composer. It speaks in "breaching" terms: does the alert fire.
type DetectorResult struct {
	IsBreaching   bool     `json:"is_breaching"`
	BreachIndices []int    `json:"breach_indices"`
	Value         *float64 `json:"value"`
	Message       string   `json:"message,omitempty"`
}

// ptr returns a pointer to v. Scores are pointers so "no score" is
// representable; this keeps call sites short.
func ptr(v float64) *float64 { return &v }
