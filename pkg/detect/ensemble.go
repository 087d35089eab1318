package detect

// Ensemble composition limits.
const (
	ensembleMinDetectors = 2
	ensembleMaxDetectors = 5
)

// EnsembleDetector combines 2-5 child detectors with an AND/OR operator.
// It is a flat composition: children may not themselves be ensembles
// (arbitrary nesting is the job of the group composer, see Evaluate).
//
// Child detector instances are built once at construction and reused for
// the lifetime of the ensemble.
type EnsembleDetector struct {
	mode     Operator
	children []Detector
}

// NewEnsemble validates the ensemble configuration, constructs every child
// detector, and returns the ensemble. Count and nesting violations, and any
// invalid child configuration, are *ConfigError.
func NewEnsemble(reg *Registry, cfg Config) (Detector, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = OpAnd
	}
	if mode != OpAnd && mode != OpOr {
		return nil, configErrorf("ensemble: invalid mode %q (want AND or OR)", cfg.Mode)
	}
	if len(cfg.Detectors) < ensembleMinDetectors {
		return nil, configErrorf("ensemble: at least %d detectors required, got %d",
			ensembleMinDetectors, len(cfg.Detectors))
	}
	if len(cfg.Detectors) > ensembleMaxDetectors {
		return nil, configErrorf("ensemble: at most %d detectors allowed, got %d",
			ensembleMaxDetectors, len(cfg.Detectors))
	}

	children := make([]Detector, 0, len(cfg.Detectors))
	for _, child := range cfg.Detectors {
		if child.Type == KindEnsemble {
			return nil, configErrorf("ensemble: nested ensembles are not allowed")
		}
		det, err := reg.Detector(child)
		if err != nil {
			return nil, err
		}
		children = append(children, det)
	}

	return &EnsembleDetector{mode: mode, children: children}, nil
}

// combineScores averages the defined (non-nil) scores; nil when no child
// produced one.
func combineScores(scores []*float64) *float64 {
	sum, n := 0.0, 0
	for _, s := range scores {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return ptr(sum / float64(n))
}

// Detect evaluates all children on the latest point and combines verdicts:
// AND requires every child to flag, OR any. The combined score is the mean
// of the children's defined scores either way.
func (d *EnsembleDetector) Detect(series []float64) DetectionResult {
	scores := make([]*float64, len(d.children))
	verdict := d.mode == OpAnd
	for i, child := range d.children {
		res := child.Detect(series)
		scores[i] = res.Score
		if d.mode == OpAnd {
			verdict = verdict && res.IsAnomaly
		} else {
			verdict = verdict || res.IsAnomaly
		}
	}

	res := DetectionResult{
		IsAnomaly: verdict,
		Score:     combineScores(scores),
		Metadata:  map[string]any{"mode": string(d.mode), "n_detectors": len(d.children)},
	}
	if verdict && len(series) > 0 {
		res.TriggeredIndices = []int{len(series) - 1}
	}
	return res
}

// DetectBatch evaluates all children over the whole series. Triggered
// indices are the set intersection (AND) or union (OR) of the children's
// triggered sets; per-point scores average each index over the children
// that scored it.
func (d *EnsembleDetector) DetectBatch(series []float64) DetectionResult {
	results := make([]DetectionResult, len(d.children))
	for i, child := range d.children {
		results[i] = child.DetectBatch(series)
	}

	var triggered []int
	switch d.mode {
	case OpAnd:
		counts := make(map[int]int)
		for _, res := range results {
			for _, idx := range res.TriggeredIndices {
				counts[idx]++
			}
		}
		for idx := 0; idx < len(series); idx++ {
			if counts[idx] == len(d.children) {
				triggered = append(triggered, idx)
			}
		}
	default: // OR
		seen := make(map[int]bool)
		for _, res := range results {
			for _, idx := range res.TriggeredIndices {
				seen[idx] = true
			}
		}
		for idx := 0; idx < len(series); idx++ {
			if seen[idx] {
				triggered = append(triggered, idx)
			}
		}
	}

	allScores := make([]*float64, len(series))
	for i := range series {
		perChild := make([]*float64, 0, len(d.children))
		for _, res := range results {
			if i < len(res.AllScores) {
				perChild = append(perChild, res.AllScores[i])
			}
		}
		allScores[i] = combineScores(perChild)
	}

	out := DetectionResult{
		IsAnomaly:        len(triggered) > 0,
		TriggeredIndices: triggered,
		AllScores:        allScores,
		Metadata:         map[string]any{"mode": string(d.mode), "n_detectors": len(d.children)},
	}
	if len(series) > 0 {
		out.Score = allScores[len(series)-1]
	}
	return out
}
