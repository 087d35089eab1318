package detect

import (
	"fmt"
	"sort"
	"strings"
)

// Evaluate runs the alert's detector tree against a series and returns the
// combined verdict for one point, using the default registry. See
// EvaluateWith for the semantics.
func Evaluate(cfg AlertConfig, data []float64, timestamps []string, label string, checkIndex *int) (DetectorResult, error) {
	return EvaluateWith(Default(), cfg, data, timestamps, label, checkIndex)
}

// EvaluateWith is the evaluator entry point. It dispatches into the
// recursive group composer: each group node combines its children with its
// AND/OR operator, and each leaf runs the configured detector.
//
// checkIndex selects the point under test; nil means the most recent point
// and negative values count back from the end. An out-of-range index yields
// a non-breaching result with a message, never an error. Configuration
// errors (unknown detector types, invalid ensembles) do propagate, since a
// misconfigured alert must surface rather than read as "no anomaly".
func EvaluateWith(reg *Registry, cfg AlertConfig, data []float64, timestamps []string, label string, checkIndex *int) (DetectorResult, error) {
	if len(data) == 0 {
		return DetectorResult{Message: "No data points provided"}, nil
	}

	idx, ok := resolveIndex(len(data), checkIndex)
	if !ok {
		return DetectorResult{
			Message: fmt.Sprintf("check index %d is out of range for %d data points", *checkIndex, len(data)),
		}, nil
	}

	if len(cfg.Groups) == 0 {
		return DetectorResult{Message: "No detectors configured"}, nil
	}

	op := cfg.Type
	if op == "" {
		op = OpAnd
	}

	children := make([]DetectorResult, 0, len(cfg.Groups))
	for _, node := range cfg.Groups {
		res, err := evalNode(reg, node, data, timestamps, label, idx)
		if err != nil {
			return DetectorResult{}, err
		}
		children = append(children, res)
	}
	return combine(op, children, ptr(data[idx])), nil
}

// AllBreachPoints re-evaluates the full configuration at every index and
// returns the indices where the combined result breaches, ascending. Used
// for visualization overlays, independent of any one detector's batch mode.
func AllBreachPoints(cfg AlertConfig, data []float64, timestamps []string, label string) ([]int, error) {
	return AllBreachPointsWith(Default(), cfg, data, timestamps, label)
}

// AllBreachPointsWith is AllBreachPoints against an explicit registry.
func AllBreachPointsWith(reg *Registry, cfg AlertConfig, data []float64, timestamps []string, label string) ([]int, error) {
	var breaches []int
	for i := range data {
		idx := i
		res, err := EvaluateWith(reg, cfg, data, timestamps, label, &idx)
		if err != nil {
			return nil, err
		}
		if res.IsBreaching {
			breaches = append(breaches, i)
		}
	}
	return breaches, nil
}

// resolveIndex normalizes a possibly-negative check index against a
// non-empty series. ok is false when the index is out of range.
func resolveIndex(n int, checkIndex *int) (int, bool) {
	if checkIndex == nil {
		return n - 1, true
	}
	idx := *checkIndex
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

// evalNode evaluates one tree node: a leaf detector config or a nested
// group, recursively.
func evalNode(reg *Registry, node Node, data []float64, timestamps []string, label string, idx int) (DetectorResult, error) {
	switch {
	case node.Group != nil:
		return evalGroup(reg, node.Group, data, timestamps, label, idx)
	case node.Leaf != nil:
		return evalLeaf(reg, *node.Leaf, data, timestamps, label, idx)
	default:
		return DetectorResult{Message: "Empty detector group"}, nil
	}
}

func evalGroup(reg *Registry, g *Group, data []float64, timestamps []string, label string, idx int) (DetectorResult, error) {
	if len(g.Detectors) == 0 {
		return DetectorResult{Message: "Empty detector group"}, nil
	}

	op := g.Type
	if op == "" {
		op = OpAnd
	}

	children := make([]DetectorResult, 0, len(g.Detectors))
	for _, node := range g.Detectors {
		res, err := evalNode(reg, node, data, timestamps, label, idx)
		if err != nil {
			return DetectorResult{}, err
		}
		children = append(children, res)
	}
	return combine(op, children, ptr(data[idx])), nil
}

// evalLeaf constructs and runs one detector. The single-point verdict comes
// from Detect on the series up to the checked index; the breach indices come
// from DetectBatch over the full series so composed results can intersect
// and union them.
func evalLeaf(reg *Registry, cfg Config, data []float64, timestamps []string, label string, idx int) (DetectorResult, error) {
	det, err := reg.Detector(cfg)
	if err != nil {
		return DetectorResult{}, err
	}

	single := det.Detect(data[:idx+1])
	batch := det.DetectBatch(data)

	res := DetectorResult{
		IsBreaching:   single.IsAnomaly,
		BreachIndices: batch.TriggeredIndices,
		Value:         ptr(data[idx]),
	}

	switch {
	case single.IsAnomaly:
		res.Message = leafMessage(cfg.Type, label, data[idx], single.Score, timestamps, idx)
	default:
		if reason, ok := single.Metadata["reason"].(string); ok {
			res.Message = reason
		}
	}
	return res, nil
}

func leafMessage(kind Kind, label string, value float64, score *float64, timestamps []string, idx int) string {
	at := fmt.Sprintf("index %d", idx)
	if idx < len(timestamps) {
		at = timestamps[idx]
	}
	if score != nil {
		return fmt.Sprintf("%s value %.2f flagged by %s detector at %s (score %.2f)", label, value, kind, at, *score)
	}
	return fmt.Sprintf("%s value %.2f flagged by %s detector at %s", label, value, kind, at)
}

// combine folds child verdicts with the group operator.
//
// AND breaches only when every child breaches; its breach indices are the
// intersection of the children's non-empty index sets (empty when no child
// reported any). OR breaches when any child does, and unions indices from
// the breaching children only.
func combine(op Operator, children []DetectorResult, value *float64) DetectorResult {
	out := DetectorResult{Value: value}

	var messages []string
	for _, c := range children {
		if c.Message != "" {
			messages = append(messages, c.Message)
		}
	}
	out.Message = strings.Join(messages, fmt.Sprintf(" %s ", op))

	switch op {
	case OpOr:
		out.IsBreaching = false
		seen := make(map[int]bool)
		for _, c := range children {
			if !c.IsBreaching {
				continue
			}
			out.IsBreaching = true
			for _, idx := range c.BreachIndices {
				seen[idx] = true
			}
		}
		out.BreachIndices = sortedIndices(seen)

	default: // AND
		out.IsBreaching = len(children) > 0
		sets := 0
		counts := make(map[int]int)
		for _, c := range children {
			if !c.IsBreaching {
				out.IsBreaching = false
			}
			if len(c.BreachIndices) == 0 {
				continue
			}
			sets++
			for _, idx := range c.BreachIndices {
				counts[idx]++
			}
		}
		if sets > 0 {
			common := make(map[int]bool)
			for idx, n := range counts {
				if n == sets {
					common[idx] = true
				}
			}
			out.BreachIndices = sortedIndices(common)
		}
	}
	return out
}

func sortedIndices(set map[int]bool) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
