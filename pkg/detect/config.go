package detect

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a detector implementation in the registry.
type Kind string

// Built-in detector kinds. The outlier-model kinds are registered only when
// the outlier subpackage is linked in (see pkg/detect/outlier).
const (
	KindThreshold       Kind = "threshold"
	KindZScore          Kind = "zscore"
	KindMAD             Kind = "mad"
	KindIQR             Kind = "iqr"
	KindKMeans          Kind = "kmeans"
	KindEnsemble        Kind = "ensemble"
	KindIsolationForest Kind = "isolation_forest"
	KindKNN             Kind = "knn"
	KindECOD            Kind = "ecod"
	KindCOPOD           Kind = "copod"
)

// Operator combines detector verdicts in ensembles and groups.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
)

// Feature identifies a derived input column for the k-means detector.
type Feature string

const (
	FeatureDiff1     Feature = "diff_1"
	FeatureLag1      Feature = "lag_1"
	FeatureLag2      Feature = "lag_2"
	FeatureLag3      Feature = "lag_3"
	FeatureLag4      Feature = "lag_4"
	FeatureLag5      Feature = "lag_5"
	FeatureSmoothed3 Feature = "smoothed_3"
	FeatureSmoothed5 Feature = "smoothed_5"
	FeatureSmoothed7 Feature = "smoothed_7"
)

// AnomalyMethod selects how the k-means detector identifies the anomaly
// cluster.
const (
	AnomalySmallest = "smallest"
	AnomalyFurthest = "furthest"
)

// Config describes one detector. It is the tagged union of all detector
// kinds: Type selects the implementation, and only the fields that kind
// understands are read. Zero values fall back to per-kind defaults at
// construction time.
type Config struct {
	Type Kind `json:"type"`

	// Threshold detector bounds. Either may be nil; both nil means the
	// detector never flags.
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`

	// Z-score / MAD score threshold (default 3.0).
	Threshold float64 `json:"threshold,omitempty"`

	// IQR fence multiplier (default 1.5).
	Multiplier float64 `json:"multiplier,omitempty"`

	// Rolling window size for the windowed statistical detectors
	// (default 10).
	Window int `json:"window,omitempty"`

	// K-means parameters.
	NClusters     int       `json:"n_clusters,omitempty"`
	Features      []Feature `json:"features,omitempty"`
	AnomalyMethod string    `json:"anomaly_method,omitempty"`

	// Outlier-model parameters (isolation_forest, knn, ecod, copod).
	Contamination float64 `json:"contamination,omitempty"`
	Neighbors     int     `json:"n_neighbors,omitempty"`
	Lags          int     `json:"lags,omitempty"`
	Seed          int64   `json:"seed,omitempty"`

	// Ensemble composition: Mode combines 2-5 child detectors. Children
	// may not themselves be ensembles.
	Mode      Operator `json:"mode,omitempty"`
	Detectors []Config `json:"detectors,omitempty"`
}

// Node is one entry in a detector group: either a leaf detector config or a
// nested group. Groups may nest arbitrarily, unlike the flat ensemble kind.
type Node struct {
	Leaf  *Config
	Group *Group
}

// Group is an AND/OR composition of detector configs and nested groups.
type Group struct {
	Type      Operator `json:"type"`
	Detectors []Node   `json:"detectors"`
}

// AlertConfig is the top-level detector tree attached to an alert.
type AlertConfig struct {
	Type   Operator `json:"type"`
	Groups []Node   `json:"groups"`
}

// nodeProbe is used to peek at the discriminant before committing to a
// leaf or group decode.
type nodeProbe struct {
	Type string `json:"type"`
}

// UnmarshalJSON decodes the tagged union: objects whose type is AND/OR are
// nested groups, everything else is a leaf detector config. A missing type
// is left to construction-time validation so the error carries the full
// registry context.
func (n *Node) UnmarshalJSON(b []byte) error {
	var probe nodeProbe
	if err := json.Unmarshal(b, &probe); err != nil {
		return fmt.Errorf("detector node: %w", err)
	}

	switch Operator(probe.Type) {
	case OpAnd, OpOr:
		var g Group
		if err := json.Unmarshal(b, &g); err != nil {
			return fmt.Errorf("detector group: %w", err)
		}
		n.Group = &g
		n.Leaf = nil
	default:
		var c Config
		if err := json.Unmarshal(b, &c); err != nil {
			return fmt.Errorf("detector config: %w", err)
		}
		n.Leaf = &c
		n.Group = nil
	}
	return nil
}

// MarshalJSON emits whichever side of the union is populated.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Group != nil {
		return json.Marshal(n.Group)
	}
	if n.Leaf != nil {
		return json.Marshal(n.Leaf)
	}
	return []byte("null"), nil
}

// ConfigError reports an invalid detector configuration: unknown or missing
// type, or ensemble composition violations. It is the only error class the
// engine raises; data shortfalls degrade to non-anomalous results instead.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}
