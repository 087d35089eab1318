package detect

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func thresholdCfg(upper float64) Config {
	return Config{Type: KindThreshold, UpperBound: ptr(upper)}
}

func TestEnsemble_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "single child rejected",
			cfg:     Config{Type: KindEnsemble, Mode: OpAnd, Detectors: []Config{thresholdCfg(1)}},
			wantErr: "at least 2 detectors required",
		},
		{
			name: "six children rejected",
			cfg: Config{Type: KindEnsemble, Mode: OpAnd, Detectors: []Config{
				thresholdCfg(1), thresholdCfg(2), thresholdCfg(3),
				thresholdCfg(4), thresholdCfg(5), thresholdCfg(6),
			}},
			wantErr: "at most 5 detectors",
		},
		{
			name: "nested ensemble rejected",
			cfg: Config{Type: KindEnsemble, Mode: OpOr, Detectors: []Config{
				thresholdCfg(1),
				{Type: KindEnsemble, Mode: OpAnd, Detectors: []Config{thresholdCfg(1), thresholdCfg(2)}},
			}},
			wantErr: "nested ensembles",
		},
		{
			name: "invalid mode rejected",
			cfg: Config{Type: KindEnsemble, Mode: "XOR", Detectors: []Config{
				thresholdCfg(1), thresholdCfg(2),
			}},
			wantErr: "invalid mode",
		},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEnsemble(reg, tt.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("NewEnsemble() error = %v, want *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnsemble_BooleanSemantics(t *testing.T) {
	// On data ending in 5: upper bound 4 flags, upper bound 10 does not.
	flagging := thresholdCfg(4)
	quiet := thresholdCfg(10)
	data := []float64{5}

	tests := []struct {
		name     string
		mode     Operator
		children []Config
		want     bool
	}{
		{"AND both flag", OpAnd, []Config{flagging, thresholdCfg(3)}, true},
		{"AND one quiet", OpAnd, []Config{flagging, quiet}, false},
		{"OR one flags", OpOr, []Config{flagging, quiet}, true},
		{"OR none flag", OpOr, []Config{quiet, thresholdCfg(20)}, false},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := NewEnsemble(reg, Config{Type: KindEnsemble, Mode: tt.mode, Detectors: tt.children})
			if err != nil {
				t.Fatalf("NewEnsemble() error = %v", err)
			}
			if got := det.Detect(data).IsAnomaly; got != tt.want {
				t.Errorf("Detect() IsAnomaly = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsemble_ScoreAveraging(t *testing.T) {
	reg := NewRegistry()
	det, err := NewEnsemble(reg, Config{Type: KindEnsemble, Mode: OpOr, Detectors: []Config{
		thresholdCfg(4),
		// Z-score never has a score on a one-point series, so only the
		// threshold child contributes to the mean.
		{Type: KindZScore, Window: 10},
	}})
	if err != nil {
		t.Fatalf("NewEnsemble() error = %v", err)
	}

	res := det.Detect([]float64{5})
	if res.Score == nil || math.Abs(*res.Score-5) > 1e-9 {
		t.Errorf("Detect() Score = %v, want 5 (mean over defined scores only)", res.Score)
	}
}

func TestEnsemble_BatchIntersectionAndUnion(t *testing.T) {
	data := []float64{1, 50, 100}
	wide := thresholdCfg(40)   // triggers at 1, 2
	narrow := thresholdCfg(75) // triggers at 2

	reg := NewRegistry()

	andDet, _ := NewEnsemble(reg, Config{Type: KindEnsemble, Mode: OpAnd, Detectors: []Config{wide, narrow}})
	andRes := andDet.DetectBatch(data)
	if want := []int{2}; !reflect.DeepEqual(andRes.TriggeredIndices, want) {
		t.Errorf("AND TriggeredIndices = %v, want %v", andRes.TriggeredIndices, want)
	}

	orDet, _ := NewEnsemble(reg, Config{Type: KindEnsemble, Mode: OpOr, Detectors: []Config{wide, narrow}})
	orRes := orDet.DetectBatch(data)
	if want := []int{1, 2}; !reflect.DeepEqual(orRes.TriggeredIndices, want) {
		t.Errorf("OR TriggeredIndices = %v, want %v", orRes.TriggeredIndices, want)
	}
}

func TestEnsemble_ChildInstancesReused(t *testing.T) {
	reg := NewRegistry()
	det, _ := NewEnsemble(reg, Config{Type: KindEnsemble, Mode: OpOr, Detectors: []Config{
		thresholdCfg(4), thresholdCfg(10),
	}})
	ens := det.(*EnsembleDetector)

	first := ens.children
	_ = ens.Detect([]float64{1})
	_ = ens.Detect([]float64{2})
	if len(first) != 2 || &first[0] != &ens.children[0] {
		t.Error("child detectors rebuilt between calls, want instances from construction")
	}
}

func TestEnsemble_UnknownChildFailsConstruction(t *testing.T) {
	cfg := Config{Type: KindEnsemble, Mode: OpOr, Detectors: []Config{
		{Type: "not_a_real_type"},
		{Type: KindZScore, Window: 10},
	}}

	reg := NewRegistry()

	// The constructor must reject the child, not defer to evaluation time.
	_, err := NewEnsemble(reg, cfg)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewEnsemble() error = %v, want *ConfigError", err)
	}
	if !strings.Contains(err.Error(), "not_a_real_type") {
		t.Errorf("error %q does not name the unknown child type", err.Error())
	}

	// Same through the registry, the path the evaluator uses.
	if _, err := reg.Detector(cfg); !errors.As(err, &cfgErr) {
		t.Errorf("Detector() error = %v, want *ConfigError", err)
	}

	// And the evaluator must propagate it rather than report no breach.
	alert := AlertConfig{Type: OpOr, Groups: []Node{{Leaf: &cfg}}}
	if _, err := EvaluateWith(reg, alert, []float64{1, 2, 3}, nil, "cpu", nil); !errors.As(err, &cfgErr) {
		t.Errorf("EvaluateWith() error = %v, want *ConfigError", err)
	}
}
