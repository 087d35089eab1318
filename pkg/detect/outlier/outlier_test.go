package outlier

import (
	"math"
	"testing"

	"github.com/HerbHall/driftwatch/pkg/detect"
)

// spikedSeries is a flat-ish series with one gross outlier near the end,
// long enough to clear the model minimum.
func spikedSeries() ([]float64, int) {
	series := make([]float64, 30)
	for i := range series {
		series[i] = 10 + float64(i%3)
	}
	spike := 25
	series[spike] = 500
	return series, spike
}

func TestLinkedKindsRegistered(t *testing.T) {
	reg := detect.Default()
	for _, kind := range []detect.Kind{
		detect.KindIsolationForest, detect.KindKNN, detect.KindECOD, detect.KindCOPOD,
	} {
		if !reg.Has(kind) {
			t.Errorf("Default() registry missing %q after linking outlier package", kind)
		}
	}
}

func TestModelsFlagSpike(t *testing.T) {
	series, spike := spikedSeries()

	tests := []struct {
		name string
		cfg  detect.Config
	}{
		{"isolation forest", detect.Config{Type: detect.KindIsolationForest, Seed: 7, Contamination: 0.2}},
		{"knn", detect.Config{Type: detect.KindKNN, Neighbors: 5, Contamination: 0.2}},
		{"ecod", detect.Config{Type: detect.KindECOD, Contamination: 0.2}},
		{"copod", detect.Config{Type: detect.KindCOPOD, Contamination: 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := detect.Default().Detector(tt.cfg)
			if err != nil {
				t.Fatalf("Detector() error = %v", err)
			}

			res := det.DetectBatch(series)
			if !res.IsAnomaly {
				t.Fatal("DetectBatch() IsAnomaly = false, want the spike flagged")
			}
			found := false
			for _, idx := range res.TriggeredIndices {
				if idx == spike {
					found = true
				}
			}
			if !found {
				t.Errorf("TriggeredIndices = %v, want to include spike index %d", res.TriggeredIndices, spike)
			}
			if len(res.AllScores) != len(series) {
				t.Errorf("len(AllScores) = %d, want %d", len(res.AllScores), len(series))
			}
		})
	}
}

func TestModelsInsufficientData(t *testing.T) {
	short := []float64{1, 2, 3, 4, 5}
	det, err := detect.Default().Detector(detect.Config{Type: detect.KindKNN})
	if err != nil {
		t.Fatalf("Detector() error = %v", err)
	}

	res := det.Detect(short)
	if res.IsAnomaly {
		t.Error("Detect() on a short series must not flag")
	}
	if _, ok := res.Metadata["reason"]; !ok {
		t.Error("Detect() on a short series must carry a reason in metadata")
	}
}

func TestIsolationForestDeterministic(t *testing.T) {
	series, _ := spikedSeries()
	cfg := detect.Config{Type: detect.KindIsolationForest, Seed: 42}

	a, _ := detect.Default().Detector(cfg)
	b, _ := detect.Default().Detector(cfg)

	ra := a.DetectBatch(series)
	rb := b.DetectBatch(series)
	if len(ra.TriggeredIndices) != len(rb.TriggeredIndices) {
		t.Fatalf("runs differ: %v vs %v", ra.TriggeredIndices, rb.TriggeredIndices)
	}
	for i := range ra.TriggeredIndices {
		if ra.TriggeredIndices[i] != rb.TriggeredIndices[i] {
			t.Fatalf("runs differ at %d: %v vs %v", i, ra.TriggeredIndices, rb.TriggeredIndices)
		}
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.5, 3},
		{0.9, 4.6},
		{1, 5},
	}
	for _, tt := range tests {
		if got := quantile(values, tt.q); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("quantile(%v) = %v, want %v", tt.q, got, tt.want)
		}
	}
}
