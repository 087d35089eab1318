package detect

import (
	"math"
	"testing"
)

func TestMAD_ObviousOutlier(t *testing.T) {
	det, err := NewMAD(Config{Type: KindMAD, Window: 10, Threshold: 3.0})
	if err != nil {
		t.Fatalf("NewMAD() error = %v", err)
	}

	data := []float64{10, 11, 10, 9, 10, 11, 10, 9, 10, 11, 100}
	res := det.Detect(data)

	if !res.IsAnomaly {
		t.Fatal("Detect() IsAnomaly = false for an obvious outlier")
	}
	if res.Score == nil || *res.Score <= 3.0 {
		t.Errorf("Detect() Score = %v, want > 3.0", res.Score)
	}
	if med, ok := res.Metadata["median"].(float64); !ok || math.Abs(med-10) > 1e-9 {
		t.Errorf("Metadata median = %v, want 10", res.Metadata["median"])
	}
}

func TestMAD_ZeroMADNotAnomalous(t *testing.T) {
	det, _ := NewMAD(Config{Type: KindMAD, Window: 5, Threshold: 3.0})

	// Constant window: MAD is zero, which never flags regardless of the
	// checked value.
	res := det.Detect([]float64{7, 7, 7, 7, 7, 90})
	if res.IsAnomaly {
		t.Error("Detect() IsAnomaly = true with zero MAD, want false")
	}
	if res.Score == nil || *res.Score != 0 {
		t.Errorf("Detect() Score = %v, want 0", res.Score)
	}
}

func TestMAD_InsufficientData(t *testing.T) {
	det, _ := NewMAD(Config{Type: KindMAD, Window: 10})
	res := det.Detect([]float64{1, 2})
	if res.IsAnomaly || res.Score != nil {
		t.Errorf("Detect() = %+v, want non-anomalous without score", res)
	}
}

func TestMAD_MonotonicThreshold(t *testing.T) {
	data := []float64{10, 11, 9, 10, 25, 11, 10, 9, 40, 10, 11, 10, 9, 55, 10}

	lowDet, _ := NewMAD(Config{Type: KindMAD, Window: 5, Threshold: 2.0})
	highDet, _ := NewMAD(Config{Type: KindMAD, Window: 5, Threshold: 4.0})

	low := lowDet.DetectBatch(data).TriggeredIndices
	high := highDet.DetectBatch(data).TriggeredIndices

	lowSet := make(map[int]bool, len(low))
	for _, idx := range low {
		lowSet[idx] = true
	}
	for _, idx := range high {
		if !lowSet[idx] {
			t.Errorf("index %d triggered at threshold 4.0 but not at 2.0", idx)
		}
	}
}

func TestMAD_BatchPadsEarlyScores(t *testing.T) {
	det, _ := NewMAD(Config{Type: KindMAD, Window: 5, Threshold: 3.0})
	data := []float64{1, 2, 1, 2, 1, 2, 1, 50}
	res := det.DetectBatch(data)

	for i := 0; i < 5; i++ {
		if res.AllScores[i] != nil {
			t.Errorf("AllScores[%d] = %v, want nil", i, *res.AllScores[i])
		}
	}
	if got := res.TriggeredIndices; len(got) != 1 || got[0] != 7 {
		t.Errorf("TriggeredIndices = %v, want [7]", got)
	}
}
