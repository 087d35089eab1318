package detect

import (
	"math"
	"reflect"
	"testing"
)

func TestZScore_ObviousOutlier(t *testing.T) {
	det, err := NewZScore(Config{Type: KindZScore, Window: 10, Threshold: 3.0})
	if err != nil {
		t.Fatalf("NewZScore() error = %v", err)
	}

	data := []float64{10, 11, 10, 9, 10, 11, 10, 9, 10, 11, 10, 100}
	res := det.Detect(data)

	if !res.IsAnomaly {
		t.Fatal("Detect() IsAnomaly = false for an obvious outlier")
	}
	if res.Score == nil || *res.Score <= 3.0 {
		t.Errorf("Detect() Score = %v, want > 3.0", res.Score)
	}
	if got := res.TriggeredIndices; len(got) != 1 || got[0] != 11 {
		t.Errorf("TriggeredIndices = %v, want [11]", got)
	}
}

func TestZScore_InsufficientData(t *testing.T) {
	det, _ := NewZScore(Config{Type: KindZScore, Window: 10})
	res := det.Detect([]float64{1, 2, 3})

	if res.IsAnomaly {
		t.Error("Detect() IsAnomaly = true on a short series")
	}
	if res.Score != nil {
		t.Errorf("Detect() Score = %v, want nil on a short series", res.Score)
	}
	if _, ok := res.Metadata["reason"]; !ok {
		t.Error("Detect() Metadata missing shortfall reason")
	}
}

func TestZScore_ZeroVariance(t *testing.T) {
	det, _ := NewZScore(Config{Type: KindZScore, Window: 5, Threshold: 3.0})

	t.Run("deviation from constant baseline", func(t *testing.T) {
		res := det.Detect([]float64{5, 5, 5, 5, 5, 6})
		if !res.IsAnomaly {
			t.Error("Detect() IsAnomaly = false, want true")
		}
		if res.Score == nil || !math.IsInf(*res.Score, 1) {
			t.Errorf("Detect() Score = %v, want +Inf", res.Score)
		}
	})

	t.Run("constant value on constant baseline", func(t *testing.T) {
		res := det.Detect([]float64{5, 5, 5, 5, 5, 5})
		if res.IsAnomaly {
			t.Error("Detect() IsAnomaly = true, want false")
		}
		if res.Score == nil || *res.Score != 0 {
			t.Errorf("Detect() Score = %v, want 0", res.Score)
		}
	})
}

func TestZScore_BatchPadsEarlyScores(t *testing.T) {
	det, _ := NewZScore(Config{Type: KindZScore, Window: 5, Threshold: 3.0})
	data := []float64{1, 2, 1, 2, 1, 2, 1, 2, 100}
	res := det.DetectBatch(data)

	if len(res.AllScores) != len(data) {
		t.Fatalf("len(AllScores) = %d, want %d", len(res.AllScores), len(data))
	}
	for i := 0; i < 5; i++ {
		if res.AllScores[i] != nil {
			t.Errorf("AllScores[%d] = %v, want nil before the window fills", i, *res.AllScores[i])
		}
	}
	for i := 5; i < len(data); i++ {
		if res.AllScores[i] == nil {
			t.Errorf("AllScores[%d] = nil, want a score", i)
		}
	}
	if got := res.TriggeredIndices; len(got) != 1 || got[0] != 8 {
		t.Errorf("TriggeredIndices = %v, want [8]", got)
	}
}

func TestZScore_MonotonicThreshold(t *testing.T) {
	data := []float64{10, 12, 9, 11, 30, 10, 11, 9, 45, 10, 12, 11, 9, 60, 10}

	lowDet, _ := NewZScore(Config{Type: KindZScore, Window: 5, Threshold: 1.5})
	highDet, _ := NewZScore(Config{Type: KindZScore, Window: 5, Threshold: 3.0})

	low := lowDet.DetectBatch(data).TriggeredIndices
	high := highDet.DetectBatch(data).TriggeredIndices

	lowSet := make(map[int]bool, len(low))
	for _, idx := range low {
		lowSet[idx] = true
	}
	for _, idx := range high {
		if !lowSet[idx] {
			t.Errorf("index %d triggered at threshold 3.0 but not at 1.5", idx)
		}
	}
}

func TestZScore_BatchIdempotent(t *testing.T) {
	det, _ := NewZScore(Config{Type: KindZScore, Window: 5, Threshold: 2.0})
	data := []float64{1, 2, 3, 2, 1, 2, 3, 50, 2, 1}

	first := det.DetectBatch(data)
	second := det.DetectBatch(data)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("DetectBatch() results differ across calls:\n%+v\n%+v", first, second)
	}
}
