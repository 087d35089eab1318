package detect

import (
	"math"
	"reflect"
	"testing"
)

func almostEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestSmooth(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		window int
		want   []float64
	}{
		{
			name:   "window one is a no-op",
			series: []float64{1, 2, 3},
			window: 1,
			want:   []float64{1, 2, 3},
		},
		{
			name:   "window three centered average",
			series: []float64{1, 2, 3, 4, 5},
			window: 3,
			// Edges padded with the first/last values.
			want: []float64{4.0 / 3, 2, 3, 4, 14.0 / 3},
		},
		{
			name:   "constant series unchanged",
			series: []float64{5, 5, 5, 5},
			window: 3,
			want:   []float64{5, 5, 5, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Smooth(tt.series, tt.window)
			if !almostEqual(got, tt.want) {
				t.Errorf("Smooth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDifference(t *testing.T) {
	got := Difference([]float64{3, 5, 4, 4})
	want := []float64{0, 2, -1, 0}
	if !almostEqual(got, want) {
		t.Errorf("Difference() = %v, want %v", got, want)
	}

	if out := Difference(nil); len(out) != 0 {
		t.Errorf("Difference(nil) = %v, want empty", out)
	}
}

func TestLagMatrix(t *testing.T) {
	got := LagMatrix([]float64{1, 2, 3, 4}, 2)
	want := [][]float64{
		{1, 1, 1}, // lags back-filled with the first value
		{2, 1, 1},
		{3, 2, 1},
		{4, 3, 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LagMatrix() = %v, want %v", got, want)
	}
}

func TestLagMatrix_ClampsLags(t *testing.T) {
	rows := LagMatrix([]float64{1, 2}, 99)
	if len(rows[0]) != maxLags+1 {
		t.Errorf("row width = %d, want %d", len(rows[0]), maxLags+1)
	}

	rows = LagMatrix([]float64{1, 2}, -3)
	if len(rows[0]) != 1 {
		t.Errorf("row width = %d, want 1", len(rows[0]))
	}
}

func TestPreprocess_OrderSmoothingThenDiffs(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}
	got := Preprocess(series, PreprocessConfig{Smoothing: 3, Diffs: true})
	want := Difference(Smooth(series, 3))
	if !almostEqual(got, want) {
		t.Errorf("Preprocess() = %v, want smoothing before differencing %v", got, want)
	}
}

func TestPreprocess_ZeroConfigIsNoOp(t *testing.T) {
	series := []float64{9, 8, 7}
	got := Preprocess(series, PreprocessConfig{})
	if !almostEqual(got, series) {
		t.Errorf("Preprocess() = %v, want unchanged input", got)
	}
}
