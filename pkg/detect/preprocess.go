package detect

// PreprocessConfig selects the transformations applied to a raw series
// before detection. Each step is independently optional; zero values are
// no-ops. The order is fixed: smoothing, then differencing, then lag
// expansion.
type PreprocessConfig struct {
	// Smoothing applies a centered moving average of this window size
	// when > 0.
	Smoothing int `json:"smoothing,omitempty"`

	// Diffs replaces each value with its first difference. The first
	// element differences against itself, so it becomes 0.
	Diffs bool `json:"diffs,omitempty"`

	// Lags adds lagged copies of the series as extra feature columns
	// (see PreprocessMatrix). Clamped to [0, 10].
	Lags int `json:"lags,omitempty"`
}

const maxLags = 10

// Preprocess applies smoothing and differencing and returns a series of the
// same length. Lag expansion is ignored here; use PreprocessMatrix when lag
// features are wanted.
func Preprocess(series []float64, cfg PreprocessConfig) []float64 {
	out := series
	if cfg.Smoothing > 0 {
		out = Smooth(out, cfg.Smoothing)
	}
	if cfg.Diffs {
		out = Difference(out)
	}
	return out
}

// PreprocessMatrix applies the full pipeline and returns one row per input
// point. Column 0 is the (possibly smoothed and differenced) current value;
// column k is the value lagged by k steps. With Lags == 0 the rows are
// single-element.
func PreprocessMatrix(series []float64, cfg PreprocessConfig) [][]float64 {
	return LagMatrix(Preprocess(series, cfg), cfg.Lags)
}

// Smooth returns a centered moving average of the given window size. The
// series is edge-padded with its first and last values so the output length
// matches the input. Windows <= 1 return the input unchanged.
func Smooth(series []float64, window int) []float64 {
	if window <= 1 || len(series) == 0 {
		return series
	}

	left := window / 2
	right := window - 1 - left

	padded := make([]float64, 0, len(series)+left+right)
	for i := 0; i < left; i++ {
		padded = append(padded, series[0])
	}
	padded = append(padded, series...)
	for i := 0; i < right; i++ {
		padded = append(padded, series[len(series)-1])
	}

	out := make([]float64, len(series))
	sum := 0.0
	for i := 0; i < window; i++ {
		sum += padded[i]
	}
	out[0] = sum / float64(window)
	for i := 1; i < len(series); i++ {
		sum += padded[i+window-1] - padded[i-1]
		out[i] = sum / float64(window)
	}
	return out
}

// Difference replaces each value with series[i] - series[i-1]. The first
// value differences against itself (a prepended copy), so out[0] == 0 and
// the length is preserved.
func Difference(series []float64) []float64 {
	if len(series) == 0 {
		return series
	}
	out := make([]float64, len(series))
	out[0] = 0
	for i := 1; i < len(series); i++ {
		out[i] = series[i] - series[i-1]
	}
	return out
}

// LagMatrix expands a series into rows of [current, lag1, ..., lagN]. Lags
// is clamped to [0, 10]. The first k rows of lag column k are back-filled
// with the series' first value so every row is fully populated.
func LagMatrix(series []float64, lags int) [][]float64 {
	if lags < 0 {
		lags = 0
	}
	if lags > maxLags {
		lags = maxLags
	}

	out := make([][]float64, len(series))
	for i := range series {
		row := make([]float64, lags+1)
		row[0] = series[i]
		for k := 1; k <= lags; k++ {
			if i-k >= 0 {
				row[k] = series[i-k]
			} else {
				row[k] = series[0]
			}
		}
		out[i] = row
	}
	return out
}
