package detect

// K-means detector tuning constants.
const (
	kmeansMaxIterations = 100
	kmeansMinPoints     = 10
	defaultNClusters    = 3
)

// KMeansDetector clusters derived feature vectors and flags points assigned
// to the anomaly cluster: either the smallest cluster or the one whose
// centroid sits furthest from the centroid mean.
//
// Centroid initialization is deterministic: centroids are spaced evenly
// across the ordered feature vectors rather than sampled randomly. This
// keeps detection output stable across runs at the cost of skipping random
// restarts.
type KMeansDetector struct {
	nClusters     int
	features      []Feature
	anomalyMethod string
}

// NewKMeans builds a k-means detector from cfg. NClusters defaults to 3 and
// the anomaly method to "smallest". Unknown feature names are rejected with
// a *ConfigError.
func NewKMeans(cfg Config) (Detector, error) {
	d := &KMeansDetector{
		nClusters:     cfg.NClusters,
		features:      cfg.Features,
		anomalyMethod: cfg.AnomalyMethod,
	}
	if d.nClusters <= 0 {
		d.nClusters = defaultNClusters
	}
	if d.anomalyMethod == "" {
		d.anomalyMethod = AnomalySmallest
	}
	if d.anomalyMethod != AnomalySmallest && d.anomalyMethod != AnomalyFurthest {
		return nil, configErrorf("kmeans: unknown anomaly method %q (want %q or %q)",
			d.anomalyMethod, AnomalySmallest, AnomalyFurthest)
	}
	for _, f := range d.features {
		if _, ok := featureLookback[f]; !ok {
			return nil, configErrorf("kmeans: unknown feature %q", f)
		}
	}
	return d, nil
}

// featureLookback is the number of prior points each feature needs.
var featureLookback = map[Feature]int{
	FeatureDiff1:     1,
	FeatureLag1:      1,
	FeatureLag2:      2,
	FeatureLag3:      3,
	FeatureLag4:      4,
	FeatureLag5:      5,
	FeatureSmoothed3: 2,
	FeatureSmoothed5: 4,
	FeatureSmoothed7: 6,
}

// featureValue computes one feature scalar for series[i]. The caller
// guarantees i >= featureLookback[f].
func featureValue(series []float64, i int, f Feature) float64 {
	switch f {
	case FeatureDiff1:
		return series[i] - series[i-1]
	case FeatureLag1, FeatureLag2, FeatureLag3, FeatureLag4, FeatureLag5:
		return series[i-featureLookback[f]]
	case FeatureSmoothed3, FeatureSmoothed5, FeatureSmoothed7:
		w := featureLookback[f] + 1
		return mean(series[i-w+1 : i+1])
	}
	return series[i]
}

// lookback returns the history the full feature set needs.
func (d *KMeansDetector) lookback() int {
	max := 0
	for _, f := range d.features {
		if lb := featureLookback[f]; lb > max {
			max = lb
		}
	}
	return max
}

// vectors builds one feature vector per point with sufficient lookback.
// Element 0 is the raw value; configured features follow in order. Points
// before the lookback horizon produce no vector.
func (d *KMeansDetector) vectors(series []float64) [][]float64 {
	lb := d.lookback()
	if len(series) <= lb {
		return nil
	}

	out := make([][]float64, 0, len(series)-lb)
	for i := lb; i < len(series); i++ {
		vec := make([]float64, 0, len(d.features)+1)
		vec = append(vec, series[i])
		for _, f := range d.features {
			vec = append(vec, featureValue(series, i, f))
		}
		out = append(out, vec)
	}
	return out
}

// cluster runs k-means over the vectors: evenly spaced initialization, then
// assignment/update iterations until labels stabilize or the iteration cap.
// Returns the final centroids and per-vector labels.
func (d *KMeansDetector) cluster(vectors [][]float64) (centroids [][]float64, labels []int) {
	k := d.nClusters
	dims := len(vectors[0])

	step := len(vectors) / k
	centroids = make([][]float64, k)
	for j := 0; j < k; j++ {
		centroids[j] = make([]float64, dims)
		copy(centroids[j], vectors[j*step])
	}

	labels = make([]int, len(vectors))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best, bestDist := 0, euclidean(vec, centroids[0])
			for j := 1; j < k; j++ {
				if dist := euclidean(vec, centroids[j]); dist < bestDist {
					best, bestDist = j, dist
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for j := range sums {
			sums[j] = make([]float64, dims)
		}
		for i, vec := range vectors {
			counts[labels[i]]++
			for dim, v := range vec {
				sums[labels[i]][dim] += v
			}
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				continue // empty cluster keeps its previous centroid
			}
			for dim := range sums[j] {
				centroids[j][dim] = sums[j][dim] / float64(counts[j])
			}
		}
	}
	return centroids, labels
}

// anomalyCluster identifies which cluster represents anomalies.
func (d *KMeansDetector) anomalyCluster(centroids [][]float64, labels []int) int {
	switch d.anomalyMethod {
	case AnomalyFurthest:
		if len(centroids) < 2 {
			return 0
		}
		center := make([]float64, len(centroids[0]))
		for _, c := range centroids {
			for dim, v := range c {
				center[dim] += v
			}
		}
		for dim := range center {
			center[dim] /= float64(len(centroids))
		}

		furthest, maxDist := 0, euclidean(centroids[0], center)
		for j := 1; j < len(centroids); j++ {
			if dist := euclidean(centroids[j], center); dist > maxDist {
				furthest, maxDist = j, dist
			}
		}
		return furthest

	default: // smallest
		counts := make([]int, len(centroids))
		for _, l := range labels {
			counts[l]++
		}
		smallest := 0
		for j := 1; j < len(counts); j++ {
			if counts[j] < counts[smallest] {
				smallest = j
			}
		}
		return smallest
	}
}

type kmeansRun struct {
	vectors   [][]float64
	centroids [][]float64
	labels    []int
	anomaly   int
	lookback  int
}

// run builds vectors and clusters them, or returns an insufficient-data
// result. The fixed minimum of kmeansMinPoints applies before any lookback
// or cluster-count check.
func (d *KMeansDetector) run(series []float64) (*kmeansRun, DetectionResult) {
	if len(series) < kmeansMinPoints {
		return nil, insufficientData(len(series), kmeansMinPoints)
	}

	vectors := d.vectors(series)
	if len(vectors) < d.nClusters {
		return nil, DetectionResult{
			Metadata: map[string]any{
				"reason": "insufficient feature vectors for requested cluster count",
			},
		}
	}

	centroids, labels := d.cluster(vectors)
	return &kmeansRun{
		vectors:   vectors,
		centroids: centroids,
		labels:    labels,
		anomaly:   d.anomalyCluster(centroids, labels),
		lookback:  d.lookback(),
	}, DetectionResult{}
}

func (d *KMeansDetector) metadata(r *kmeansRun) map[string]any {
	counts := make([]int, len(r.centroids))
	for _, l := range r.labels {
		counts[l]++
	}
	return map[string]any{
		"n_clusters":      len(r.centroids),
		"cluster_sizes":   counts,
		"anomaly_cluster": r.anomaly,
		"anomaly_method":  d.anomalyMethod,
	}
}

// Detect checks whether the most recent point falls in the anomaly cluster.
// Its score is the distance to its assigned centroid.
func (d *KMeansDetector) Detect(series []float64) DetectionResult {
	r, short := d.run(series)
	if r == nil {
		return short
	}

	last := len(r.labels) - 1
	vec := r.vectors[last]
	label := r.labels[last]

	res := DetectionResult{
		Score:    ptr(euclidean(vec, r.centroids[label])),
		Metadata: d.metadata(r),
	}
	if label == r.anomaly {
		res.IsAnomaly = true
		res.TriggeredIndices = []int{len(series) - 1}
	}
	return res
}

// DetectBatch flags every point assigned to the anomaly cluster. Points
// before the lookback horizon have no score.
func (d *KMeansDetector) DetectBatch(series []float64) DetectionResult {
	r, short := d.run(series)
	if r == nil {
		return short
	}

	res := DetectionResult{
		AllScores: make([]*float64, len(series)),
		Metadata:  d.metadata(r),
	}
	for i, label := range r.labels {
		idx := i + r.lookback
		res.AllScores[idx] = ptr(euclidean(r.vectors[i], r.centroids[label]))
		if label == r.anomaly {
			res.TriggeredIndices = append(res.TriggeredIndices, idx)
		}
	}
	res.IsAnomaly = len(res.TriggeredIndices) > 0
	res.Score = res.AllScores[len(series)-1]
	return res
}
