package domain

// Metric is the native scoring of a vector index backend.
type Metric string

// Supported metrics.
const (
	// MetricInnerProduct scores by dot product. On unit vectors this is cosine similarity.
	MetricInnerProduct Metric = "inner_product"

	// MetricL2 scores by squared Euclidean distance. Lower is closer.
	MetricL2 Metric = "l2"

	// MetricCosine scores by cosine similarity computed by the backend.
	MetricCosine Metric = "cosine"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricInnerProduct, MetricL2, MetricCosine:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// HigherIsCloser reports whether larger raw scores mean nearer neighbours.
func (m Metric) HigherIsCloser() bool {
	return m != MetricL2
}

// Similarity converts a raw backend score to the public [0,1] similarity.
//
// All indexed and query vectors are unit length, so:
//   - inner product and cosine scores are used as they are;
//   - a squared Euclidean distance d maps to 1 - d/2, which equals the cosine.
//
// The result is clamped to [0,1] so MinSimilarity means the same thing
// on every backend.
func (m Metric) Similarity(raw float64) float64 {
	s := raw
	if m == MetricL2 {
		s = 1 - raw/2
	}
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
