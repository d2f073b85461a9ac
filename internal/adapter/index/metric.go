package index

import (
	"math"

	"webrag/internal/domain"
)

// Metric scores the similarity of two equal-length vectors. Scores are
// always higher-is-better so the index ordering contract is independent of
// the metric in use.
type Metric interface {
	Name() string
	Score(a, b []float32) float64
}

// MetricByName resolves a configured metric name.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "cosine":
		return Cosine{}, nil
	case "neg_l2":
		return NegSquaredEuclidean{}, nil
	default:
		return nil, &domain.ConfigError{Field: "index.metric", Reason: "unknown metric " + name}
	}
}

// Cosine similarity, range [-1, 1]. The default metric.
type Cosine struct{}

func (Cosine) Name() string { return "cosine" }

func (Cosine) Score(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NegSquaredEuclidean is negative squared L2 distance: identical vectors
// score 0, everything else below.
type NegSquaredEuclidean struct{}

func (NegSquaredEuclidean) Name() string { return "neg_l2" }

func (NegSquaredEuclidean) Score(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(-1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return -sum
}
