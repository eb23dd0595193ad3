package recommender

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metric selects the similarity function used for both user and item neighborhoods.
type Metric string

const (
	MetricCosine  Metric = "cosine"
	MetricPearson Metric = "pearson"
)

// ParseMetric accepts the configuration spelling of a metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricCosine:
		return MetricCosine, nil
	case MetricPearson:
		return MetricPearson, nil
	default:
		return "", fmt.Errorf("unknown similarity metric: %q", s)
	}
}

// Vector is a sparse numeric vector. Absent keys are implicit zeros.
type Vector[K comparable] map[K]float64

// Similarity dispatches to Cosine or Pearson. Keys are visited in the order
// defined by compare so that repeated runs sum in the same order.
func Similarity[K comparable](metric Metric, a, b Vector[K], compare func(K, K) int) float64 {
	switch metric {
	case MetricPearson:
		return Pearson(a, b, compare)
	default:
		return Cosine(a, b, compare)
	}
}

// Cosine divides the dot product over shared keys by the product of each
// vector's full norm, so vectors that barely overlap score low even when they
// agree on the overlap.
func Cosine[K comparable](a, b Vector[K], compare func(K, K) int) float64 {
	sharedA, sharedB := aligned(a, b, compare)
	if len(sharedA) == 0 {
		return 0
	}

	normA := floats.Norm(values(a, compare), 2)
	normB := floats.Norm(values(b, compare), 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return clamp(floats.Dot(sharedA, sharedB) / (normA * normB))
}

// Pearson mean-centers both vectors over their shared keys before taking the
// cosine of the centered values. Fewer than two shared keys, or a constant
// vector on the overlap, yields 0.
func Pearson[K comparable](a, b Vector[K], compare func(K, K) int) float64 {
	sharedA, sharedB := aligned(a, b, compare)
	if len(sharedA) == 0 {
		return 0
	}

	floats.AddConst(-stat.Mean(sharedA, nil), sharedA)
	floats.AddConst(-stat.Mean(sharedB, nil), sharedB)

	normA := floats.Norm(sharedA, 2)
	normB := floats.Norm(sharedB, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	return clamp(floats.Dot(sharedA, sharedB) / (normA * normB))
}

// CompareIDs orders UUID keys bytewise.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

func sortedKeys[K comparable](v Vector[K], compare func(K, K) int) []K {
	keys := make([]K, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compare)
	return keys
}

func values[K comparable](v Vector[K], compare func(K, K) int) []float64 {
	out := make([]float64, 0, len(v))
	for _, k := range sortedKeys(v, compare) {
		out = append(out, v[k])
	}
	return out
}

// aligned returns fresh slices holding a's and b's values for the keys both contain.
func aligned[K comparable](a, b Vector[K], compare func(K, K) int) ([]float64, []float64) {
	if len(b) < len(a) {
		sb, sa := aligned(b, a, compare)
		return sa, sb
	}

	var xa, xb []float64
	for _, k := range sortedKeys(a, compare) {
		if vb, ok := b[k]; ok {
			xa = append(xa, a[k])
			xb = append(xb, vb)
		}
	}
	return xa, xb
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
