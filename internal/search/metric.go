// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package search

import (
	"math"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// Metric selects how vector closeness is turned into a similarity score.
type Metric string

const (
	// MetricL2 scores 1/(1+euclidean distance). Identical vectors score 1.
	MetricL2 Metric = "l2"
	// MetricCosine maps cosine similarity from [-1,1] into [0,1].
	MetricCosine Metric = "cosine"
)

// ParseMetric validates a configured metric name. Empty selects MetricL2.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case "", MetricL2:
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", udberr.New(udberr.CodeConfigValidateInvalidValue, "unknown similarity metric",
			udberr.Field("metric", name))
	}
}

func (m Metric) similarity(a, b []float32) float64 {
	if m == MetricCosine {
		return cosineSimilarity(a, b)
	}
	return 1 / (1 + euclidean(a, b))
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0.5
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	cos = math.Max(-1, math.Min(1, cos))
	return (1 + cos) / 2
}
