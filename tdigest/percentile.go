// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"math"
)

// singletonHalfWidth is the distance within which a rank snaps to a centroid of
// weight 1.
const singletonHalfWidth = 0.5

// Percentile returns an approximation of the value at rank p*Count(), for p in
// [0, 1]. It returns NaN if the digest is empty, released or failed, or if p is
// out of range. Pending insertions are compacted first.
func (t *TDigest) Percentile(p float64) float64 {
	if t.usable() != nil || t.pointCount == 0 || math.IsNaN(p) || p < 0 || p > 1 {
		return math.NaN()
	}
	if t.uncompactedCount > 0 {
		if err := t.Compact(); err != nil {
			return math.NaN()
		}
	}

	count := float64(t.pointCount)
	index := p * count

	if index < 1 {
		return t.min
	} else if index > count-1 {
		return t.max
	}

	last := int(t.compactedCount) - 1
	first, final := t.centroids[0], t.centroids[last]

	// The first and last centroids are spread towards the exact extrema.
	if firstHalf := float64(first.Weight) / 2; first.Weight > 1 && index < firstHalf {
		return t.min + (index-1)/(firstHalf-1)*(first.Mean-t.min)
	}
	finalHalf := float64(final.Weight) / 2
	if final.Weight > 1 && count-index <= finalHalf {
		if finalHalf <= 1 {
			return t.max
		}
		return t.max - (count-index-1)/(finalHalf-1)*(t.max-final.Mean)
	}

	cumulative := float64(first.Weight) / 2
	for i := 0; i < last; i++ {
		c1, c2 := t.centroids[i], t.centroids[i+1]
		delta := float64(c1.Weight+c2.Weight) / 2
		if cumulative+delta > index {
			return interpolate(cumulative, delta, index, c1, c2)
		}
		cumulative += delta
	}

	return weightedAverage(final.Mean, count-index, t.max, index-(count-finalHalf))
}

// Percentiles returns the percentile of each element of ps, with the same
// semantics as Percentile.
func (t *TDigest) Percentiles(ps []float64) []float64 {
	values := make([]float64, len(ps))
	for i, p := range ps {
		values[i] = t.Percentile(p)
	}
	return values
}

// interpolate locates index between the midpoints of two neighboring centroids.
// The bracket starts at cumulative, the midpoint of c1, and spans delta.
func interpolate(cumulative, delta, index float64, c1, c2 Centroid) float64 {
	leftUnit := 0.0
	if c1.Weight == 1 {
		if index-cumulative < singletonHalfWidth {
			return c1.Mean
		}
		leftUnit = singletonHalfWidth
	}
	rightUnit := 0.0
	if c2.Weight == 1 {
		if cumulative+delta-index <= singletonHalfWidth {
			return c2.Mean
		}
		rightUnit = singletonHalfWidth
	}

	z1 := index - cumulative - leftUnit
	z2 := cumulative + delta - index - rightUnit
	return weightedAverage(c1.Mean, z2, c2.Mean, z1)
}
