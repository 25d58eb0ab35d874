// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"math"
	"sort"
	"testing"

	"github.com/DataDog/tdigest-go/dataset"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileUndefined(t *testing.T) {
	empty := NewDefault()
	for _, p := range []float64{0, 0.5, 1} {
		assert.True(t, math.IsNaN(empty.Percentile(p)), "percentile %g", p)
	}

	td := NewDefault()
	require.NoError(t, td.Add(1))
	for _, p := range []float64{-0.1, 1.1, math.Inf(-1), math.Inf(1), math.NaN()} {
		assert.True(t, math.IsNaN(td.Percentile(p)), "percentile %g", p)
	}
}

func TestPercentileBounds(t *testing.T) {
	for _, n := range []int{1, 2, 10, 1000, 10000} {
		td := NewDefault()
		gen := dataset.NewExponential(1)
		for i := 0; i < n; i++ {
			require.NoError(t, td.Add(gen.Generate()))
		}
		assert.Equal(t, td.Min(), td.Percentile(0))
		assert.Equal(t, td.Max(), td.Percentile(1))
	}
}

func TestPercentileCompactsPendingValues(t *testing.T) {
	td := NewDefault()
	for i := 0; i < 10; i++ {
		require.NoError(t, td.Add(float64(i)))
	}
	assert.Equal(t, uint32(10), td.uncompactedCount)

	td.Percentile(0.5)
	assert.Zero(t, td.uncompactedCount)
	assert.Equal(t, uint32(1), td.compactionCounter)
}

func TestPercentileMonotonic(t *testing.T) {
	f := fuzz.New().NilChance(0)
	gen := dataset.NewLognormal(0, 1)
	td, err := New(3)
	require.NoError(t, err)
	for i := 0; i < 20000; i++ {
		require.NoError(t, td.AddWithCount(gen.Generate(), uint64(i%4+1)))
	}

	// gofuzz fills floats in [0, 1).
	ps := make([]float64, 1000)
	for i := range ps {
		f.Fuzz(&ps[i])
	}
	ps = append(ps, 0, 1)
	sort.Float64s(ps)
	assertMonotonic(t, td, ps)
}

func TestPercentileExtremeCentroids(t *testing.T) {
	// Centroids are set by hand so that the extreme interpolations are
	// reached.
	td := NewDefault()
	td.centroids[0] = Centroid{Mean: 2, Weight: 10}
	td.centroids[1] = Centroid{Mean: 10, Weight: 10}
	td.centroids[2] = Centroid{Mean: 18, Weight: 10}
	td.compactedCount = 3
	td.pointCount = 30
	td.min, td.max = 0, 20

	assert.Equal(t, 0.0, td.Percentile(0))
	// index 1 is the start of the first half of the first centroid.
	assert.InDelta(t, 0.0, td.Percentile(1.0/30), 1e-12)
	assert.InDelta(t, 1.0, td.Percentile(3.0/30), 1e-12)
	// Midpoints of the centroids.
	assert.InDelta(t, 2.0, td.Percentile(5.0/30), 1e-12)
	assert.InDelta(t, 10.0, td.Percentile(15.0/30), 1e-12)
	assert.InDelta(t, 6.0, td.Percentile(10.0/30), 1e-12)
	assert.InDelta(t, 18.0, td.Percentile(25.0/30), 1e-12)
	// Second half of the last centroid.
	assert.InDelta(t, 19.0, td.Percentile(27.0/30), 1e-12)
	assert.Equal(t, 20.0, td.Percentile(1))
}

func TestPercentileLastCentroidOfWeightTwo(t *testing.T) {
	td := NewDefault()
	td.centroids[0] = Centroid{Mean: 1, Weight: 1}
	td.centroids[1] = Centroid{Mean: 5, Weight: 3}
	td.centroids[2] = Centroid{Mean: 9.5, Weight: 2}
	td.compactedCount = 3
	td.pointCount = 6
	td.min, td.max = 1, 10

	// N - index = 1 falls within the half of the last centroid, which has no
	// room left for an interpolation.
	assert.Equal(t, 10.0, td.Percentile(5.0/6))
}

func TestPercentiles(t *testing.T) {
	td := NewDefault()
	for i := 1; i <= 100; i++ {
		require.NoError(t, td.Add(float64(i)))
	}
	ps := []float64{0, 0.5, 1, 2}
	values := td.Percentiles(ps)
	require.Len(t, values, len(ps))
	for i, p := range ps[:3] {
		assert.Equal(t, td.Percentile(p), values[i])
	}
	assert.True(t, math.IsNaN(values[3]))
}

func TestInterpolate(t *testing.T) {
	heavy1 := Centroid{Mean: 0, Weight: 4}
	heavy2 := Centroid{Mean: 8, Weight: 4}
	single1 := Centroid{Mean: 0, Weight: 1}
	single2 := Centroid{Mean: 8, Weight: 1}

	// The bracket spans [2, 6) between two centroids of weight 4.
	assert.Equal(t, 0.0, interpolate(2, 4, 2, heavy1, heavy2))
	assert.Equal(t, 4.0, interpolate(2, 4, 4, heavy1, heavy2))
	assert.Equal(t, 6.0, interpolate(2, 4, 5, heavy1, heavy2))

	// Singletons snap to their own value within half a unit.
	assert.Equal(t, 0.0, interpolate(0.5, 1, 0.9, single1, single2))
	assert.Equal(t, 8.0, interpolate(0.5, 1, 1, single1, single2))

	// Otherwise they shrink the bracket by half a unit.
	assert.Equal(t, 0.0, interpolate(0.5, 2.5, 0.75, single1, heavy2))
	assert.Equal(t, 0.0, interpolate(0.5, 2.5, 1, single1, heavy2))
	assert.Equal(t, 4.0, interpolate(0.5, 2.5, 2, single1, heavy2))
	assert.Equal(t, 4.0, interpolate(2, 2.5, 3, heavy1, single2))
	assert.Equal(t, 8.0, interpolate(2, 2.5, 4, heavy1, single2))
}
