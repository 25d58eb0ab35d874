// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Compact merges the active region into a sorted, size-bounded prefix. It is a
// no-op if there is no uncompacted centroid.
//
// Passes alternate between ascending and descending order so that repeated
// merges do not systematically favor one end of the data.
func (t *TDigest) Compact() error {
	if err := t.usable(); err != nil {
		return err
	}
	if t.uncompactedCount == 0 {
		return nil
	}

	descending := t.compactionCounter%2 == 1
	t.compactionCounter++

	length := t.activeCount()
	active := t.centroids[:length]
	less := byMean(descending)
	sort.Slice(active, func(i, j int) bool { return less(active[i], active[j]) })

	// Two pointers run forward through the sorted centroids: output is the
	// centroid being built, i the candidate to absorb or flush.
	totalWeight := float64(t.pointCount)
	compression := t.config.Compression()
	z := scale(totalWeight, compression)

	cumulative := 0.0
	output := 0
	for i := 1; i < length; i++ {
		proposed := float64(active[output].Weight + active[i].Weight)
		q0 := cumulative / totalWeight
		q2 := (cumulative + proposed) / totalWeight
		bound := totalWeight * z * math.Min(math.Min(q0, 1-q0), math.Min(q2, 1-q2)) / compression

		if proposed <= bound {
			active[output] = active[output].merge(active[i])
		} else {
			cumulative += float64(active[output].Weight)
			output++
			active[output] = active[i]
		}
		if output != i {
			// The candidate was either absorbed or moved down.
			active[i] = Centroid{}
		}
	}

	t.compactedCount = uint32(output + 1)
	t.uncompactedCount = 0
	if descending {
		slices.Reverse(active[:output+1])
	}

	if output+1 >= int(t.config.capacity) {
		t.err = fmt.Errorf("%w: %d centroids left for a capacity of %d", ErrInvariantViolation, output+1, t.config.capacity)
		return t.err
	}
	return nil
}

// scale returns the Z factor of the scale function bounding the weight of a
// centroid: bound = N * Z * min(q0, 1-q0, q2, 1-q2) / compression.
func scale(totalWeight, compression float64) float64 {
	return 4*math.Log(totalWeight/compression) + 21
}
