// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

// Centroid stands for one or more samples collapsed into a single point.
// A zero Weight marks an unused slot.
type Centroid struct {
	Mean   float64
	Weight uint64
}

// merge returns the centroid obtained by absorbing o into c.
func (c Centroid) merge(o Centroid) Centroid {
	sum := c.Weight + o.Weight
	return Centroid{
		Mean:   c.Mean + (o.Mean-c.Mean)*float64(o.Weight)/float64(sum),
		Weight: sum,
	}
}

func weightedAverage(v1, w1, v2, w2 float64) float64 {
	return v1 + (v2-v1)*w2/(w1+w2)
}

const tieTolerance = 1e-15

func verySmall(v float64) bool {
	return -tieTolerance < v && v < tieTolerance
}

// byMean returns the ordering used by a compaction pass. Means closer than
// tieTolerance are considered equal and ordered by ascending weight, in both
// directions.
func byMean(descending bool) func(c1, c2 Centroid) bool {
	return func(c1, c2 Centroid) bool {
		delta := c1.Mean - c2.Mean
		if !verySmall(delta) {
			if descending {
				return delta > 0
			}
			return delta < 0
		}
		return c1.Weight < c2.Weight
	}
}
