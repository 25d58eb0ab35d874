// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2021 Datadog, Inc.

// Package dataset keeps every value of a stream so that digests can be checked
// against exact ranks and quantiles.
package dataset

import (
	"math"
	"sort"

	"github.com/DataDog/tdigest-go/stat"
)

type Dataset struct {
	Values []float64
	Count  float64
	sorted bool
}

func NewDataset() *Dataset { return &Dataset{} }

func (d *Dataset) Add(v float64) {
	d.Values = append(d.Values, v)
	d.Count++
	d.sorted = false
}

// AddWithCount adds count copies of v.
func (d *Dataset) AddWithCount(v float64, count uint64) {
	for i := uint64(0); i < count; i++ {
		d.Add(v)
	}
}

// LowerQuantile returns the value at rank floor(q*(Count-1)).
func (d *Dataset) LowerQuantile(q float64) float64 {
	if q < 0 || q > 1 || d.Count == 0 {
		return math.NaN()
	}

	d.sort()
	rank := q * (d.Count - 1)
	return d.Values[int(math.Floor(rank))]
}

// MinRank returns the number of values strictly lower than v.
func (d *Dataset) MinRank(v float64) int64 {
	d.sort()
	return int64(sort.Search(len(d.Values), func(i int) bool { return d.Values[i] >= v }))
}

// MaxRank returns the number of values lower than or equal to v.
func (d *Dataset) MaxRank(v float64) int64 {
	d.sort()
	return int64(sort.Search(len(d.Values), func(i int) bool { return d.Values[i] > v }))
}

// RankError returns how far, as a fraction of Count, the rank of v is from the
// target rank q*Count. It is zero when v could be the exact q-quantile.
func (d *Dataset) RankError(q, v float64) float64 {
	target := q * d.Count
	minRank, maxRank := float64(d.MinRank(v)), float64(d.MaxRank(v))
	switch {
	case target < minRank:
		return (minRank - target) / d.Count
	case target > maxRank:
		return (target - maxRank) / d.Count
	default:
		return 0
	}
}

func (d *Dataset) Min() float64 {
	d.sort()
	return d.Values[0]
}

func (d *Dataset) Max() float64 {
	d.sort()
	return d.Values[len(d.Values)-1]
}

func (d *Dataset) Sum() float64 {
	summaryStatistics := stat.NewSummaryStatistics()
	for _, v := range d.Values {
		summaryStatistics.Add(v, 1)
	}
	return summaryStatistics.Sum()
}

func (d *Dataset) sort() {
	if d.sorted {
		return
	}
	sort.Float64s(d.Values)
	d.sorted = true
}
