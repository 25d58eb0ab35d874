// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2021 Datadog, Inc.

// Package stat tracks exact summary statistics alongside a digest, which only
// keeps approximate ranks.
package stat

import (
	"math"
)

// SummaryStatistics keeps track of the count, the sum, the min and the max of
// recorded values. The sum uses Kahan summation to limit floating-point error
// accumulation over long streams.
type SummaryStatistics struct {
	count           float64
	sum             float64
	sumCompensation float64
	simpleSum       float64
	min             float64
	max             float64
}

func NewSummaryStatistics() *SummaryStatistics {
	return &SummaryStatistics{
		min: math.Inf(1),
		max: math.Inf(-1),
	}
}

func (s *SummaryStatistics) Count() float64 {
	return s.count
}

func (s *SummaryStatistics) Sum() float64 {
	// Better error bounds to add both terms as the final sum.
	tmp := s.sum - s.sumCompensation
	if math.IsNaN(tmp) && math.IsInf(s.simpleSum, 0) {
		// If the compensated sum is spuriously NaN from accumulating one or more
		// same-signed infinite values, return the correctly-signed infinity
		// stored in simpleSum.
		return s.simpleSum
	}
	return tmp
}

func (s *SummaryStatistics) Min() float64 {
	return s.min
}

func (s *SummaryStatistics) Max() float64 {
	return s.max
}

// Add records value count times. A zero count leaves the statistics untouched
// except for the extrema.
func (s *SummaryStatistics) Add(value, count float64) {
	s.AddToCount(count)
	s.AddToSum(value * count)
	if value < s.min {
		s.min = value
	}
	if value > s.max {
		s.max = value
	}
}

func (s *SummaryStatistics) AddToCount(addend float64) {
	s.count += addend
}

func (s *SummaryStatistics) AddToSum(addend float64) {
	s.sumWithCompensation(addend)
	s.simpleSum += addend
}

func (s *SummaryStatistics) MergeWith(o *SummaryStatistics) {
	s.count += o.count
	s.sumWithCompensation(o.sum)
	s.sumWithCompensation(-o.sumCompensation)
	s.simpleSum += o.simpleSum
	s.min = math.Min(s.min, o.min)
	s.max = math.Max(s.max, o.max)
}

func (s *SummaryStatistics) sumWithCompensation(value float64) {
	tmp := value - s.sumCompensation
	velvel := s.sum + tmp // little wolf of rounding error
	s.sumCompensation = velvel - s.sum - tmp
	s.sum = velvel
}

// Clear resets the statistics to their empty state.
func (s *SummaryStatistics) Clear() {
	*s = *NewSummaryStatistics()
}

func (s *SummaryStatistics) Copy() *SummaryStatistics {
	c := *s
	return &c
}
