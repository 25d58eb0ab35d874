// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package tdigest implements a t-digest, a streaming sketch that answers
// approximate percentile queries over an unbounded sequence of weighted values
// in bounded memory. Accuracy is best at the tails of the distribution.
//
// Insertions are appended to a fixed-capacity centroid buffer. Whenever the
// buffer fills up, a compaction pass sorts it and greedily merges neighboring
// centroids under a scale function that keeps centroids small near the
// extremes and lets them grow near the median.
//
// A TDigest is not safe for concurrent use.
package tdigest

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
)

type TDigest struct {
	config *Config

	// centroids has capacity+1 slots: the compacted prefix, followed by the
	// uncompacted suffix, followed by zeroed slots.
	centroids         []Centroid
	compactedCount    uint32
	uncompactedCount  uint32
	compactionCounter uint32

	min        float64
	max        float64
	pointCount uint64

	// err is set when a compaction pass breaks the capacity invariant.
	err error
}

// NewTDigest allocates a new, empty digest.
func NewTDigest(c *Config) *TDigest {
	return &TDigest{
		config:    c,
		centroids: make([]Centroid, c.capacity+1),
		min:       math.Inf(1),
		max:       math.Inf(-1),
	}
}

// New allocates a digest of capacity compression*16. It fails with
// ErrConfiguration if the capacity is too small and with ErrAllocation if it
// is too large.
func New(compression uint32) (*TDigest, error) {
	c, err := NewConfig(compression)
	if err != nil {
		return nil, err
	}
	return NewTDigest(c), nil
}

func NewDefault() *TDigest {
	return NewTDigest(NewDefaultConfig())
}

// Release drops the centroid storage. Any later call to the digest reports
// ErrReleased, or NaN for percentile queries.
func (t *TDigest) Release() {
	t.centroids = nil
	t.compactedCount = 0
	t.uncompactedCount = 0
}

// Err returns the error that left the digest in a failed state, if any.
// A digest in a failed state must be discarded.
func (t *TDigest) Err() error {
	return t.err
}

func (t *TDigest) usable() error {
	if t.centroids == nil {
		return ErrReleased
	}
	return t.err
}

// Add a new value to the digest.
func (t *TDigest) Add(value float64) error {
	return t.AddWithCount(value, 1)
}

// AddWithCount adds a value standing for weight samples. It may trigger a
// compaction pass before returning.
func (t *TDigest) AddWithCount(value float64, weight uint64) error {
	if err := t.usable(); err != nil {
		return err
	}
	if weight == 0 {
		return ErrInvalidWeight
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrInvalidValue
	}

	if value < t.min {
		t.min = value
	}
	if value > t.max {
		t.max = value
	}

	next := t.activeCount()
	if next >= len(t.centroids) {
		// Compaction always runs once the active region reaches capacity,
		// so the spare slot is the furthest an insertion can go.
		return fmt.Errorf("%w: no free slot at %d", ErrInvariantViolation, next)
	}
	t.centroids[next] = Centroid{Mean: value, Weight: weight}
	t.uncompactedCount++
	t.pointCount += weight

	if t.needsCompacting() {
		return t.Compact()
	}
	return nil
}

// Count returns the total weight of the values added to the digest.
func (t *TDigest) Count() uint64 {
	return t.pointCount
}

// Min returns the smallest value added, or +Inf if the digest is empty.
func (t *TDigest) Min() float64 {
	return t.min
}

// Max returns the largest value added, or -Inf if the digest is empty.
func (t *TDigest) Max() float64 {
	return t.max
}

func (t *TDigest) IsEmpty() bool {
	return t.pointCount == 0
}

func (t *TDigest) Config() *Config {
	return t.config
}

// Capacity returns the maximum number of live centroids.
func (t *TDigest) Capacity() int {
	return t.config.Capacity()
}

// CentroidCount returns the number of centroids in the active region,
// compacted or not.
func (t *TDigest) CentroidCount() int {
	return t.activeCount()
}

// Centroids returns a copy of the active region in storage order. The
// compacted prefix comes first, sorted by ascending mean.
func (t *TDigest) Centroids() []Centroid {
	active := make([]Centroid, t.activeCount())
	copy(active, t.centroids)
	return active
}

func (t *TDigest) activeCount() int {
	return int(t.compactedCount) + int(t.uncompactedCount)
}

func (t *TDigest) needsCompacting() bool {
	return t.activeCount() >= int(t.config.capacity)
}

func (t *TDigest) String() string {
	var buffer bytes.Buffer
	buffer.WriteString(fmt.Sprintf("capacity: %d ", t.config.capacity))
	buffer.WriteString(fmt.Sprintf("count: %d ", t.pointCount))
	buffer.WriteString(fmt.Sprintf("min: %g ", t.min))
	buffer.WriteString(fmt.Sprintf("max: %g ", t.max))
	buffer.WriteString(fmt.Sprintf("compactions: %d ", t.compactionCounter))
	buffer.WriteString(fmt.Sprintf("centroids: %d compacted, %d uncompacted", t.compactedCount, t.uncompactedCount))
	return buffer.String()
}

func (t *TDigest) MemorySize() int {
	return int(reflect.TypeOf(*t).Size()) +
		cap(t.centroids)*int(reflect.TypeOf(t.centroids).Elem().Size())
}
