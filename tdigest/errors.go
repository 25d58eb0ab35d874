// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrConfiguration is returned when the requested compression, or the
	// capacity read from a serialized digest, is too small to form a sketch.
	ErrConfiguration = errors.New("tdigest: invalid configuration")
	// ErrAllocation is returned when the centroid storage cannot be obtained.
	ErrAllocation = errors.New("tdigest: cannot allocate centroid storage")
	// ErrCorruptFormat is returned when serialized data has a bad magic value,
	// ends prematurely or describes an inconsistent digest.
	ErrCorruptFormat = errors.New("tdigest: corrupt format")
	// ErrIO is returned when the underlying sink or source fails.
	ErrIO = errors.New("tdigest: i/o failure")
	// ErrInvariantViolation signals that a compaction pass could not bring the
	// active region below capacity. It is a defect signal, not an input error,
	// and leaves the digest in a failed state.
	ErrInvariantViolation = errors.New("tdigest: compaction invariant violated")
	// ErrInvalidWeight is returned when adding a value with a zero weight.
	ErrInvalidWeight = errors.New("tdigest: the weight must be at least 1")
	// ErrInvalidValue is returned when adding a NaN or infinite value.
	ErrInvalidValue = errors.New("tdigest: the value must be finite")
	// ErrReleased is returned when using a digest after Release.
	ErrReleased = errors.New("tdigest: digest has been released")
)

// readError classifies a failed read: running out of input is a format
// problem, anything else comes from the source itself.
func readError(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short read of %s", ErrCorruptFormat, what)
	}
	return fmt.Errorf("%w: reading %s: %w", ErrIO, what, err)
}
