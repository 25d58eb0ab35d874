// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"fmt"
)

const (
	// DefaultCompression is the compression factor used by NewDefaultConfig.
	DefaultCompression = 100

	// MaxCapacity is the largest number of centroid slots a digest may hold.
	MaxCapacity = 1 << 27

	centroidsPerCompression = 16
	minCapacity             = 4
)

// Config holds the sizing of a digest. The capacity, i.e. the maximum number of
// live centroids, is derived from the compression factor and stays fixed for
// the lifetime of the digest.
//
// A higher compression means more centroids in memory, thus better precision,
// at the cost of a larger serialized size and slower compactions.
type Config struct {
	capacity uint32
}

func NewDefaultConfig() *Config {
	return &Config{capacity: DefaultCompression * centroidsPerCompression}
}

// NewConfig returns a configuration for a digest of capacity compression*16.
func NewConfig(compression uint32) (*Config, error) {
	return newConfigWithCapacity(uint64(compression) * centroidsPerCompression)
}

func newConfigWithCapacity(capacity uint64) (*Config, error) {
	if capacity <= minCapacity {
		return nil, fmt.Errorf("%w: capacity %d must be greater than %d", ErrConfiguration, capacity, minCapacity)
	}
	if capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds %d", ErrAllocation, capacity, MaxCapacity)
	}
	return &Config{capacity: uint32(capacity)}, nil
}

// Capacity returns the maximum number of live centroids.
func (c *Config) Capacity() int {
	return int(c.capacity)
}

// Compression returns the compression factor used by the scale function.
// It is computed in floating point so that capacities which are not a
// multiple of 16, as found in serialized digests, still give a usable factor.
func (c *Config) Compression() float64 {
	return float64(c.capacity) / centroidsPerCompression
}
