// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"fmt"
	"io"

	enc "github.com/DataDog/tdigest-go/tdigest/encoding"
)

// The binary layout is, all fields little-endian:
//
//	magic (uint32) | capacity (uint32) | compacted count (uint32) |
//	uncompacted count (uint32) | compaction counter (uint32) |
//	min (float64) | max (float64) | point count (uint64) |
//	{ mean (float64), weight (uint64) } for each active centroid
const (
	Magic = uint32(0x54444731)

	headerSize   = 5*4 + 2*8 + 8
	centroidSize = 8 + 8

	// loadChunk bounds the number of centroids read from a source at once.
	loadChunk = 4096
)

type header struct {
	capacity          uint32
	compactedCount    uint32
	uncompactedCount  uint32
	compactionCounter uint32
	min               float64
	max               float64
	pointCount        uint64
}

// EncodedSize returns the size, in bytes, of the binary serialization of the
// digest in its current state.
func (t *TDigest) EncodedSize() int {
	return headerSize + t.activeCount()*centroidSize
}

// Save writes the digest to w. Pending insertions are compacted only if the
// active region is full, so a saved digest may carry an uncompacted suffix.
// If a write fails, what has reached w is undefined.
func (t *TDigest) Save(w io.Writer) error {
	b, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("%w: writing digest: %w", ErrIO, err)
	}
	return nil
}

// MarshalBinary returns the same bytes as Save.
func (t *TDigest) MarshalBinary() ([]byte, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	if t.needsCompacting() {
		if err := t.Compact(); err != nil {
			return nil, err
		}
	}

	b := make([]byte, 0, t.EncodedSize())
	t.header().encode(&b)
	for _, c := range t.centroids[:t.activeCount()] {
		enc.EncodeFloat64LE(&b, c.Mean)
		enc.EncodeUint64LE(&b, c.Weight)
	}
	return b, nil
}

// Load reads a digest written by Save. It fails with ErrCorruptFormat if the
// input is malformed or truncated, with ErrConfiguration if the stored
// capacity is too small and with ErrIO if r fails. It never returns a partially
// restored digest.
func Load(r io.Reader) (*TDigest, error) {
	b := make([]byte, headerSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, readError("header", err)
	}
	h, err := decodeHeader(&b)
	if err != nil {
		return nil, err
	}
	t, err := h.newDigest()
	if err != nil {
		return nil, err
	}

	active := t.activeCount()
	chunk := make([]byte, min(active, loadChunk)*centroidSize)
	for read := 0; read < active; {
		n := min(active-read, loadChunk)
		b := chunk[:n*centroidSize]
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, readError("centroids", err)
		}
		if err := decodeCentroids(&b, t.centroids[read:read+n]); err != nil {
			return nil, err
		}
		read += n
	}

	if err := t.checkRestored(); err != nil {
		return nil, err
	}
	return t, nil
}

// UnmarshalBinary replaces the content of t with the digest serialized in
// data. Trailing bytes are reported as ErrCorruptFormat.
func (t *TDigest) UnmarshalBinary(data []byte) error {
	decoded, err := decodeDigest(data)
	if err != nil {
		return err
	}
	*t = *decoded
	return nil
}

// Decode is the counterpart of MarshalBinary.
func Decode(data []byte) (*TDigest, error) {
	return decodeDigest(data)
}

func decodeDigest(data []byte) (*TDigest, error) {
	b := data
	h, err := decodeHeader(&b)
	if err != nil {
		return nil, err
	}
	t, err := h.newDigest()
	if err != nil {
		return nil, err
	}
	active := t.activeCount()
	if len(b) < active*centroidSize {
		return nil, fmt.Errorf("%w: %d bytes left for %d centroids", ErrCorruptFormat, len(b), active)
	}
	if err := decodeCentroids(&b, t.centroids[:active]); err != nil {
		return nil, err
	}
	if len(b) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptFormat, len(b))
	}
	if err := t.checkRestored(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TDigest) header() header {
	return header{
		capacity:          t.config.capacity,
		compactedCount:    t.compactedCount,
		uncompactedCount:  t.uncompactedCount,
		compactionCounter: t.compactionCounter,
		min:               t.min,
		max:               t.max,
		pointCount:        t.pointCount,
	}
}

func (h header) encode(b *[]byte) {
	enc.EncodeUint32LE(b, Magic)
	enc.EncodeUint32LE(b, h.capacity)
	enc.EncodeUint32LE(b, h.compactedCount)
	enc.EncodeUint32LE(b, h.uncompactedCount)
	enc.EncodeUint32LE(b, h.compactionCounter)
	enc.EncodeFloat64LE(b, h.min)
	enc.EncodeFloat64LE(b, h.max)
	enc.EncodeUint64LE(b, h.pointCount)
}

func decodeHeader(b *[]byte) (header, error) {
	if len(*b) < headerSize {
		return header{}, fmt.Errorf("%w: %d bytes is too short for a header", ErrCorruptFormat, len(*b))
	}
	// The length check above makes the decoders below infallible.
	magic, _ := enc.DecodeUint32LE(b)
	if magic != Magic {
		return header{}, fmt.Errorf("%w: unexpected magic value 0x%08x", ErrCorruptFormat, magic)
	}
	var h header
	h.capacity, _ = enc.DecodeUint32LE(b)
	h.compactedCount, _ = enc.DecodeUint32LE(b)
	h.uncompactedCount, _ = enc.DecodeUint32LE(b)
	h.compactionCounter, _ = enc.DecodeUint32LE(b)
	h.min, _ = enc.DecodeFloat64LE(b)
	h.max, _ = enc.DecodeFloat64LE(b)
	h.pointCount, _ = enc.DecodeUint64LE(b)
	return h, nil
}

// newDigest allocates a digest sized after the header and restores its scalar
// fields. The active region is left zeroed.
func (h header) newDigest() (*TDigest, error) {
	c, err := newConfigWithCapacity(uint64(h.capacity))
	if err != nil {
		return nil, err
	}
	if active := uint64(h.compactedCount) + uint64(h.uncompactedCount); active > uint64(h.capacity) {
		return nil, fmt.Errorf("%w: %d active centroids for a capacity of %d", ErrCorruptFormat, active, h.capacity)
	}
	t := NewTDigest(c)
	t.compactedCount = h.compactedCount
	t.uncompactedCount = h.uncompactedCount
	t.compactionCounter = h.compactionCounter
	t.min = h.min
	t.max = h.max
	t.pointCount = h.pointCount
	return t, nil
}

func decodeCentroids(b *[]byte, centroids []Centroid) error {
	for i := range centroids {
		mean, err := enc.DecodeFloat64LE(b)
		if err != nil {
			return readError("centroid mean", err)
		}
		weight, err := enc.DecodeUint64LE(b)
		if err != nil {
			return readError("centroid weight", err)
		}
		centroids[i] = Centroid{Mean: mean, Weight: weight}
	}
	return nil
}

// checkRestored verifies that the restored centroids agree with the restored
// scalars.
func (t *TDigest) checkRestored() error {
	var total uint64
	for i, c := range t.centroids[:t.activeCount()] {
		if c.Weight == 0 {
			return fmt.Errorf("%w: centroid %d has a zero weight", ErrCorruptFormat, i)
		}
		total += c.Weight
	}
	if total != t.pointCount {
		return fmt.Errorf("%w: centroid weights sum to %d, expected %d", ErrCorruptFormat, total, t.pointCount)
	}
	return nil
}
