// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the TDigest message defined in pb/tdigest.proto.
const (
	fieldCapacity          protowire.Number = 1
	fieldCompactedCount    protowire.Number = 2
	fieldUncompactedCount  protowire.Number = 3
	fieldCompactionCounter protowire.Number = 4
	fieldMin               protowire.Number = 5
	fieldMax               protowire.Number = 6
	fieldPointCount        protowire.Number = 7
	fieldMeans             protowire.Number = 8
	fieldWeights           protowire.Number = 9
)

// ToProto serializes the digest as a TDigest protobuf message. Like Save, it
// keeps any uncompacted suffix as is.
func (t *TDigest) ToProto() ([]byte, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	if t.needsCompacting() {
		if err := t.Compact(); err != nil {
			return nil, err
		}
	}
	active := t.centroids[:t.activeCount()]

	var b []byte
	b = appendVarintField(b, fieldCapacity, uint64(t.config.capacity))
	b = appendVarintField(b, fieldCompactedCount, uint64(t.compactedCount))
	b = appendVarintField(b, fieldUncompactedCount, uint64(t.uncompactedCount))
	b = appendVarintField(b, fieldCompactionCounter, uint64(t.compactionCounter))
	b = protowire.AppendTag(b, fieldMin, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(t.min))
	b = protowire.AppendTag(b, fieldMax, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(t.max))
	b = appendVarintField(b, fieldPointCount, t.pointCount)

	if len(active) > 0 {
		b = protowire.AppendTag(b, fieldMeans, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(len(active)*8))
		for _, c := range active {
			b = protowire.AppendFixed64(b, math.Float64bits(c.Mean))
		}

		weightsSize := 0
		for _, c := range active {
			weightsSize += protowire.SizeVarint(c.Weight)
		}
		b = protowire.AppendTag(b, fieldWeights, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(weightsSize))
		for _, c := range active {
			b = protowire.AppendVarint(b, c.Weight)
		}
	}
	return b, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// FromProto builds a digest from a TDigest protobuf message. Repeated fields
// are accepted both packed and unpacked, and unknown fields are skipped.
func FromProto(b []byte) (*TDigest, error) {
	var (
		h       header
		means   []float64
		weights []uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protoError(n)
		}
		b = b[n:]

		switch {
		case num == fieldMeans && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protoError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					return nil, protoError(m)
				}
				means = append(means, math.Float64frombits(v))
				packed = packed[m:]
			}
			b = b[n:]
		case num == fieldWeights && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protoError(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, protoError(m)
				}
				weights = append(weights, v)
				packed = packed[m:]
			}
			b = b[n:]
		case typ == protowire.Fixed64Type && (num == fieldMin || num == fieldMax || num == fieldMeans):
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, protoError(n)
			}
			switch num {
			case fieldMin:
				h.min = math.Float64frombits(v)
			case fieldMax:
				h.max = math.Float64frombits(v)
			default:
				means = append(means, math.Float64frombits(v))
			}
			b = b[n:]
		case typ == protowire.VarintType && num >= fieldCapacity && num <= fieldWeights && num != fieldMin && num != fieldMax && num != fieldMeans:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protoError(n)
			}
			if err := h.setVarintField(num, v, &weights); err != nil {
				return nil, err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protoError(n)
			}
			b = b[n:]
		}
	}

	t, err := h.newDigest()
	if err != nil {
		return nil, err
	}
	active := t.activeCount()
	if len(means) != active || len(weights) != active {
		return nil, fmt.Errorf("%w: %d means and %d weights for %d centroids", ErrCorruptFormat, len(means), len(weights), active)
	}
	for i := 0; i < active; i++ {
		t.centroids[i] = Centroid{Mean: means[i], Weight: weights[i]}
	}
	if err := t.checkRestored(); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *header) setVarintField(num protowire.Number, v uint64, weights *[]uint64) error {
	if num == fieldWeights {
		*weights = append(*weights, v)
		return nil
	}
	if num == fieldPointCount {
		h.pointCount = v
		return nil
	}
	if v > math.MaxUint32 {
		return fmt.Errorf("%w: field %d overflows 32 bits", ErrCorruptFormat, num)
	}
	switch num {
	case fieldCapacity:
		h.capacity = uint32(v)
	case fieldCompactedCount:
		h.compactedCount = uint32(v)
	case fieldUncompactedCount:
		h.uncompactedCount = uint32(v)
	case fieldCompactionCounter:
		h.compactionCounter = uint32(v)
	}
	return nil
}

func protoError(n int) error {
	return fmt.Errorf("%w: %w", ErrCorruptFormat, protowire.ParseError(n))
}
