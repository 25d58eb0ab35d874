// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package tdigest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/DataDog/tdigest-go/dataset"
	enc "github.com/DataDog/tdigest-go/tdigest/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDigests covers an empty digest, a digest with only uncompacted
// centroids and digests mixing a compacted prefix with an uncompacted suffix.
func testDigests(t *testing.T) map[string]*TDigest {
	digests := map[string]*TDigest{"empty": NewDefault()}

	small := NewDefault()
	for i := 0; i < 10; i++ {
		require.NoError(t, small.AddWithCount(float64(i), uint64(i+1)))
	}
	digests["uncompacted"] = small

	for _, compression := range []uint32{1, 10, 100} {
		td, err := New(compression)
		require.NoError(t, err)
		gen := dataset.NewNormal(0, 10)
		for i := 0; i < 10000+int(compression); i++ {
			require.NoError(t, td.Add(gen.Generate()))
		}
		digests[fmt.Sprintf("compression-%d", compression)] = td
	}
	return digests
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, td := range testDigests(t) {
		t.Run(name, func(t *testing.T) {
			var buffer bytes.Buffer
			require.NoError(t, td.Save(&buffer))
			assert.Equal(t, td.EncodedSize(), buffer.Len())

			loaded, err := Load(&buffer)
			require.NoError(t, err)
			assertDigestsEqual(t, td, loaded)
		})
	}
}

func TestMarshalBinaryRoundTrip(t *testing.T) {
	for name, td := range testDigests(t) {
		t.Run(name, func(t *testing.T) {
			b, err := td.MarshalBinary()
			require.NoError(t, err)

			decoded, err := Decode(b)
			require.NoError(t, err)
			reencoded, err := decoded.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, b, reencoded)

			var loaded TDigest
			require.NoError(t, loaded.UnmarshalBinary(b))
			assertDigestsEqual(t, td, &loaded)
		})
	}
}

func assertDigestsEqual(t *testing.T, expected, actual *TDigest) {
	assert := assert.New(t)
	assert.Equal(expected.Capacity(), actual.Capacity())
	assert.Equal(expected.compactedCount, actual.compactedCount)
	assert.Equal(expected.uncompactedCount, actual.uncompactedCount)
	assert.Equal(expected.compactionCounter, actual.compactionCounter)
	assert.Equal(expected.Min(), actual.Min())
	assert.Equal(expected.Max(), actual.Max())
	assert.Equal(expected.Count(), actual.Count())
	assert.Equal(expected.Centroids(), actual.Centroids())

	// Queries compact both digests the same way.
	ps := uniformPercentiles(100)
	expectedValues, actualValues := expected.Percentiles(ps), actual.Percentiles(ps)
	for i, p := range ps {
		if math.IsNaN(expectedValues[i]) {
			assert.True(math.IsNaN(actualValues[i]), "percentile %g", p)
			continue
		}
		assert.Equal(expectedValues[i], actualValues[i], "percentile %g", p)
	}
	assert.Equal(expected.Centroids(), actual.Centroids())
}

func TestSaveKeepsUncompactedSuffix(t *testing.T) {
	td := NewDefault()
	for i := 0; i < 100; i++ {
		require.NoError(t, td.Add(float64(i)))
	}

	b, err := td.MarshalBinary()
	require.NoError(t, err)
	loaded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), loaded.uncompactedCount)
	assert.Zero(t, loaded.compactionCounter)
}

func TestSaveCompactsFullDigest(t *testing.T) {
	// A full active region can only come from a serialized digest.
	values := make([]Centroid, 16)
	for i := range values {
		values[i] = Centroid{Mean: float64(i), Weight: 1}
	}
	td, err := Decode(encodeRaw(16, 0, 16, 0, 0, 15, 16, values))
	require.NoError(t, err)
	assert.Equal(t, 16, td.CentroidCount())

	var buffer bytes.Buffer
	require.NoError(t, td.Save(&buffer))
	assert.Equal(t, uint32(1), td.compactionCounter)
	assert.Zero(t, td.uncompactedCount)
	assert.Less(t, td.CentroidCount(), 16)
	assert.Equal(t, td.EncodedSize(), buffer.Len())
}

func TestEncodedLayout(t *testing.T) {
	td, err := New(1)
	require.NoError(t, err)
	require.NoError(t, td.AddWithCount(1.5, 2))

	b, err := td.MarshalBinary()
	require.NoError(t, err)
	expected := []byte{
		0x31, 0x47, 0x44, 0x54, // magic
		0x10, 0x00, 0x00, 0x00, // capacity
		0x00, 0x00, 0x00, 0x00, // compacted
		0x01, 0x00, 0x00, 0x00, // uncompacted
		0x00, 0x00, 0x00, 0x00, // compactions
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF8, 0x3F, // min
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF8, 0x3F, // max
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // point count
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF8, 0x3F, // mean
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // weight
	}
	assert.Equal(t, expected, b)
}

func TestLoadTruncated(t *testing.T) {
	td := testDigests(t)["uncompacted"]
	b, err := td.MarshalBinary()
	require.NoError(t, err)

	for i := 0; i < len(b); i++ {
		loaded, err := Load(bytes.NewReader(b[:i]))
		assert.ErrorIs(t, err, ErrCorruptFormat, "length %d", i)
		assert.Nil(t, loaded)

		decoded, err := Decode(b[:i])
		assert.ErrorIs(t, err, ErrCorruptFormat, "length %d", i)
		assert.Nil(t, decoded)
	}
}

func TestLoadBadMagic(t *testing.T) {
	b, err := NewDefault().MarshalBinary()
	require.NoError(t, err)
	b[0] ^= 0xFF

	_, err = Load(bytes.NewReader(b))
	assert.ErrorIs(t, err, ErrCorruptFormat)
}

func TestLoadInconsistent(t *testing.T) {
	one := []Centroid{{Mean: 1, Weight: 1}}
	testCases := map[string]struct {
		data     []byte
		expected error
	}{
		"capacity too small": {encodeRaw(4, 0, 1, 0, 1, 1, 1, one), ErrConfiguration},
		"capacity too large": {encodeRaw(MaxCapacity+1, 0, 1, 0, 1, 1, 1, one), ErrAllocation},
		"too many centroids": {encodeRaw(16, 10, 7, 0, 1, 1, 1, one), ErrCorruptFormat},
		"zero weight":        {encodeRaw(16, 0, 1, 0, 1, 1, 0, []Centroid{{Mean: 1}}), ErrCorruptFormat},
		"weight mismatch":    {encodeRaw(16, 0, 1, 0, 1, 1, 2, one), ErrCorruptFormat},
		"missing centroids":  {encodeRaw(16, 0, 2, 0, 1, 1, 1, one), ErrCorruptFormat},
		"trailing centroids": {encodeRaw(16, 0, 0, 0, 1, 1, 0, one), ErrCorruptFormat},
	}
	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(testCase.data)
			assert.ErrorIs(t, err, testCase.expected)
			if name != "trailing centroids" {
				// Load stops reading after the declared centroids.
				_, err = Load(bytes.NewReader(testCase.data))
				assert.ErrorIs(t, err, testCase.expected)
			}
		})
	}
}

func TestLoadLargeDigest(t *testing.T) {
	// More centroids than a single read chunk.
	values := make([]Centroid, 3*loadChunk+1)
	for i := range values {
		values[i] = Centroid{Mean: float64(i), Weight: 2}
	}
	data := encodeRaw(16*1000, 0, uint32(len(values)), 0, 0, float64(len(values)-1), uint64(2*len(values)), values)

	td, err := Load(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, values, td.Centroids())
}

type failingIO struct {
	err error
}

func (f failingIO) Read([]byte) (int, error)  { return 0, f.err }
func (f failingIO) Write([]byte) (int, error) { return 0, f.err }

func TestIOFailures(t *testing.T) {
	failure := errors.New("disk on fire")
	td := testDigests(t)["uncompacted"]

	err := td.Save(failingIO{failure})
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, failure)

	_, err = Load(failingIO{failure})
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, failure)

	// A source which fails after the header.
	b, err := td.MarshalBinary()
	require.NoError(t, err)
	_, err = Load(io.MultiReader(bytes.NewReader(b[:headerSize]), failingIO{failure}))
	assert.ErrorIs(t, err, ErrIO)
}

// encodeRaw serializes arbitrary field values, consistent or not.
func encodeRaw(capacity, compacted, uncompacted, counter uint32, minValue, maxValue float64, count uint64, centroids []Centroid) []byte {
	var b []byte
	header{
		capacity:          capacity,
		compactedCount:    compacted,
		uncompactedCount:  uncompacted,
		compactionCounter: counter,
		min:               minValue,
		max:               maxValue,
		pointCount:        count,
	}.encode(&b)
	for _, c := range centroids {
		enc.EncodeFloat64LE(&b, c.Mean)
		enc.EncodeUint64LE(&b, c.Weight)
	}
	return b
}
