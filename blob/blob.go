// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package blob wraps the binary serialization of a digest into a compressed,
// checksummed envelope suited for storage and transport:
//
//	magic (uint32) | compression type (uint8) | raw size (uvarint) |
//	xxhash64 of the raw serialization (uint64) | compressed payload
//
// Fixed-width fields are little-endian. The raw serialization is the one
// written by TDigest.Save.
package blob

import (
	"fmt"
	"io"

	"github.com/DataDog/tdigest-go/compress"
	"github.com/DataDog/tdigest-go/tdigest"
	enc "github.com/DataDog/tdigest-go/tdigest/encoding"
	"github.com/cespare/xxhash/v2"
)

const Magic = uint32(0x54444242)

// Encode serializes td and compresses the result with the given codec.
func Encode(td *tdigest.TDigest, c compress.Type) ([]byte, error) {
	codec, err := compress.GetCodec(c)
	if err != nil {
		return nil, err
	}
	raw, err := td.MarshalBinary()
	if err != nil {
		return nil, err
	}
	payload, err := codec.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compressing digest with %s: %w", c, err)
	}

	b := make([]byte, 0, 4+1+enc.Uvarint64Size(uint64(len(raw)))+8+len(payload))
	enc.EncodeUint32LE(&b, Magic)
	b = append(b, byte(c))
	enc.EncodeUvarint64(&b, uint64(len(raw)))
	enc.EncodeUint64LE(&b, xxhash.Sum64(raw))
	return append(b, payload...), nil
}

// Decode reverses Encode. It fails with tdigest.ErrCorruptFormat if the
// envelope is malformed or the checksum does not match.
func Decode(b []byte) (*tdigest.TDigest, error) {
	magic, err := enc.DecodeUint32LE(&b)
	if err != nil {
		return nil, corrupt("truncated header")
	}
	if magic != Magic {
		return nil, corrupt(fmt.Sprintf("unexpected magic value 0x%08x", magic))
	}
	if len(b) == 0 {
		return nil, corrupt("truncated header")
	}
	c := compress.Type(b[0])
	b = b[1:]
	codec, err := compress.GetCodec(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tdigest.ErrCorruptFormat, err)
	}
	size, err := enc.DecodeUvarint64(&b)
	if err != nil {
		return nil, corrupt("truncated header")
	}
	checksum, err := enc.DecodeUint64LE(&b)
	if err != nil {
		return nil, corrupt("truncated header")
	}

	raw, err := codec.Decompress(b)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing with %s: %w", tdigest.ErrCorruptFormat, c, err)
	}
	if uint64(len(raw)) != size {
		return nil, corrupt(fmt.Sprintf("expected %d bytes, got %d", size, len(raw)))
	}
	if xxhash.Sum64(raw) != checksum {
		return nil, corrupt("checksum mismatch")
	}
	return tdigest.Decode(raw)
}

// IsBlob reports whether b starts like an encoded blob.
func IsBlob(b []byte) bool {
	magic, err := enc.DecodeUint32LE(&b)
	return err == nil && magic == Magic
}

// Write encodes td and writes it to w.
func Write(w io.Writer, td *tdigest.TDigest, c compress.Type) error {
	b, err := Encode(td, c)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("%w: writing blob: %w", tdigest.ErrIO, err)
	}
	return nil
}

// Read reads r to the end and decodes a digest from it. Both blobs and raw
// serializations are accepted.
func Read(r io.Reader) (*tdigest.TDigest, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob: %w", tdigest.ErrIO, err)
	}
	if IsBlob(b) {
		return Decode(b)
	}
	return tdigest.Decode(b)
}

func corrupt(reason string) error {
	return fmt.Errorf("%w: %s", tdigest.ErrCorruptFormat, reason)
}
