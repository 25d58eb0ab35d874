// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package compress provides the general-purpose codecs applied to serialized
// digests before they are stored or shipped. A serialized digest is mostly
// sorted float64 means and small integer weights, which compress well.
package compress

import (
	"fmt"
	"strings"
)

// Type identifies a compression algorithm. Its value is part of the blob
// format and must not change.
type Type uint8

const (
	None Type = 0x1
	Zstd Type = 0x2
	S2   Type = 0x3
	LZ4  Type = 0x4
)

func (c Type) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseType returns the Type named s, as returned by Type.String.
func ParseType(s string) (Type, error) {
	for _, c := range []Type{None, Zstd, S2, LZ4} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression type: %q", s)
}

// Codec compresses and decompresses whole payloads. Implementations are safe
// for concurrent use.
type Codec interface {
	// Compress returns the compressed form of data. The input is not modified.
	Compress(data []byte) ([]byte, error)
	// Decompress reverses Compress. It returns an error if data is corrupted or
	// was produced by another algorithm.
	Decompress(data []byte) ([]byte, error)
}

var builtinCodecs = map[Type]Codec{
	None: NewNoOpCompressor(),
	Zstd: NewZstdCompressor(),
	S2:   NewS2Compressor(),
	LZ4:  NewLZ4Compressor(),
}

// GetCodec returns the built-in Codec for the given type.
func GetCodec(c Type) (Codec, error) {
	if codec, ok := builtinCodecs[c]; ok {
		return codec, nil
	}
	return nil, fmt.Errorf("unsupported compression type: %s", c)
}
