// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package compress

import (
	"errors"
	"fmt"
	"sync"

	enc "github.com/DataDog/tdigest-go/tdigest/encoding"
	"github.com/pierrec/lz4/v4"
)

// maxLZ4Ratio is the largest expansion an LZ4 block can encode.
const maxLZ4Ratio = 255

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Compressor has the fastest decompression of the built-in codecs.
//
// LZ4 blocks do not record their uncompressed size, so the compressed form is
// the uncompressed size as a uvarint followed by the block. The decompression
// buffer is allocated once, with its exact size.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

func (c LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	prefix := enc.Uvarint64Size(uint64(len(data)))
	dst := make([]byte, 0, prefix+lz4.CompressBlockBound(len(data)))
	enc.EncodeUvarint64(&dst, uint64(len(data)))

	lc := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[prefix:cap(dst)])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("lz4: incompressible data")
	}
	return dst[:prefix+n], nil
}

func (c LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	size, err := enc.DecodeUvarint64(&data)
	if err != nil {
		return nil, fmt.Errorf("lz4: missing uncompressed size: %w", err)
	}
	if size > uint64(len(data))*maxLZ4Ratio {
		return nil, fmt.Errorf("lz4: uncompressed size %d is out of reach of a %d-byte block", size, len(data))
	}

	buf := make([]byte, size)
	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, err
	}
	if uint64(n) != size {
		return nil, fmt.Errorf("lz4: expected %d bytes, got %d", size, n)
	}
	return buf, nil
}
