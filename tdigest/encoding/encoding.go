// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2021 Datadog, Inc.

// Package encoding holds the low-level primitives used to write and read
// serialized digests. Every multi-byte fixed-width value is little-endian,
// whatever the host byte order.
//
// Encoders append to the provided byte slice. Decoders consume bytes from the
// front of the provided slice and return io.EOF if it is too short.
package encoding

import (
	"encoding/binary"
	"io"
	"math"
)

// ByteOrder is the byte order of every fixed-width value.
var ByteOrder = binary.LittleEndian

const (
	maxVarLen64 = 9
)

// EncodeUint32LE serializes 32-bit unsigned integers, little-endian.
func EncodeUint32LE(b *[]byte, v uint32) {
	*b = ByteOrder.AppendUint32(*b, v)
}

// DecodeUint32LE deserializes 32-bit unsigned integers, little-endian.
func DecodeUint32LE(b *[]byte) (uint32, error) {
	if len(*b) < 4 {
		return 0, io.EOF
	}
	v := ByteOrder.Uint32(*b)
	*b = (*b)[4:]
	return v, nil
}

// EncodeUint64LE serializes 64-bit unsigned integers, little-endian.
func EncodeUint64LE(b *[]byte, v uint64) {
	*b = ByteOrder.AppendUint64(*b, v)
}

// DecodeUint64LE deserializes 64-bit unsigned integers, little-endian.
func DecodeUint64LE(b *[]byte) (uint64, error) {
	if len(*b) < 8 {
		return 0, io.EOF
	}
	v := ByteOrder.Uint64(*b)
	*b = (*b)[8:]
	return v, nil
}

// EncodeFloat64LE serializes 64-bit floating-point values using their IEEE 754
// binary representation, little-endian.
func EncodeFloat64LE(b *[]byte, v float64) {
	EncodeUint64LE(b, math.Float64bits(v))
}

// DecodeFloat64LE deserializes 64-bit floating-point values written with
// EncodeFloat64LE.
func DecodeFloat64LE(b *[]byte) (float64, error) {
	bits, err := DecodeUint64LE(b)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// EncodeUvarint64 serializes 64-bit unsigned integers 7 bits at a time,
// starting with the least significant bits. The most significant bit in each
// output byte is the continuation bit and indicates whether there are
// additional non-zero bits encoded in following bytes. There are at most 9
// output bytes and the last one does not have a continuation bit, allowing for
// it to encode 8 bits (8*7+8 = 64).
func EncodeUvarint64(b *[]byte, v uint64) {
	for i := 0; i < maxVarLen64-1; i++ {
		if v < 0x80 {
			break
		}
		*b = append(*b, byte(v)|byte(0x80))
		v >>= 7
	}
	*b = append(*b, byte(v))
}

// DecodeUvarint64 deserializes 64-bit unsigned integers that have been encoded
// using EncodeUvarint64.
func DecodeUvarint64(b *[]byte) (uint64, error) {
	x := uint64(0)
	s := uint(0)
	for i := 0; ; i++ {
		if len(*b) <= i {
			return 0, io.EOF
		}
		n := (*b)[i]
		if n < 0x80 || i == maxVarLen64-1 {
			*b = (*b)[i+1:]
			return x | uint64(n)<<s, nil
		}
		x |= uint64(n&0x7F) << s
		s += 7
	}
}

// Uvarint64Size returns the number of bytes that EncodeUvarint64 encodes a
// 64-bit unsigned integer into.
func Uvarint64Size(v uint64) int {
	size := 1
	for ; size < maxVarLen64 && v >= 0x80; size++ {
		v >>= 7
	}
	return size
}
