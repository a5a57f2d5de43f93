// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package store

import (
	"encoding/binary"
	"math"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// EncodeVector serializes a vector as little-endian float32s, the layout
// sqlite-vec uses for its blobs.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector. It rejects blobs whose length
// does not match dimension.
func DecodeVector(blob []byte, dimension int) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, udberr.Errorf(udberr.CodeStoreEmbeddingDecodeCorrupt, "vector blob length %d is not a multiple of 4", len(blob))
	}
	n := len(blob) / 4
	if n != dimension {
		return nil, udberr.Errorf(udberr.CodeStoreEmbeddingDecodeCorrupt, "vector blob holds %d values, want %d", n, dimension)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}

// NonFinite returns the index of the first NaN or infinite element of v, or -1.
func NonFinite(v []float32) int {
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return i
		}
	}
	return -1
}
