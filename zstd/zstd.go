// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package zstd implements chunk compression with zstd.
package zstd

import (
	"errors"

	"github.com/klauspost/compress/zstd"
)

// Compressor compresses and decompresses chunks with zstd.
//
// Compressor is safe for concurrent use by multiple goroutines.
type Compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCompressor creates a new Compressor.
//
// Encoder options can be used e.g. to adjust the compression level.
func NewCompressor(opts ...zstd.EOption) (*Compressor, error) {
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	return &Compressor{
		enc: enc,
		dec: dec,
	}, nil
}

// Compress appends the compressed data to dest and returns the result.
func (c *Compressor) Compress(src, dest []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dest), nil
}

// Decompress appends the decompressed data to dest and returns the result.
func (c *Compressor) Decompress(src, dest []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, dest)
}

// DecompressedSize returns the decompressed size of the data without
// decompressing it.
func (c *Compressor) DecompressedSize(src []byte) (int64, error) {
	if len(src) == 0 {
		return 0, nil
	}

	var header zstd.Header

	if err := header.Decode(src); err != nil {
		return 0, err
	}

	if !header.HasFCS {
		return 0, errors.New("frame content size is not set")
	}

	return int64(header.FrameContentSize), nil
}
