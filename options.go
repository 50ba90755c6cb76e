// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package streamcache

import (
	"fmt"

	"go.uber.org/zap"
)

// Options defines settings for Reader.
type Options struct {
	Compressor Compressor

	Logger *zap.Logger

	PersistenceOptions PersistenceOptions

	ChunkSize int
}

// PersistenceOptions defines settings for mirroring captured chunks to disk.
type PersistenceOptions struct {
	// ChunkPath is the base path to the chunk files.
	//
	// Chunks are stored by appending the chunk index to this path,
	// e.g. /var/cache/stream/object.2 for the third chunk of
	// /var/cache/stream/object.
	//
	// If ChunkPath is empty, persistence is disabled.
	ChunkPath string
}

// Compressor implements an optional interface for chunk compression.
//
// Compress and Decompress append to the dest slice and return the result.
// Compressor should verify checksums of the compressed data.
type Compressor interface {
	Compress(src, dest []byte) ([]byte, error)
	Decompress(src, dest []byte) ([]byte, error)
	DecompressedSize(src []byte) (int64, error)
}

// defaultOptions returns default initial values.
func defaultOptions() Options {
	return Options{
		ChunkSize: 2048,
		Logger:    zap.NewNop(),
	}
}

// OptionFunc allows setting Reader options.
type OptionFunc func(*Options) error

// WithChunkSize sets the capture chunk size.
func WithChunkSize(size int) OptionFunc {
	return func(opt *Options) error {
		if size <= 0 {
			return fmt.Errorf("%w: chunk size should be positive: %d", ErrInvalidConfiguration, size)
		}

		opt.ChunkSize = size

		return nil
	}
}

// WithCompression enables compressed retention: each chunk is compressed once
// finalized, and decompressed transparently on access.
func WithCompression(c Compressor) OptionFunc {
	return func(opt *Options) error {
		if c == nil {
			return fmt.Errorf("%w: compressor should be set", ErrInvalidConfiguration)
		}

		opt.Compressor = c

		return nil
	}
}

// WithPersistence enables mirroring captured chunks to disk.
//
// Chunk files are stored compressed, so WithCompression should be applied
// first.
func WithPersistence(options PersistenceOptions) OptionFunc {
	return func(opt *Options) error {
		if options.ChunkPath == "" {
			return fmt.Errorf("%w: chunk path should be set", ErrInvalidConfiguration)
		}

		if opt.Compressor == nil {
			return fmt.Errorf("%w: compressor should be set for persistence", ErrInvalidConfiguration)
		}

		opt.PersistenceOptions = options

		return nil
	}
}

// WithLogger sets logger for Reader.
func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opt *Options) error {
		opt.Logger = logger

		return nil
	}
}
