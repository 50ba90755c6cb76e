// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package streamcache provides random access over a forward-only byte stream.
package streamcache

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/siderolabs/gen/optional"
	"go.uber.org/zap"
)

// Reader captures a forward-only byte source into fixed-size chunks on demand
// and answers byte and range queries at arbitrary offsets against the
// captured chunks.
//
// Chunks are captured in strictly increasing offset order, are never
// re-read, and are retained for the lifetime of the Reader. The total
// length of the source is discovered only once the source is exhausted.
//
// Reader owns the accumulated chunks, but not the source: opening and
// closing the source is the caller's responsibility.
//
// Reader is not safe for concurrent use; callers must serialize access.
type Reader struct {
	src io.Reader

	// captured chunks, ordered from the smallest offset to the largest
	chunks []chunk

	// total stream length, present once the source is exhausted
	length optional.Optional[int64]

	// most recently decompressed chunk, re-used as a decompression buffer
	// (only when compression is enabled)
	decompressed    []byte
	decompressedIdx int64

	// reader options
	opt Options
}

// NewReader creates a Reader over the source with the specified options.
func NewReader(src io.Reader, opts ...OptionFunc) (*Reader, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidConfiguration)
	}

	r := &Reader{
		src:             src,
		opt:             defaultOptions(),
		decompressedIdx: -1,
	}

	for _, o := range opts {
		if err := o(&r.opt); err != nil {
			return nil, err
		}
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// Length returns the total number of bytes the source produces.
//
// The length is only discoverable by exhausting the source, so the first call
// captures the entire remaining source content into memory. Once known, the
// length is fixed for the lifetime of the Reader.
func (r *Reader) Length() (int64, error) {
	if _, err := r.ensure(0, math.MaxInt64); err != nil {
		return 0, err
	}

	return r.length.ValueOrZero(), nil
}

// ByteAt returns the byte at the given index.
//
// The range must have been validated beforehand via ValidateRange or
// IsValidRange: ByteAt performs no bounds checks of its own, and panics on an
// index outside the captured range. The error return only concerns chunk
// payload retrieval when compression is enabled.
func (r *Reader) ByteAt(index int64) (byte, error) {
	chunkSize := int64(r.opt.ChunkSize)

	data, err := r.chunkData(index / chunkSize)
	if err != nil {
		return 0, err
	}

	return data[index%chunkSize], nil
}

// BytesAt returns a freshly allocated copy of the bytes in the range
// [index, index+count).
//
// The range is validated first; a range which is invalid or extends beyond
// the end of the source fails with *BoundsError. A zero count yields an
// empty slice.
func (r *Reader) BytesAt(index, count int64) ([]byte, error) {
	if err := r.ValidateRange(index, count); err != nil {
		return nil, err
	}

	chunkSize := int64(r.opt.ChunkSize)
	result := make([]byte, count)

	for n := int64(0); n < count; {
		off := index + n

		data, err := r.chunkData(off / chunkSize)
		if err != nil {
			return nil, err
		}

		// copy the longest contiguous run available within the chunk
		n += int64(copy(result[n:], data[off%chunkSize:]))
	}

	return result, nil
}

// ValidateRange verifies that the range [index, index+count) is fully
// available, capturing further chunks from the source as required.
//
// It returns *BoundsError if the range is invalid or extends beyond the end
// of the source; source read failures are returned as is.
func (r *Reader) ValidateRange(index, count int64) error {
	ok, err := r.ensure(index, count)
	if err != nil {
		return err
	}

	if !ok {
		return &BoundsError{
			Index:  index,
			Count:  count,
			Length: r.length,
		}
	}

	return nil
}

// IsValidRange reports whether the range [index, index+count) is fully
// available, capturing further chunks from the source as required.
//
// Unlike ValidateRange, an unavailable range is not an error; the error
// return only concerns source read failures.
func (r *Reader) IsValidRange(index, count int64) (bool, error) {
	return r.ensure(index, count)
}

// NumChunks returns the number of chunks captured so far.
func (r *Reader) NumChunks() int {
	return len(r.chunks)
}

// CapturedBytes returns the number of source bytes captured so far.
func (r *Reader) CapturedBytes() int64 {
	if len(r.chunks) == 0 {
		return 0
	}

	return int64(len(r.chunks)-1)*int64(r.opt.ChunkSize) + r.chunks[len(r.chunks)-1].size
}

// KnownLength returns the total stream length, if the source has already
// been exhausted.
//
// Unlike Length, it never reads from the source.
func (r *Reader) KnownLength() optional.Optional[int64] {
	return r.length
}

// ensure captures chunks until the range [index, index+count) is covered,
// and reports whether it is fully available.
func (r *Reader) ensure(index, count int64) (bool, error) {
	if index < 0 || count < 0 {
		return false, nil
	}

	if count > 0 && index > math.MaxInt64-count {
		// index+count-1 would overflow
		return false, nil
	}

	end := index + count - 1

	if length, ok := r.length.Get(); ok {
		return end < length, nil
	}

	lastChunk := end / int64(r.opt.ChunkSize)

	for int64(len(r.chunks)) <= lastChunk {
		more, err := r.captureChunk()
		if err != nil {
			return false, err
		}

		if !more {
			return end < r.length.ValueOrZero(), nil
		}
	}

	return true, nil
}

// captureChunk pulls the next chunk from the source. It returns false once
// the source is exhausted, at which point the stream length is fixed.
func (r *Reader) captureChunk() (bool, error) {
	buf := make([]byte, r.opt.ChunkSize)

	n, err := io.ReadFull(r.src, buf)

	switch {
	case err == nil:
		if err = r.appendChunk(buf); err != nil {
			return false, err
		}

		return true, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		length := int64(len(r.chunks))*int64(r.opt.ChunkSize) + int64(n)

		if n > 0 {
			if err = r.appendChunk(buf[:n]); err != nil {
				return false, err
			}
		}

		r.length = optional.Some(length)

		r.opt.Logger.Debug("source exhausted",
			zap.Int64("length", length),
			zap.Int("num_chunks", len(r.chunks)),
		)

		return false, nil
	default:
		return false, err
	}
}

// appendChunk finalizes the chunk, compressing and mirroring it to disk if
// configured.
func (r *Reader) appendChunk(data []byte) error {
	c := chunk{
		payload: data,
		size:    int64(len(data)),
	}

	if r.opt.Compressor != nil {
		compressed, err := r.opt.Compressor.Compress(data, nil)
		if err != nil {
			return fmt.Errorf("failed to compress chunk %d: %w", len(r.chunks), err)
		}

		c.payload = compressed
	}

	r.chunks = append(r.chunks, c)

	r.opt.Logger.Debug("captured chunk",
		zap.Int("index", len(r.chunks)-1),
		zap.Int64("size", c.size),
	)

	r.persistChunk(len(r.chunks) - 1)

	return nil
}

// chunkData returns the raw payload of the chunk, decompressing it when
// compression is enabled.
func (r *Reader) chunkData(idx int64) ([]byte, error) {
	c := r.chunks[idx]

	if r.opt.Compressor == nil {
		return c.payload, nil
	}

	if idx == r.decompressedIdx {
		return r.decompressed, nil
	}

	decompressed, err := r.opt.Compressor.Decompress(c.payload, r.decompressed[:0])
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk %d: %w", idx, err)
	}

	r.decompressed = decompressed
	r.decompressedIdx = idx

	return decompressed, nil
}
