// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package streamcache

import (
	"cmp"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/siderolabs/gen/optional"
	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
)

// load restores previously persisted chunks as the already-captured prefix
// of the stream.
//
// Persisted chunk files must form a contiguous sequence starting at index 0;
// files beyond a gap, a malformed file or a chunk of unexpected size are
// ignored with a warning. If the restored prefix ends with a short chunk,
// the stream length is already known and the source is never read;
// otherwise the restored number of bytes is discarded from the source, so
// the capture resumes where the previous one stopped. The source must carry
// the same byte stream as the one the chunks were persisted from.
func (r *Reader) load() error {
	if r.opt.PersistenceOptions.ChunkPath == "" {
		// persistence is disabled
		return nil
	}

	chunkPaths, err := filepath.Glob(r.opt.PersistenceOptions.ChunkPath + ".*")
	if err != nil {
		return err
	}

	type parsedChunkPath struct {
		path string
		idx  int64
	}

	parsedChunkPaths := make([]parsedChunkPath, 0, len(chunkPaths))

	for _, chunkPath := range chunkPaths {
		i := strings.LastIndexByte(chunkPath, '.')
		if i == -1 {
			continue
		}

		idx, err := strconv.ParseInt(chunkPath[i+1:], 10, 64)
		if err != nil || idx < 0 {
			continue
		}

		parsedChunkPaths = append(parsedChunkPaths, parsedChunkPath{
			idx:  idx,
			path: chunkPath,
		})
	}

	// sort chunk files by index, from smallest to biggest
	slices.SortFunc(parsedChunkPaths, func(a, b parsedChunkPath) int {
		return cmp.Compare(a.idx, b.idx)
	})

	chunkSize := int64(r.opt.ChunkSize)
	chunks := make([]chunk, 0, len(parsedChunkPaths))
	finished := false

loadLoop:
	for i, chunkPath := range parsedChunkPaths {
		if chunkPath.idx != int64(i) {
			r.opt.Logger.Warn("gap in persisted chunks, ignoring the rest",
				zap.String("path", chunkPath.path),
				zap.Int64("expected_index", int64(i)),
			)

			break
		}

		if finished {
			r.opt.Logger.Warn("persisted chunk beyond a short chunk, ignoring the rest", zap.String("path", chunkPath.path))

			break
		}

		data, err := os.ReadFile(chunkPath.path)
		if err != nil {
			r.opt.Logger.Warn("failed to read persisted chunk, ignoring the rest", zap.String("path", chunkPath.path), zap.Error(err))

			break
		}

		size, err := r.opt.Compressor.DecompressedSize(data)

		switch {
		case err != nil:
			r.opt.Logger.Warn("failed to get size of persisted chunk, ignoring the rest", zap.String("path", chunkPath.path), zap.Error(err))

			break loadLoop
		case size <= 0 || size > chunkSize:
			r.opt.Logger.Warn("persisted chunk has unexpected size, ignoring the rest",
				zap.String("path", chunkPath.path),
				zap.Int64("size", size),
			)

			break loadLoop
		case size < chunkSize:
			// a short chunk can only be the final one
			finished = true
		}

		chunks = append(chunks, chunk{
			payload: data,
			size:    size,
		})
	}

	if len(chunks) == 0 {
		return nil
	}

	r.chunks = chunks

	restored := r.CapturedBytes()

	if finished {
		r.length = optional.Some(restored)
	} else if _, err := io.CopyN(io.Discard, r.src, restored); err != nil {
		return fmt.Errorf("source is shorter than the %d persisted bytes: %w", restored, err)
	}

	r.opt.Logger.Debug("restored persisted chunks",
		zap.Int("num_chunks", len(chunks)),
		zap.Int64("restored_bytes", restored),
		zap.Bool("finished", finished),
		zap.Strings("chunk_paths", xslices.Map(parsedChunkPaths[:len(chunks)], func(c parsedChunkPath) string {
			return c.path
		})),
	)

	return nil
}

// persistChunk mirrors a finalized chunk to disk.
//
// Mirroring is best-effort: a failed write is logged and capture proceeds.
func (r *Reader) persistChunk(idx int) {
	if r.opt.PersistenceOptions.ChunkPath == "" {
		return
	}

	chunkPath := r.chunkPath(int64(idx))

	if err := atomicWriteFile(chunkPath, r.chunks[idx].payload, 0o644); err != nil {
		r.opt.Logger.Error("failed to persist chunk", zap.String("path", chunkPath), zap.Error(err))

		return
	}

	r.opt.Logger.Debug("persisted chunk", zap.String("path", chunkPath))
}

func (r *Reader) chunkPath(idx int64) string {
	return r.opt.PersistenceOptions.ChunkPath + "." + strconv.FormatInt(idx, 10)
}

func atomicWriteFile(path string, data []byte, mode fs.FileMode) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck

		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
