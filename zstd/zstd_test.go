// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package zstd_test

import (
	"crypto/rand"
	"io"
	"strconv"
	"testing"

	kzstd "github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-streamcache/zstd"
)

func TestCompressor(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name string

		options []kzstd.EOption

		size int
	}{
		{
			name: "empty",
		},
		{
			name: "small",

			size: 1024,
		},
		{
			name: "large",

			size: 1024 * 1024,
		},
		{
			name: "best compression",

			options: []kzstd.EOption{
				kzstd.WithEncoderLevel(kzstd.SpeedBestCompression),
			},

			size: 64 * 1024,
		},
	} {
		test := test

		t.Run(test.name+"-"+strconv.Itoa(test.size), func(t *testing.T) {
			t.Parallel()

			compressor, err := zstd.NewCompressor(test.options...)
			require.NoError(t, err)

			data, err := io.ReadAll(io.LimitReader(rand.Reader, int64(test.size)))
			require.NoError(t, err)

			compressed, err := compressor.Compress(data, nil)
			require.NoError(t, err)

			decompressed, err := compressor.Decompress(compressed, nil)
			require.NoError(t, err)

			if len(data) == 0 {
				data = nil
			}

			require.Equal(t, data, decompressed)

			decompressedSize, err := compressor.DecompressedSize(compressed)
			require.NoError(t, err)

			require.Equal(t, int64(len(data)), decompressedSize)
		})
	}
}
