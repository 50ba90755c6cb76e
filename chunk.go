// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package streamcache

type chunk struct {
	// captured data; compressed when the reader has a compressor
	payload []byte
	// number of source bytes in the chunk; equals the configured chunk size
	// for every chunk but possibly the last one
	size int64
}
