// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package streamcache

import (
	"errors"
	"fmt"

	"github.com/siderolabs/gen/optional"
)

// ErrInvalidConfiguration is returned by NewReader when the source handle or
// an option value is invalid.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// BoundsError is returned when a requested byte range is malformed or
// extends beyond the end of the source.
type BoundsError struct {
	// Length is the total stream length, if known when the error was raised.
	Length optional.Optional[int64]

	// Index and Count describe the rejected range [Index, Index+Count).
	Index int64
	Count int64
}

// Error implements the error interface.
func (e *BoundsError) Error() string {
	if length, ok := e.Length.Get(); ok {
		return fmt.Sprintf("invalid read of %d bytes at index %d: stream length is %d", e.Count, e.Index, length)
	}

	return fmt.Sprintf("invalid read of %d bytes at index %d", e.Count, e.Index)
}
