//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package staticmap

import (
	"errors"
)

var (
	// ErrBadBlob is returned when a sidecar blob has an impossible
	// length for its declared shape (e.g. a u32 array whose byte
	// length is not a multiple of 4).
	ErrBadBlob = errors.New("malformed sidecar blob")
)
