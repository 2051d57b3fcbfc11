//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package mapfile

import (
	"errors"
	"fmt"
)

func errShortWrite(n int) error {
	return fmt.Errorf("mapfile: incomplete write; saw %d", n)
}

var (
	// ErrFrozen is returned when attempting to add new records to an
	// already frozen map file. It is also returned when trying to
	// freeze one twice.
	ErrFrozen = errors.New("map file already frozen")

	// ErrExists is returned if a duplicate key is added.
	ErrExists = errors.New("key exists in map file")

	// ErrKeyTooLarge is returned if a key is larger than 2^32-1 bytes.
	ErrKeyTooLarge = errors.New("key is larger than 2^32-1 bytes")

	// ErrValueTooLarge is returned if a value is larger than 2^32-1 bytes.
	ErrValueTooLarge = errors.New("value is larger than 2^32-1 bytes")

	// ErrNoKey is returned when a key cannot be found.
	ErrNoKey = errors.New("no such key")
)
