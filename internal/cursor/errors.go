// Package cursor implements bounds-checked read/write cursors over a byte
// buffer, the foundation every wire structure in internal/protocol is
// decoded from and encoded to.
package cursor

import "fmt"

// NotEnoughBytesError is returned whenever a read or write would run past
// the end of the underlying buffer. It is the only error kind a cursor
// ever returns; there is no panic path.
type NotEnoughBytesError struct {
	Received int
	Expected int
}

func (e *NotEnoughBytesError) Error() string {
	return fmt.Sprintf("not enough bytes: received %d, expected %d", e.Received, e.Expected)
}

func newNotEnoughBytes(received, expected int) error {
	return &NotEnoughBytesError{Received: received, Expected: expected}
}
