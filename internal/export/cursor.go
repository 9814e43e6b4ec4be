package export

import (
	"errors"
	"fmt"
)

// Cursor is a lazy, pull-driven, single-pass row sequence backed by an
// external resource such as a database cursor.
//
// Next advances to the next row and reports whether one is available; it
// returns false on exhaustion or failure, after which Err reports the
// failure. Close releases the underlying resource and must be safe to call
// more than once.
type Cursor[T any] interface {
	Next() bool
	Row() T
	Err() error
	Close()
}

// ErrRowsOutOfOrder is returned by a strict cursor when the source delivers
// an order id lower than one it has already moved past.
var ErrRowsOutOfOrder = errors.New("rows out of order")

// SliceCursor serves rows from memory. It is used by tests and by callers
// that already hold a small result.
type SliceCursor[T any] struct {
	rows   []T
	pos    int
	err    error
	closed int
}

// NewSliceCursor returns a cursor over rows. If err is non-nil it is reported
// by Err once the rows are exhausted, simulating a fetch failure mid-stream.
func NewSliceCursor[T any](rows []T, err error) *SliceCursor[T] {
	return &SliceCursor[T]{rows: rows, pos: -1, err: err}
}

func (c *SliceCursor[T]) Next() bool {
	if c.closed > 0 || c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor[T]) Row() T {
	return c.rows[c.pos]
}

func (c *SliceCursor[T]) Err() error {
	if c.pos >= len(c.rows) {
		return c.err
	}
	return nil
}

func (c *SliceCursor[T]) Close() {
	c.closed++
}

// CloseCount reports how many times Close was called.
func (c *SliceCursor[T]) CloseCount() int {
	return c.closed
}

// orderedCursor checks the ordering contract as rows pass through.
type orderedCursor struct {
	Cursor[JoinedRow]
	last    int64
	started bool
	err     error
}

// strictRows wraps a cursor so that a decreasing order id stops iteration
// with ErrRowsOutOfOrder.
func strictRows(c Cursor[JoinedRow]) Cursor[JoinedRow] {
	return &orderedCursor{Cursor: c}
}

func (c *orderedCursor) Next() bool {
	if c.err != nil || !c.Cursor.Next() {
		return false
	}
	id := c.Cursor.Row().OrderID
	if c.started && id < c.last {
		c.err = fmt.Errorf("%w: order %d after order %d", ErrRowsOutOfOrder, id, c.last)
		return false
	}
	c.last, c.started = id, true
	return true
}

func (c *orderedCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.Cursor.Err()
}
