package store

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// rowCursor adapts pgx.Rows to export.Cursor. The underlying connection is
// held until Close.
type rowCursor[T any] struct {
	rows   pgx.Rows
	scan   func(pgx.Rows) (T, error)
	row    T
	err    error
	closed bool
}

func newRowCursor[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) *rowCursor[T] {
	return &rowCursor[T]{rows: rows, scan: scan}
}

func (c *rowCursor[T]) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.rows.Next() {
		return false
	}
	row, err := c.scan(c.rows)
	if err != nil {
		c.err = fmt.Errorf("scan row: %w", err)
		return false
	}
	c.row = row
	return true
}

func (c *rowCursor[T]) Row() T {
	return c.row
}

func (c *rowCursor[T]) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

// Close releases the connection. Calling it again is a no-op.
func (c *rowCursor[T]) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.rows.Close()
}
