package export

// aggregate.go holds the three grouping algorithms behind Strategy.
//
// All of them rely on the same contract: rows arrive sorted by order id with
// every row of an order contiguous, so an order is complete as soon as a row
// with a different id (or the end of input) is seen. None of them buffers
// more than the current record and one lookahead row, and none of them can
// be split for parallel processing, since a split could cut an order in two.
//
// On a source error the partially accumulated order is discarded and the
// error is yielded instead, so every strategy produces the same prefix of
// complete records before failing.

import (
	"errors"
	"iter"
)

// sequenceGroups is the sequential pull: one loop over the cursor with the
// current record as accumulator.
func sequenceGroups(rows Cursor[JoinedRow]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		var (
			current Record
			open    bool
		)

		for rows.Next() {
			row := rows.Row()

			if open && row.OrderID == current.OrderID {
				current.absorb(row)
				continue
			}

			// Order boundary: flush the finished order before starting the next
			if open && !yield(current, nil) {
				return
			}
			current, open = newRecord(row), true
		}

		if err := rows.Err(); err != nil {
			yield(Record{}, err)
			return
		}

		if open {
			yield(current, nil)
		}
	}
}

// errStopped signals that the downstream consumer stopped early.
var errStopped = errors.New("consumer stopped")

// streamGroups adapts PushGroups to the pull-side sequence contract.
func streamGroups(rows Cursor[JoinedRow]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		err := PushGroups(rows, func(rec Record) error {
			if !yield(rec, nil) {
				return errStopped
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopped) {
			yield(Record{}, err)
		}
	}
}

// PushGroups pushes every row of the cursor through a group sink and calls
// emit once per completed order, in input order. It returns the first error
// from the cursor or from emit. The caller owns rows and must close it.
func PushGroups(rows Cursor[JoinedRow], emit func(Record) error) error {
	var emitErr error
	sink := &groupSink{emit: func(rec Record) bool {
		emitErr = emit(rec)
		return emitErr == nil
	}}

	for rows.Next() {
		if !sink.accept(rows.Row()) {
			return emitErr
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !sink.finish() {
		return emitErr
	}
	return nil
}

// groupSink is the flat-map stage: it receives rows one at a time and
// pushes a completed record downstream each time an order boundary is
// crossed. emit returning false stops the stage.
type groupSink struct {
	emit    func(Record) bool
	current Record
	open    bool
}

// accept folds one row into the current order, emitting the previous order
// first if the row starts a new one.
func (s *groupSink) accept(row JoinedRow) bool {
	if s.open && row.OrderID == s.current.OrderID {
		s.current.absorb(row)
		return true
	}
	if s.open && !s.emit(s.current) {
		return false
	}
	s.current, s.open = newRecord(row), true
	return true
}

// finish emits the last open order, if any.
func (s *groupSink) finish() bool {
	if !s.open {
		return true
	}
	s.open = false
	return s.emit(s.current)
}

// windowGroups drives a WindowIterator until it is exhausted.
func windowGroups(rows Cursor[JoinedRow]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		it := NewWindowIterator(rows)
		for it.Next() {
			if !yield(it.Record(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Record{}, err)
		}
	}
}

// WindowIterator yields one complete order per Next call.
//
// It is a two-state machine: either no row is pending, or the first row of
// the next order is pending because it was read while closing the previous
// one. That pending row is the only lookahead it ever holds.
//
// WindowIterator is strictly sequential. It has no split or partition
// operation: grouping is defined over adjacency, so any split of the input
// could sever an order across two partitions.
type WindowIterator struct {
	rows Cursor[JoinedRow]

	pending    JoinedRow
	hasPending bool

	record Record
	err    error
	done   bool
}

// NewWindowIterator returns an iterator over the orders in rows.
// The caller owns rows and must close it.
func NewWindowIterator(rows Cursor[JoinedRow]) *WindowIterator {
	return &WindowIterator{rows: rows}
}

// Next assembles the next complete order. It returns false when the input
// is exhausted or has failed; Err distinguishes the two.
func (it *WindowIterator) Next() bool {
	if it.done {
		return false
	}

	var first JoinedRow
	if it.hasPending {
		first, it.hasPending = it.pending, false
		it.pending = JoinedRow{}
	} else {
		if !it.rows.Next() {
			it.done = true
			it.err = it.rows.Err()
			return false
		}
		first = it.rows.Row()
	}

	rec := newRecord(first)
	for it.rows.Next() {
		row := it.rows.Row()
		if row.OrderID != rec.OrderID {
			it.pending, it.hasPending = row, true
			it.record = rec
			return true
		}
		rec.absorb(row)
	}

	it.done = true
	if err := it.rows.Err(); err != nil {
		it.err = err
		it.record = Record{}
		return false
	}
	it.record = rec
	return true
}

// Record returns the order assembled by the last successful Next.
func (it *WindowIterator) Record() Record {
	return it.record
}

// Err returns the source error that stopped iteration, if any.
func (it *WindowIterator) Err() error {
	return it.err
}
