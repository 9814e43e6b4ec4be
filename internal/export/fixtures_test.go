package export

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// order builds the joined rows of one order. Each attr is a definition id
// and a value; a nil value is a left-joined row without a value.
type attr struct {
	def   int64
	value *string
}

func str(s string) *string { return &s }

func order(id int64, date time.Time, attrs ...attr) []JoinedRow {
	base := JoinedRow{
		OrderID:       id,
		CustomerID:    id % 7,
		CustomerName:  fmt.Sprintf("Customer %d", id%7),
		CustomerEmail: fmt.Sprintf("c%d@example.com", id%7),
		OrderDate:     date,
	}
	if len(attrs) == 0 {
		return []JoinedRow{base}
	}

	rows := make([]JoinedRow, 0, len(attrs))
	for _, a := range attrs {
		row := base
		row.DefinitionID = pgtype.Int8{Int64: a.def, Valid: true}
		row.DefinitionLabel = pgtype.Text{String: fmt.Sprintf("def-%d", a.def), Valid: true}
		if a.value != nil {
			row.Value = pgtype.Text{String: *a.value, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// boundaryRows is the two-order scenario with Japanese labels and one null
// value on the last row.
func boundaryRows() ([]JoinedRow, Catalog) {
	catalog := Catalog{{ID: 1, Label: "ギフト包装"}, {ID: 2, Label: "配送指示"}}

	first := JoinedRow{
		OrderID: 10, CustomerID: 1, CustomerName: "Customer 1", CustomerEmail: "c1@example.com",
		OrderDate: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	second := JoinedRow{
		OrderID: 11, CustomerID: 2, CustomerName: "Customer 2", CustomerEmail: "c2@example.com",
		OrderDate: time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC),
	}

	with := func(r JoinedRow, def int64, label string, value *string) JoinedRow {
		r.DefinitionID = pgtype.Int8{Int64: def, Valid: true}
		r.DefinitionLabel = pgtype.Text{String: label, Valid: true}
		if value != nil {
			r.Value = pgtype.Text{String: *value, Valid: true}
		}
		return r
	}

	rows := []JoinedRow{
		with(first, 1, "ギフト包装", str("あり")),
		with(first, 2, "配送指示", str("置き配希望")),
		with(second, 1, "ギフト包装", str("なし")),
		with(second, 2, "配送指示", nil),
	}
	return rows, catalog
}

// randomRows generates a sorted dataset with sparse, null and free-text
// values drawn from a fixed seed.
func randomRows(seed uint64, orders int) ([]JoinedRow, Catalog) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	catalog := Catalog{
		{ID: 1, Label: "gift"},
		{ID: 2, Label: "note, free text"},
		{ID: 3, Label: `say "hi"`},
		{ID: 4, Label: "unused"},
		{ID: 5, Label: "multi\nline"},
	}
	values := []string{"yes", "", "a,b", `quoted "x"`, "line\nbreak", "置き配"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var rows []JoinedRow
	id := int64(100)
	for i := 0; i < orders; i++ {
		id += int64(rng.IntN(3) + 1)
		date := start.Add(time.Duration(rng.IntN(90*24*60)) * time.Minute)

		var attrs []attr
		for _, def := range []int64{1, 2, 3, 5} {
			switch rng.IntN(4) {
			case 0:
				// no row for this definition
			case 1:
				attrs = append(attrs, attr{def: def})
			default:
				attrs = append(attrs, attr{def: def, value: str(values[rng.IntN(len(values))])})
			}
		}
		rows = append(rows, order(id, date, attrs...)...)
	}
	return rows, catalog
}

// fakeSource serves fixed rows and records how its cursors are used.
type fakeSource struct {
	catalog    Catalog
	catalogErr error
	rows       []JoinedRow
	rowsErr    error
	openErr    error
	items      []ItemRow

	// wrap lets a test interpose on the cursor before it is returned.
	wrap func(Cursor[JoinedRow]) Cursor[JoinedRow]

	opened     *SliceCursor[JoinedRow]
	openedItem *SliceCursor[ItemRow]
	from, to   *time.Time
}

func (s *fakeSource) LoadCatalog(context.Context) (Catalog, error) {
	return s.catalog, s.catalogErr
}

func (s *fakeSource) OpenAttributeRows(_ context.Context, from, to *time.Time) (Cursor[JoinedRow], error) {
	s.from, s.to = from, to
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened = NewSliceCursor(s.rows, s.rowsErr)
	if s.wrap != nil {
		return s.wrap(s.opened), nil
	}
	return s.opened, nil
}

func (s *fakeSource) OpenItemRows(_ context.Context, from, to *time.Time) (Cursor[ItemRow], error) {
	s.from, s.to = from, to
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.openedItem = NewSliceCursor(s.items, s.rowsErr)
	return s.openedItem, nil
}

var errSinkClosed = errors.New("sink closed")

// failingWriter accepts a fixed number of Write calls and then fails.
type failingWriter struct {
	allow  int
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.allow {
		return 0, errSinkClosed
	}
	return len(p), nil
}

// hookCursor runs onNext before every Next call of the wrapped cursor.
type hookCursor struct {
	Cursor[JoinedRow]
	onNext func(n int)
	n      int
}

func (c *hookCursor) Next() bool {
	c.n++
	c.onNext(c.n)
	return c.Cursor.Next()
}
