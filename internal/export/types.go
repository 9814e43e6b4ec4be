package export

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// JoinedRow is one row of the order x attribute-value join.
// DefinitionID, DefinitionLabel and Value are invalid when the order has no
// attribute value (left-join emptiness). An invalid Value is never the same
// thing as an empty string.
type JoinedRow struct {
	OrderID       int64
	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	OrderDate     time.Time

	DefinitionID    pgtype.Int8
	DefinitionLabel pgtype.Text
	Value           pgtype.Text
}

// hasValue reports whether the row carries an attribute value.
func (r JoinedRow) hasValue() bool {
	return r.DefinitionID.Valid && r.Value.Valid
}

// Record is one order's exported row: the order fields plus the attribute
// values observed for it, keyed by definition id. Values is sparse; missing
// definitions render as empty columns.
type Record struct {
	OrderID       int64
	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	OrderDate     time.Time
	Values        map[int64]string
}

// newRecord starts a record from the first row of an order.
func newRecord(row JoinedRow) Record {
	rec := Record{
		OrderID:       row.OrderID,
		CustomerID:    row.CustomerID,
		CustomerName:  row.CustomerName,
		CustomerEmail: row.CustomerEmail,
		OrderDate:     row.OrderDate,
		Values:        make(map[int64]string),
	}
	rec.absorb(row)
	return rec
}

// absorb adds the row's attribute value, if any. A repeated definition id
// overwrites the earlier value.
func (r *Record) absorb(row JoinedRow) {
	if row.hasValue() {
		r.Values[row.DefinitionID.Int64] = row.Value.String
	}
}

// Definition is one user-defined attribute column.
type Definition struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// Catalog is the ordered set of attribute columns for one export run.
type Catalog []Definition

// Labels returns the column labels in catalog order.
func (c Catalog) Labels() []string {
	labels := make([]string, len(c))
	for i, d := range c {
		labels[i] = d.Label
	}
	return labels
}

// IDs returns the definition ids in catalog order.
func (c Catalog) IDs() []int64 {
	ids := make([]int64, len(c))
	for i, d := range c {
		ids[i] = d.ID
	}
	return ids
}

// ItemRow is one row of the order x item join used by the plain export.
type ItemRow struct {
	OrderID       int64
	OrderDate     time.Time
	TotalAmount   pgtype.Numeric
	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	OrderItemID   int64
	ProductName   string
	Quantity      int32
	UnitPrice     pgtype.Numeric
}

// Result summarizes a finished export.
type Result struct {
	RunID    string        `json:"run_id"`
	Kind     string        `json:"kind"`
	Strategy string        `json:"strategy,omitempty"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
}
