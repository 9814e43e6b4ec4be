package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// BaseColumns are the fixed leading columns of the attribute export.
var BaseColumns = []string{"order_id", "customer_id", "customer_name", "customer_email", "order_date"}

// ItemColumns are the columns of the plain order x item export.
var ItemColumns = []string{
	"order_id", "order_date", "total_amount",
	"customer_id", "customer_name", "customer_email",
	"order_item_id", "product_name", "quantity", "unit_price",
}

// Renderer writes export rows as CSV with encoding/csv. Fields containing
// the delimiter, a quote or a line break are quoted and inner quotes are
// doubled. Fields starting with a space and the field \. are quoted too;
// both forms are still valid RFC 4180.
type Renderer struct {
	w   *csv.Writer
	ids []int64
	buf []string
}

// NewRenderer returns a renderer writing to w with the given line ending.
func NewRenderer(w io.Writer, le LineEnding) *Renderer {
	cw := csv.NewWriter(w)
	cw.UseCRLF = le == LineEndingCRLF
	return &Renderer{w: cw}
}

// WriteHeader writes the base columns followed by every catalog label, and
// fixes the column order for subsequent records. Labels that no order
// references still get a column.
func (r *Renderer) WriteHeader(catalog Catalog) error {
	r.ids = catalog.IDs()
	r.buf = make([]string, len(BaseColumns)+len(r.ids))

	header := append(append(make([]string, 0, len(r.buf)), BaseColumns...), catalog.Labels()...)
	return r.w.Write(header)
}

// WriteRecord writes one order line with the same column count as the
// header. Definitions without a value render as empty strings.
func (r *Renderer) WriteRecord(rec Record) error {
	if r.buf == nil {
		r.buf = make([]string, len(BaseColumns))
	}
	r.buf[0] = strconv.FormatInt(rec.OrderID, 10)
	r.buf[1] = strconv.FormatInt(rec.CustomerID, 10)
	r.buf[2] = rec.CustomerName
	r.buf[3] = rec.CustomerEmail
	r.buf[4] = FormatLocalDateTime(rec.OrderDate)

	for i, id := range r.ids {
		r.buf[len(BaseColumns)+i] = rec.Values[id]
	}
	return r.w.Write(r.buf)
}

// WriteItemHeader writes the header of the plain item export.
func (r *Renderer) WriteItemHeader() error {
	r.buf = make([]string, len(ItemColumns))
	return r.w.Write(ItemColumns)
}

// WriteItem writes one order item line.
func (r *Renderer) WriteItem(row ItemRow) error {
	if len(r.buf) != len(ItemColumns) {
		r.buf = make([]string, len(ItemColumns))
	}
	r.buf[0] = strconv.FormatInt(row.OrderID, 10)
	r.buf[1] = FormatLocalDateTime(row.OrderDate)
	r.buf[2] = FormatNumeric(row.TotalAmount)
	r.buf[3] = strconv.FormatInt(row.CustomerID, 10)
	r.buf[4] = row.CustomerName
	r.buf[5] = row.CustomerEmail
	r.buf[6] = strconv.FormatInt(row.OrderItemID, 10)
	r.buf[7] = row.ProductName
	r.buf[8] = strconv.FormatInt(int64(row.Quantity), 10)
	r.buf[9] = FormatNumeric(row.UnitPrice)
	return r.w.Write(r.buf)
}

// Flush writes buffered lines to the underlying writer.
func (r *Renderer) Flush() error {
	r.w.Flush()
	return r.w.Error()
}

// FormatLocalDateTime renders t's wall clock as an ISO-8601 local date-time.
// Seconds are omitted when both seconds and fraction are zero, and the
// fraction is printed in groups of three digits:
//
//	2024-02-01T10:00
//	2024-02-01T10:00:05
//	2024-02-01T10:00:05.250
func FormatLocalDateTime(t time.Time) string {
	s := t.Format("2006-01-02T15:04")
	sec, ns := t.Second(), t.Nanosecond()
	if sec == 0 && ns == 0 {
		return s
	}

	s += fmt.Sprintf(":%02d", sec)
	switch {
	case ns == 0:
	case ns%1_000_000 == 0:
		s += fmt.Sprintf(".%03d", ns/1_000_000)
	case ns%1_000 == 0:
		s += fmt.Sprintf(".%06d", ns/1_000)
	default:
		s += fmt.Sprintf(".%09d", ns)
	}
	return s
}

// FormatNumeric renders a numeric column in plain decimal notation, keeping
// the column scale (1000.00 stays 1000.00). Invalid values render empty.
func FormatNumeric(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	if n.NaN {
		return "NaN"
	}
	if n.InfinityModifier == pgtype.Infinity {
		return "Infinity"
	}
	if n.InfinityModifier == pgtype.NegativeInfinity {
		return "-Infinity"
	}
	if n.Int == nil || (n.Int.Sign() == 0 && n.Exp >= 0) {
		return "0"
	}

	digits := new(big.Int).Abs(n.Int).String()
	sign := ""
	if n.Int.Sign() < 0 {
		sign = "-"
	}

	if n.Exp >= 0 {
		return sign + digits + strings.Repeat("0", int(n.Exp))
	}

	scale := int(-n.Exp)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	point := len(digits) - scale
	return sign + digits[:point] + "." + digits[point:]
}
