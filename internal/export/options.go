package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// LineEnding is the record separator used for a whole export.
type LineEnding string

const (
	LineEndingLF   LineEnding = "lf"
	LineEndingCRLF LineEnding = "crlf"
)

// ParseLineEnding accepts "lf" or "crlf" (case-insensitive). Anything else
// resolves to fallback.
func ParseLineEnding(s string, fallback LineEnding) LineEnding {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lf":
		return LineEndingLF
	case "crlf":
		return LineEndingCRLF
	default:
		return fallback
	}
}

// Charset is the output encoding of an export.
type Charset string

const (
	CharsetUTF8     Charset = "utf-8"
	CharsetShiftJIS Charset = "shift_jis"
)

// ParseCharset accepts utf-8/utf8 and shift_jis/sjis (case-insensitive).
// Anything else resolves to fallback.
func ParseCharset(s string, fallback Charset) Charset {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "utf-8", "utf8":
		return CharsetUTF8
	case "shift_jis", "shift-jis", "sjis", "cp932":
		return CharsetShiftJIS
	default:
		return fallback
	}
}

// ContentType returns the HTTP content type for CSV in this charset.
func (c Charset) ContentType() string {
	if c == CharsetShiftJIS {
		return "text/csv; charset=Shift_JIS"
	}
	return "text/csv; charset=utf-8"
}

// writer wraps w so that UTF-8 text written to it is emitted in charset c.
// Runes Shift_JIS cannot represent are replaced rather than failing the
// export. Close flushes any pending encoder state; it does not close w.
func (c Charset) writer(w io.Writer) io.WriteCloser {
	if c != CharsetShiftJIS {
		return nopCloser{w}
	}
	enc := encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder())
	return transform.NewWriter(w, enc)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Options configures one export invocation. It is not modified by the
// exporter.
type Options struct {
	// From and To bound the order date, inclusive. Nil means unbounded.
	From *time.Time
	To   *time.Time

	Strategy   Strategy
	LineEnding LineEnding
	Charset    Charset

	// Strict stops the export with ErrRowsOutOfOrder if the source breaks
	// the ordering contract.
	Strict bool
}

// zonedLayouts are offset date-times RFC 3339 does not cover, such as
// 2024-02-01T10:00+09:00. They are converted to the export time zone.
var zonedLayouts = []string{
	"2006-01-02T15:04Z07:00",
}

// localLayouts are the zone-less forms accepted for date bounds. They are
// read as wall-clock time in the export time zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

const dateOnly = "2006-01-02"

// ParseDate parses one date bound. An empty value means unbounded. RFC 3339
// values are converted to loc. A bare date selects the start of the day, or
// its last instant when endOfDay is set, so that an end bound of 2024-02-01
// includes every order placed that day.
func ParseDate(value string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		t = t.In(loc)
		return &t, nil
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.In(loc)
			return &t, nil
		}
	}

	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t, nil
		}
	}

	t, err := time.ParseInLocation(dateOnly, value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", value)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return &t, nil
}
