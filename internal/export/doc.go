// Package export provides the streaming CSV export engine for orders.
//
// The package turns a pre-sorted relational join (one row per order and
// attribute value, or one row per order item) into flat CSV lines while
// holding at most one order's worth of state in memory, regardless of how
// many rows the query returns.
//
// # Architecture
//
// The export runs as a single pull chain:
//
//	Source (Cursor[JoinedRow]) -> Strategy.Aggregate -> Renderer -> io.Writer
//
//   - Cursor: a lazy, single-pass, resource-backed row sequence. The storage
//     layer implements it over a database cursor; Close releases it.
//   - Strategy: a closed set of grouping algorithms (sequential pull,
//     push/flat-map, window iterator) that fold consecutive rows sharing an
//     order id into one [Record]. All of them produce identical output.
//   - Renderer: writes the header from the [Catalog] and one line per record.
//   - Exporter: loads the catalog, opens the cursor, drives the chain and
//     guarantees the cursor is closed exactly once on every exit path.
//
// # Ordering Contract
//
// Rows must arrive sorted by order id with every row of an order contiguous.
// Grouping is defined over adjacency, so the aggregators never split their
// input for parallel processing and never reorder records. Violating the
// contract is a caller error; set Options.Strict to detect it at runtime.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes by
// [MapError]:
//
//   - EXP001-EXP004: Export errors (busy, cancelled, timeout, ordering)
//   - REQ001-REQ002: Request parameter errors (dates, ranges)
//   - DB004-DB006: Database connectivity errors
//   - RATE001: Rate limiting
package export
