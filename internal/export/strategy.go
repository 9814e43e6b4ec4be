package export

import (
	"iter"
	"slices"
	"strings"
)

// Strategy selects the algorithm used to fold joined rows into records.
// The set is closed: every value implements the same grouping contract and
// produces byte-identical CSV for the same input.
type Strategy int

const (
	// StrategySequence pulls rows in a loop and yields a record whenever the
	// order id changes.
	StrategySequence Strategy = iota

	// StrategyStream pushes rows into a stateful group sink that emits
	// completed records downstream as order boundaries are crossed.
	StrategyStream

	// StrategyWindow answers one complete record per Next call, keeping the
	// first row of the following order as its only lookahead.
	StrategyWindow
)

// DefaultStrategy is used when no strategy is configured.
const DefaultStrategy = StrategySequence

// strategyNames maps accepted names (lower case) to strategies. The hyphenated
// aliases are the names older clients send.
var strategyNames = map[string]Strategy{
	"sequence":           StrategySequence,
	"sequence-window":    StrategySequence,
	"join":               StrategySequence,
	"stream":             StrategyStream,
	"stream-window":      StrategyStream,
	"stream-flatmap":     StrategyStream,
	"stream-mapmulti":    StrategyStream,
	"multiset":           StrategyStream,
	"window":             StrategyWindow,
	"spliterator":        StrategyWindow,
	"spliterator-window": StrategyWindow,
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{StrategySequence, StrategyStream, StrategyWindow}
}

// String returns the canonical name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyStream:
		return "stream"
	case StrategyWindow:
		return "window"
	default:
		return "sequence"
	}
}

// Aliases returns every accepted name for the strategy, sorted.
func (s Strategy) Aliases() []string {
	var names []string
	for name, st := range strategyNames {
		if st == s {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// LookupStrategy resolves a case-insensitive strategy name.
func LookupStrategy(name string) (Strategy, bool) {
	s, ok := strategyNames[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// ParseStrategy resolves name, returning fallback for empty or unknown names.
// It never fails.
func ParseStrategy(name string, fallback Strategy) Strategy {
	if s, ok := LookupStrategy(name); ok {
		return s
	}
	return fallback
}

// Aggregate groups consecutive rows sharing an order id into records.
//
// The returned sequence is lazy and single-pass: rows are pulled only as
// records are consumed, and at most one order's values plus one lookahead
// row are held at a time. A non-nil error is yielded at most once, as the
// last element. The caller owns rows and must close it.
func (s Strategy) Aggregate(rows Cursor[JoinedRow]) iter.Seq2[Record, error] {
	switch s {
	case StrategyStream:
		return streamGroups(rows)
	case StrategyWindow:
		return windowGroups(rows)
	default:
		return sequenceGroups(rows)
	}
}
