package store

import (
	"fmt"
	"strings"
)

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// add appends "column op $n" with value as its argument.
func (wb *whereBuilder) add(column, op string, value any) {
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s %s $%d", column, op, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// build returns " WHERE ..." and its arguments, or "" and nil when no
// condition was added.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
