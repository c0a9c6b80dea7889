package filter

import (
	"fmt"
	"strings"

	"statbridge/datatable"
)

// Filter decides whether a row is kept.
type Filter interface {
	// Evaluate reports whether row passes. columnNames is aligned with row.
	Evaluate(row []datatable.Value, columnNames []string) (bool, error)

	// Description returns a human readable form of the filter.
	Description() string
}

// LogicOp represents a logical operator for combining filters.
type LogicOp int

const (
	// LogicAND requires all filters to pass.
	LogicAND LogicOp = iota
	// LogicOR requires at least one filter to pass.
	LogicOR
)

// String returns the string representation of a LogicOp.
func (op LogicOp) String() string {
	switch op {
	case LogicAND:
		return "AND"
	case LogicOR:
		return "OR"
	default:
		return fmt.Sprintf("unknown(%d)", op)
	}
}

// CompositeFilter joins several filters under one LogicOp.
type CompositeFilter struct {
	Filters []Filter
	Logic   LogicOp
}

// Combine joins filters under logic. A single filter is returned as is and
// no filters yield nil, which keeps every row.
func Combine(logic LogicOp, filters ...Filter) Filter {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	}
	return &CompositeFilter{Filters: filters, Logic: logic}
}

// Evaluate implements Filter. AND stops at the first rejecting filter, OR
// at the first accepting one.
func (f *CompositeFilter) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	if len(f.Filters) == 0 {
		return true, nil
	}
	if f.Logic != LogicAND && f.Logic != LogicOR {
		return false, fmt.Errorf("%w: unknown logic operator %d", datatable.ErrInvalidFilter, f.Logic)
	}

	decisive := f.Logic == LogicOR
	for _, sub := range f.Filters {
		ok, err := sub.Evaluate(row, columnNames)
		if err != nil {
			return false, err
		}
		if ok == decisive {
			return decisive, nil
		}
	}
	return !decisive, nil
}

// Description implements Filter.
func (f *CompositeFilter) Description() string {
	if len(f.Filters) == 0 {
		return "empty filter"
	}
	parts := make([]string, 0, len(f.Filters))
	for _, sub := range f.Filters {
		parts = append(parts, sub.Description())
	}
	return "(" + strings.Join(parts, " "+f.Logic.String()+" ") + ")"
}

// Apply returns the indices of the rows of source that pass f. A nil
// filter keeps every row.
func Apply(source datatable.DataSource, f Filter) ([]int, error) {
	if source == nil {
		return nil, nil
	}

	names := make([]string, source.ColumnCount())
	for i := range names {
		name, err := source.ColumnName(i)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}

	rows := make([]int, 0, source.RowCount())
	for r := 0; r < source.RowCount(); r++ {
		if f == nil {
			rows = append(rows, r)
			continue
		}
		row, err := source.Row(r)
		if err != nil {
			return nil, err
		}
		ok, err := f.Evaluate(row, names)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return rows, nil
}
