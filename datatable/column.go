// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datatable

import (
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Column is one imported variable. Its values are display strings, one per
// dataset row. A Column is never modified once a DataSet hands it out: the
// DataSet replaces it with an updated copy instead, so a *Column can be
// read without locking.
type Column struct {
	name           string
	kind           Kind
	classification Classification
	values         []string
	missing        []bool
	levels         []string
	policy         Policy
}

// newColumn builds a column from formatted values. missing may be shorter
// than values or nil; absent entries count as present.
func newColumn(name string, kind Kind, values []string, missing []bool) *Column {
	c := &Column{
		name:    name,
		kind:    kind,
		values:  append([]string(nil), values...),
		missing: make([]bool, len(values)),
	}
	copy(c.missing, missing)
	return c
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the source element kind the column was built from.
func (c *Column) Kind() Kind { return c.kind }

// Classification returns the assigned measurement scale.
func (c *Column) Classification() Classification { return c.classification }

// Len returns the number of rows held by the column.
func (c *Column) Len() int { return len(c.values) }

// Value returns the display string at row, or "" when row is out of range.
func (c *Column) Value(row int) string {
	if row < 0 || row >= len(c.values) {
		return ""
	}
	return c.values[row]
}

// IsMissing reports whether row holds a true missing element. Genuine empty
// text is not missing.
func (c *Column) IsMissing(row int) bool {
	if row < 0 || row >= len(c.missing) {
		return true
	}
	return c.missing[row]
}

// Values returns a copy of the display strings.
func (c *Column) Values() []string {
	return append([]string(nil), c.values...)
}

// Levels returns a copy of the distinct non-missing values in level order.
func (c *Column) Levels() []string {
	return append([]string(nil), c.levels...)
}

// Doubles returns the numeric reading of every row; rows that are missing
// or not numeric become NaN.
func (c *Column) Doubles() []float64 {
	out := make([]float64, len(c.values))
	for i, v := range c.values {
		if f, ok := parseNumber(v); ok && !c.missing[i] {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// NumericCount returns the number of rows holding a numeric value.
func (c *Column) NumericCount() int {
	n := 0
	for i, v := range c.values {
		if c.missing[i] {
			continue
		}
		if _, ok := parseNumber(v); ok {
			n++
		}
	}
	return n
}

// clone returns a deep copy the DataSet may modify before publishing it.
func (c *Column) clone() *Column {
	cp := *c
	cp.values = append([]string(nil), c.values...)
	cp.missing = append([]bool(nil), c.missing...)
	cp.levels = append([]string(nil), c.levels...)
	return &cp
}

// pad extends the column with missing entries up to rows.
func (c *Column) pad(rows int) {
	for len(c.values) < rows {
		c.values = append(c.values, "")
		c.missing = append(c.missing, true)
	}
}

// setCell replaces one cell without reclassifying.
func (c *Column) setCell(row int, value string) bool {
	if row < 0 || row >= len(c.values) {
		return false
	}
	c.values[row] = value
	c.missing[row] = false
	return true
}

// classify recomputes levels and the classification under p.
func (c *Column) classify(p Policy) {
	c.policy = p
	c.levels = c.distinct(p.OrderLabelsByValue)

	n := len(c.levels)
	switch {
	case c.kind == KindUnsupported || n == 0:
		c.classification = Unknown
	case c.kind == KindBoolean:
		c.classification = Nominal
	case c.kind == KindText && (p.TextAlwaysNominal || !allNumeric(c.levels)):
		c.classification = Nominal
	case p.fits(n):
		c.classification = Ordinal
	default:
		c.classification = Continuous
	}
}

// distinct collects the distinct non-missing, non-empty values.
func (c *Column) distinct(byValue bool) []string {
	seen := make(map[string]struct{})
	levels := make([]string, 0)
	for i, v := range c.values {
		if c.missing[i] || v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		levels = append(levels, v)
	}

	if byValue {
		sortLevels(levels)
	}
	return levels
}

// sortLevels orders levels by underlying value: numbers first in numeric
// order, then text in collation order.
func sortLevels(levels []string) {
	col := collate.New(language.Und)
	sort.SliceStable(levels, func(i, j int) bool {
		a, aNum := parseNumber(levels[i])
		b, bNum := parseNumber(levels[j])
		switch {
		case aNum && bNum:
			if math.IsNaN(a) || math.IsNaN(b) {
				return !math.IsNaN(a) && math.IsNaN(b)
			}
			return a < b
		case aNum != bNum:
			return aNum
		default:
			return col.CompareString(levels[i], levels[j]) < 0
		}
	})
}

func allNumeric(levels []string) bool {
	for _, l := range levels {
		if _, ok := parseNumber(l); !ok {
			return false
		}
	}
	return true
}

// parseNumber reads a display string produced by the formatter back into a
// float, including the infinity markers.
func parseNumber(s string) (float64, bool) {
	switch s {
	case "":
		return 0, false
	case "∞":
		return math.Inf(1), true
	case "-∞":
		return math.Inf(-1), true
	case "NaN":
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
