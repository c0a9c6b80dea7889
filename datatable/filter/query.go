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

// Package filter selects dataset rows with small query expressions such as
// `age >= 18 AND group = control`.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"statbridge/datatable"
)

// CompOp is a comparison operator.
type CompOp int

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpContains
)

// Expression is a single comparison. An empty ColumnName with OpContains
// searches every column.
type Expression struct {
	ColumnName string
	Operator   CompOp
	Value      string
}

// Query is a list of expressions joined left to right by logic operators.
type Query struct {
	Expressions []Expression
	LogicOps    []LogicOp

	columnMap map[string]int
}

// Parse parses queryStr against the given column names. An empty query
// returns nil, which matches every row.
func Parse(queryStr string, columnNames []string) (*Query, error) {
	if strings.TrimSpace(queryStr) == "" {
		return nil, nil
	}

	columnMap := make(map[string]int, len(columnNames))
	for i, name := range columnNames {
		columnMap[strings.ToLower(name)] = i
	}

	query := &Query{columnMap: columnMap}

	for _, part := range splitByLogicOps(queryStr) {
		if part.isOperator {
			if strings.EqualFold(part.text, "AND") {
				query.LogicOps = append(query.LogicOps, LogicAND)
			} else {
				query.LogicOps = append(query.LogicOps, LogicOR)
			}
			continue
		}
		expr, err := parseExpression(part.text, columnMap)
		if err != nil {
			return nil, err
		}
		query.Expressions = append(query.Expressions, expr)
	}

	// N expressions need N-1 operators
	if len(query.Expressions) == 0 || len(query.LogicOps) != len(query.Expressions)-1 {
		return nil, fmt.Errorf("%w: mismatched expressions and operators", datatable.ErrInvalidFilter)
	}

	return query, nil
}

// Evaluate implements Filter.
func (q *Query) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	if q == nil || len(q.Expressions) == 0 {
		return true, nil
	}

	result := q.evaluateExpression(q.Expressions[0], row)
	for i, op := range q.LogicOps {
		next := q.evaluateExpression(q.Expressions[i+1], row)
		switch op {
		case LogicAND:
			result = result && next
		case LogicOR:
			result = result || next
		}
	}
	return result, nil
}

// Description implements Filter.
func (q *Query) Description() string {
	if q == nil || len(q.Expressions) == 0 {
		return "all rows"
	}
	var b strings.Builder
	for i, e := range q.Expressions {
		if i > 0 {
			b.WriteString(" " + q.LogicOps[i-1].String() + " ")
		}
		if e.ColumnName == "" {
			b.WriteString("~" + e.Value)
			continue
		}
		b.WriteString(e.ColumnName + " " + e.Operator.symbol() + " " + e.Value)
	}
	return b.String()
}

type queryPart struct {
	text       string
	isOperator bool
}

// splitByLogicOps splits query by AND/OR while preserving the operators
func splitByLogicOps(query string) []queryPart {
	parts := make([]queryPart, 0)
	var current strings.Builder

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			parts = append(parts, queryPart{text: text})
		}
		current.Reset()
	}

	for i := 0; i < len(query); {
		matched := false
		for _, word := range []string{"AND", "OR"} {
			end := i + len(word)
			if end > len(query) || !strings.EqualFold(query[i:end], word) {
				continue
			}
			// Only whole words count as operators
			if (i == 0 || isWhitespace(query[i-1])) && (end == len(query) || isWhitespace(query[end])) {
				flush()
				parts = append(parts, queryPart{text: word, isOperator: true})
				i = end
				matched = true
				break
			}
		}
		if !matched {
			current.WriteByte(query[i])
			i++
		}
	}
	flush()

	return parts
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

var operators = []struct {
	op     CompOp
	symbol string
}{
	// longer symbols first so >= is not read as >
	{OpGreaterEqual, ">="},
	{OpLessEqual, "<="},
	{OpNotEqual, "!="},
	{OpEqual, "="},
	{OpGreater, ">"},
	{OpLess, "<"},
	{OpContains, "~"},
}

func (op CompOp) symbol() string {
	for _, o := range operators {
		if o.op == op {
			return o.symbol
		}
	}
	return "?"
}

// parseExpression parses a single expression like "column = value"
func parseExpression(exprStr string, columnMap map[string]int) (Expression, error) {
	exprStr = strings.TrimSpace(exprStr)

	for _, opInfo := range operators {
		idx := strings.Index(exprStr, opInfo.symbol)
		if idx <= 0 {
			continue
		}
		columnName := strings.TrimSpace(exprStr[:idx])
		value := strings.Trim(strings.TrimSpace(exprStr[idx+len(opInfo.symbol):]), "\"'")

		if _, exists := columnMap[strings.ToLower(columnName)]; !exists {
			return Expression{}, fmt.Errorf("%w: unknown column %s", datatable.ErrInvalidFilter, columnName)
		}

		return Expression{ColumnName: columnName, Operator: opInfo.op, Value: value}, nil
	}

	// No operator: search all columns
	return Expression{Operator: OpContains, Value: exprStr}, nil
}

func (q *Query) evaluateExpression(expr Expression, row []datatable.Value) bool {
	if expr.ColumnName == "" {
		term := strings.ToLower(expr.Value)
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell.Formatted), term) {
				return true
			}
		}
		return false
	}

	colIdx, exists := q.columnMap[strings.ToLower(expr.ColumnName)]
	if !exists || colIdx >= len(row) {
		return false
	}
	cell := row[colIdx]

	switch expr.Operator {
	case OpEqual:
		return strings.EqualFold(cell.Formatted, expr.Value)
	case OpNotEqual:
		return !strings.EqualFold(cell.Formatted, expr.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(cell.Formatted), strings.ToLower(expr.Value))
	default:
		if cell.IsNull {
			return false
		}
		return compare(cell.Formatted, expr.Value, expr.Operator)
	}
}

// compare orders two values numerically when both parse, else as text.
func compare(cellValue, compareValue string, op CompOp) bool {
	var cmp int
	cell, err1 := strconv.ParseFloat(strings.TrimSpace(cellValue), 64)
	other, err2 := strconv.ParseFloat(strings.TrimSpace(compareValue), 64)
	switch {
	case err1 == nil && err2 == nil && cell < other:
		cmp = -1
	case err1 == nil && err2 == nil && cell > other:
		cmp = 1
	case err1 == nil && err2 == nil:
		cmp = 0
	default:
		cmp = strings.Compare(strings.ToLower(cellValue), strings.ToLower(compareValue))
	}

	switch op {
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLessEqual:
		return cmp <= 0
	}
	return false
}
