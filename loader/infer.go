package loader

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// NullValues are the cell strings read as missing in text-based formats.
var NullValues = []string{"", "NA"}

// cell is one raw value of a text or document format before typing.
type cell struct {
	text string
	null bool
	// quoted marks values that were explicitly strings in the source and
	// must not be typed as numbers or booleans.
	quoted bool
}

func isNullText(s string) bool {
	for _, n := range NullValues {
		if s == n {
			return true
		}
	}
	return false
}

func textCell(s string) cell {
	return cell{text: s, null: isNullText(s)}
}

func isBoolText(s string) bool {
	switch s {
	case "true", "True", "TRUE", "false", "False", "FALSE":
		return true
	}
	return false
}

// inferType picks the narrowest Arrow type that holds every non-null cell:
// int64, then float64, then boolean, with string as the fallback. A column
// without any value is typed as string.
func inferType(cells []cell) arrow.DataType {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, c := range cells {
		if c.null {
			continue
		}
		seen = true
		if c.quoted {
			return arrow.BinaryTypes.String
		}
		if isInt {
			if _, err := strconv.ParseInt(c.text, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(c.text, 64); err != nil {
				isFloat = false
			}
		}
		if isBool && !isBoolText(c.text) {
			isBool = false
		}
		if !isInt && !isFloat && !isBool {
			return arrow.BinaryTypes.String
		}
	}

	switch {
	case !seen:
		return arrow.BinaryTypes.String
	case isInt:
		return arrow.PrimitiveTypes.Int64
	case isFloat:
		return arrow.PrimitiveTypes.Float64
	case isBool:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.BinaryTypes.String
}

// buildArray converts cells into an array of type dt.
func buildArray(mem memory.Allocator, dt arrow.DataType, cells []cell) (arrow.Array, error) {
	bldr := array.NewBuilder(mem, dt)
	defer bldr.Release()

	for i, c := range cells {
		if c.null {
			bldr.AppendNull()
			continue
		}
		switch b := bldr.(type) {
		case *array.Int64Builder:
			v, err := strconv.ParseInt(c.text, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			b.Append(v)
		case *array.Float64Builder:
			v, err := strconv.ParseFloat(c.text, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			b.Append(v)
		case *array.BooleanBuilder:
			v, err := strconv.ParseBool(c.text)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			b.Append(v)
		case *array.StringBuilder:
			b.Append(c.text)
		default:
			return nil, fmt.Errorf("unsupported builder type %s", dt)
		}
	}
	return bldr.NewArray(), nil
}
