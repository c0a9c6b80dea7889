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

package importer

import (
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"statbridge/datatable"
)

// Display markers for special floating-point values.
const (
	NaNString    = "NaN"
	PosInfString = "∞"
	NegInfString = "-∞"
)

// KindOf maps an Arrow data type onto the closed set of element kinds.
func KindOf(dt arrow.DataType) datatable.Kind {
	if dt == nil {
		return datatable.KindUnsupported
	}

	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return datatable.KindInteger
	case arrow.BOOL:
		return datatable.KindBoolean
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return datatable.KindText
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return datatable.KindFloat
	case arrow.DICTIONARY:
		// factor-like columns are rendered through their labels
		if d, ok := dt.(*arrow.DictionaryType); ok && KindOf(d.ValueType) == datatable.KindText {
			return datatable.KindText
		}
	}
	return datatable.KindUnsupported
}

// FormatFloat renders a finite or special float. bits is the precision of
// the source value (16, 32 or 64); the result is the shortest decimal that
// parses back to the same value at that precision.
func FormatFloat(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return NaNString
	case math.IsInf(v, 1):
		return PosInfString
	case math.IsInf(v, -1):
		return NegInfString
	}
	if bits != 32 {
		bits = 64
	}
	// plain notation for everyday magnitudes, exponent form outside them
	if abs := math.Abs(v); abs == 0 || (abs >= 1e-4 && abs < 1e21) {
		return strconv.FormatFloat(v, 'f', -1, bits)
	}
	return strconv.FormatFloat(v, 'g', -1, bits)
}

// FormatBool renders a logical value as "1" or "0".
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// FormatValue converts the element at pos into its display string. The
// second result reports a missing element, whose display string is "".
// Unsupported kinds always yield "" and missing.
func FormatValue(col arrow.Array, pos int) (string, bool) {
	if col.IsNull(pos) {
		return "", true
	}

	switch c := col.(type) {
	case *array.Int8:
		return strconv.FormatInt(int64(c.Value(pos)), 10), false
	case *array.Int16:
		return strconv.FormatInt(int64(c.Value(pos)), 10), false
	case *array.Int32:
		return strconv.FormatInt(int64(c.Value(pos)), 10), false
	case *array.Int64:
		return strconv.FormatInt(c.Value(pos), 10), false
	case *array.Uint8:
		return strconv.FormatUint(uint64(c.Value(pos)), 10), false
	case *array.Uint16:
		return strconv.FormatUint(uint64(c.Value(pos)), 10), false
	case *array.Uint32:
		return strconv.FormatUint(uint64(c.Value(pos)), 10), false
	case *array.Uint64:
		return strconv.FormatUint(c.Value(pos), 10), false

	case *array.Boolean:
		return FormatBool(c.Value(pos)), false

	case *array.String:
		return c.Value(pos), false
	case *array.LargeString:
		return c.Value(pos), false
	case *array.StringView:
		return c.Value(pos), false
	case *array.Dictionary:
		if KindOf(col.DataType()) != datatable.KindText {
			return "", true
		}
		return FormatValue(c.Dictionary(), c.GetValueIndex(pos))

	case *array.Float16:
		return FormatFloat(float64(c.Value(pos).Float32()), 32), false
	case *array.Float32:
		return FormatFloat(float64(c.Value(pos)), 32), false
	case *array.Float64:
		return FormatFloat(c.Value(pos), 64), false
	}

	return "", true
}

// FormatColumn formats every element of col. For unsupported kinds it
// returns nil slices; the caller decides how to blank the column.
func FormatColumn(col arrow.Array) ([]string, []bool, datatable.Kind) {
	kind := KindOf(col.DataType())
	if kind == datatable.KindUnsupported {
		return nil, nil, kind
	}

	n := col.Len()
	values := make([]string, n)
	missing := make([]bool, n)
	for i := 0; i < n; i++ {
		values[i], missing[i] = FormatValue(col, i)
	}
	return values, missing, kind
}
