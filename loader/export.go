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

package loader

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"statbridge/datatable"
	"statbridge/importer"
)

// arrowType returns the Arrow type a column of kind k is exported as.
func arrowType(k datatable.Kind) arrow.DataType {
	switch k {
	case datatable.KindInteger:
		return arrow.PrimitiveTypes.Int64
	case datatable.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case datatable.KindBoolean:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// Record converts a data set into an Arrow record with one typed column per
// variable. Display strings are read back into their source kind; cells
// that no longer parse (after value updates) are written as nulls.
func Record(ds *datatable.DataSet, mem memory.Allocator) arrow.Record {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	n := ds.ColumnCount()
	rows := ds.RowCount()
	fields := make([]arrow.Field, 0, n)
	cols := make([]arrow.Array, 0, n)
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i := 0; i < n; i++ {
		c := ds.Column(i)
		if c == nil {
			continue
		}
		dt := arrowType(c.Kind())
		fields = append(fields, arrow.Field{Name: c.Name(), Type: dt, Nullable: true})
		cols = append(cols, columnArray(mem, dt, c, rows))
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(rows))
}

func columnArray(mem memory.Allocator, dt arrow.DataType, c *datatable.Column, rows int) arrow.Array {
	bldr := array.NewBuilder(mem, dt)
	defer bldr.Release()

	doubles := c.Doubles()
	for row := 0; row < rows; row++ {
		if c.IsMissing(row) {
			bldr.AppendNull()
			continue
		}
		v := c.Value(row)
		switch b := bldr.(type) {
		case *array.Int64Builder:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				b.AppendNull()
				continue
			}
			b.Append(n)
		case *array.Float64Builder:
			if math.IsNaN(doubles[row]) && v != importer.NaNString {
				b.AppendNull()
				continue
			}
			b.Append(doubles[row])
		case *array.BooleanBuilder:
			switch v {
			case "1":
				b.Append(true)
			case "0":
				b.Append(false)
			default:
				b.AppendNull()
			}
		case *array.StringBuilder:
			b.Append(v)
		}
	}
	return bldr.NewArray()
}

// Export writes ds to filePath in the given format.
func Export(ds *datatable.DataSet, filePath string, format FileType) error {
	switch format {
	case FileTypeCSV:
		return ExportToCSV(ds, filePath)
	case FileTypeJSON:
		return ExportToJSON(ds, filePath)
	case FileTypeParquet:
		return ExportToParquet(ds, filePath)
	default:
		return fmt.Errorf("%w: export as %s", ErrUnsupportedFileType, format)
	}
}

// ExportToParquet exports the data set to a Parquet file
func ExportToParquet(ds *datatable.DataSet, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	return WriteParquet(ds, file)
}

// WriteParquet writes the data set as Snappy-compressed Parquet.
func WriteParquet(ds *datatable.DataSet, w io.Writer) error {
	rec := Record(ds, nil)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record to parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ExportToCSV exports the data set to a CSV file
func ExportToCSV(ds *datatable.DataSet, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	return WriteCSV(ds, file)
}

// WriteCSV writes the display strings of the data set with a header row.
func WriteCSV(ds *datatable.DataSet, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(ds.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for rowIdx := 0; rowIdx < ds.RowCount(); rowIdx++ {
		values, err := ds.Row(rowIdx)
		if err != nil {
			return fmt.Errorf("error reading row %d: %w", rowIdx, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = v.Formatted
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportToJSON exports the data set to a JSON file
func ExportToJSON(ds *datatable.DataSet, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	return WriteJSON(ds, file)
}

// WriteJSON writes the data set as an array of objects, one per row, with
// typed values where the column kind allows it.
func WriteJSON(ds *datatable.DataSet, w io.Writer) error {
	names := ds.ColumnNames()
	records := make([]orderedRecord, 0, ds.RowCount())

	for rowIdx := 0; rowIdx < ds.RowCount(); rowIdx++ {
		values, err := ds.Row(rowIdx)
		if err != nil {
			return fmt.Errorf("error reading row %d: %w", rowIdx, err)
		}
		rec := orderedRecord{keys: names, values: make([]interface{}, len(values))}
		for i, v := range values {
			rec.values[i] = typedValue(v)
		}
		records = append(records, rec)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// typedValue returns the JSON value for one cell.
func typedValue(v datatable.Value) interface{} {
	if v.IsNull {
		return nil
	}

	switch v.Kind {
	case datatable.KindInteger:
		if n, err := strconv.ParseInt(v.Formatted, 10, 64); err == nil {
			return n
		}
	case datatable.KindFloat:
		// non-finite values have no JSON number form and keep their marker
		if f, err := strconv.ParseFloat(v.Formatted, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	case datatable.KindBoolean:
		switch v.Formatted {
		case "1":
			return true
		case "0":
			return false
		}
	}
	return v.Formatted
}

// orderedRecord marshals as a JSON object keeping column order.
type orderedRecord struct {
	keys   []string
	values []interface{}
}

func (r orderedRecord) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range r.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
