package importer

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// SourceColumn is one named column of a source dataset. Columns of one
// source may differ in length.
type SourceColumn struct {
	Name   string
	Values arrow.Array
}

// Source is an ordered list of source columns.
type Source []SourceColumn

// Release releases every column array.
func (s Source) Release() {
	for _, c := range s {
		if c.Values != nil {
			c.Values.Release()
		}
	}
}

// FromRecord builds a Source from an Arrow record. The arrays are retained
// and must be released with Source.Release.
func FromRecord(rec arrow.Record) Source {
	src := make(Source, 0, rec.NumCols())
	for i, col := range rec.Columns() {
		col.Retain()
		src = append(src, SourceColumn{Name: rec.ColumnName(i), Values: col})
	}
	return src
}

// FromTable builds a Source from an Arrow table, concatenating chunked
// columns into single arrays.
func FromTable(table arrow.Table, mem memory.Allocator) (Source, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	src := make(Source, 0, table.NumCols())
	for i := 0; i < int(table.NumCols()); i++ {
		col := table.Column(i)
		chunks := col.Data().Chunks()

		var arr arrow.Array
		switch len(chunks) {
		case 0:
			arr = array.MakeArrayOfNull(mem, col.DataType(), 0)
		case 1:
			arr = chunks[0]
			arr.Retain()
		default:
			var err error
			arr, err = array.Concatenate(chunks, mem)
			if err != nil {
				src.Release()
				return nil, fmt.Errorf("failed to concatenate column %s: %w", col.Name(), err)
			}
		}
		src = append(src, SourceColumn{Name: col.Name(), Values: arr})
	}
	return src, nil
}
