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
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"statbridge/importer"
)

// ErrUnsupportedFileType is returned for files whose format is not known.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ErrEmptyFile is returned when a file holds no header or records.
var ErrEmptyFile = errors.New("file is empty or has no records")

// Loader reads data files into importer sources.
type Loader struct {
	mem    memory.Allocator
	logger *slog.Logger
}

// New creates a Loader. Nil arguments select the Go allocator and
// slog.Default().
func New(mem memory.Allocator, logger *slog.Logger) *Loader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{mem: mem, logger: logger}
}

// Load reads filePath using the loader for its detected type. The returned
// source must be released by the caller.
func (l *Loader) Load(ctx context.Context, filePath string) (importer.Source, error) {
	fileType := DetectFileType(filePath)

	var (
		src importer.Source
		err error
	)
	switch fileType {
	case FileTypeCSV:
		src, err = l.LoadCSV(filePath)
	case FileTypeParquet:
		src, err = l.LoadParquet(ctx, filePath)
	case FileTypeJSON:
		src, err = l.LoadJSON(filePath)
	case FileTypeXLSX:
		src, err = l.LoadXLSX(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(filePath))
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loaded data file",
		slog.String("file", filepath.Base(filePath)),
		slog.String("type", fileType.String()),
		slog.Int("columns", len(src)))
	return src, nil
}

// LoadCSV loads a CSV file. The separator is detected from the header line
// and column types are inferred from every row before the file is decoded.
func (l *Loader) LoadCSV(filePath string) (importer.Source, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}

	separator := detectSeparator(bytes.NewReader(data))
	schema, err := inferCSVSchema(data, separator)
	if err != nil {
		return nil, err
	}

	r := arrowcsv.NewReader(bytes.NewReader(data), schema,
		arrowcsv.WithComma(separator),
		arrowcsv.WithHeader(true),
		arrowcsv.WithNullReader(true, NullValues...),
		arrowcsv.WithChunk(-1),
		arrowcsv.WithAllocator(l.mem))
	defer r.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to load CSV file: %w", err)
	}

	table := array.NewTableFromRecords(r.Schema(), recs)
	defer table.Release()

	l.logger.Debug("CSV separator detected", slog.String("separator", SeparatorName(separator)))
	return importer.FromTable(table, l.mem)
}

// inferCSVSchema reads all rows once and types each column from its values.
func inferCSVSchema(data []byte, separator rune) (*arrow.Schema, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = separator

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := rows[0]
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		cells := make([]cell, 0, len(rows)-1)
		for _, row := range rows[1:] {
			cells = append(cells, textCell(row[i]))
		}
		fields[i] = arrow.Field{Name: name, Type: inferType(cells), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// LoadParquet loads a Parquet file through its Arrow schema.
func (l *Loader) LoadParquet(ctx context.Context, filePath string) (importer.Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f, file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, l.mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer table.Release()

	return importer.FromTable(table, l.mem)
}

// LoadJSON loads a JSON array of objects, or a single object, as rows.
// Columns appear in the order their keys are first seen.
func (l *Loader) LoadJSON(filePath string) (importer.Source, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		var single json.RawMessage
		if err := json.Unmarshal(content, &single); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		raw = []json.RawMessage{single}
	}
	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		names   []string
		columns [][]cell
	)
	index := make(map[string]int)
	for rowIdx, msg := range raw {
		obj, err := decodeObject(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON record %d: %w", rowIdx, err)
		}
		for _, kv := range obj {
			i, ok := index[kv.key]
			if !ok {
				i = len(names)
				index[kv.key] = i
				names = append(names, kv.key)
				columns = append(columns, nullCells(rowIdx))
			}
			if len(columns[i]) > rowIdx {
				// repeated key within one record, the last value wins
				columns[i][rowIdx] = kv.value
				continue
			}
			columns[i] = append(columns[i], kv.value)
		}
		for i := range columns {
			if len(columns[i]) <= rowIdx {
				columns[i] = append(columns[i], cell{null: true})
			}
		}
	}

	return l.buildSource(names, columns)
}

type keyValue struct {
	key   string
	value cell
}

// decodeObject reads one JSON object keeping its key order.
func decodeObject(msg json.RawMessage) ([]keyValue, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []keyValue
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)

		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, keyValue{key: key, value: jsonCell(v)})
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return out, nil
}

func jsonCell(v interface{}) cell {
	switch x := v.(type) {
	case nil:
		return cell{null: true}
	case json.Number:
		return cell{text: x.String()}
	case bool:
		if x {
			return cell{text: "true"}
		}
		return cell{text: "false"}
	case string:
		return cell{text: x, quoted: true}
	default:
		// nested arrays and objects are kept as their JSON text
		b, err := json.Marshal(x)
		if err != nil {
			return cell{null: true}
		}
		return cell{text: string(b), quoted: true}
	}
}

func nullCells(n int) []cell {
	cells := make([]cell, n)
	for i := range cells {
		cells[i].null = true
	}
	return cells
}

// LoadXLSX loads the first sheet of an Excel workbook. The first row holds
// the column names.
func (l *Loader) LoadXLSX(filePath string) (importer.Source, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := rows[0]
	columns := make([][]cell, len(header))
	for i := range header {
		cells := make([]cell, 0, len(rows)-1)
		for _, row := range rows[1:] {
			// trailing empty cells are trimmed from each row
			if i < len(row) {
				cells = append(cells, textCell(row[i]))
			} else {
				cells = append(cells, cell{null: true})
			}
		}
		columns[i] = cells
	}

	l.logger.Debug("Read workbook sheet", slog.String("sheet_name", sheets[0]), slog.Int("total_rows", len(rows)))
	return l.buildSource(header, columns)
}

func (l *Loader) buildSource(names []string, columns [][]cell) (importer.Source, error) {
	src := make(importer.Source, 0, len(names))
	for i, name := range names {
		cells := columns[i]
		arr, err := buildArray(l.mem, inferType(cells), cells)
		if err != nil {
			src.Release()
			return nil, fmt.Errorf("failed to build column %s: %w", name, err)
		}
		src = append(src, importer.SourceColumn{Name: name, Values: arr})
	}
	return src, nil
}
