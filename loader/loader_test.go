package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"statbridge/datatable"
	"statbridge/importer"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func importSource(t *testing.T, src importer.Source) *datatable.DataSet {
	t.Helper()
	ds := datatable.NewDataSet()
	importer.New(nil).Import(ds, src, datatable.DefaultPolicy())
	return ds
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"data.csv", FileTypeCSV},
		{"DATA.CSV", FileTypeCSV},
		{"data.tsv", FileTypeCSV},
		{"data.parquet", FileTypeParquet},
		{"data.json", FileTypeJSON},
		{"book.xlsx", FileTypeXLSX},
		{"notes.md", FileTypeUnknown},
		{"noext", FileTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFileType(tt.path))
		})
	}
}

func TestDetectSeparator(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b,c", ','},
		{"a;b;c", ';'},
		{"a\tb\tc", '\t'},
		{"a|b|c", '|'},
		{"single", ','},
		{"", ','},
		{"a;b,c;d", ';'},
	}
	for _, tt := range tests {
		t.Run(SeparatorName(tt.want)+"/"+tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, detectSeparator(strings.NewReader(tt.line+"\n1,2")))
		})
	}

	_, err := DetectCSVSeparator(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestInferType(t *testing.T) {
	cells := func(values ...string) []cell {
		out := make([]cell, len(values))
		for i, v := range values {
			out[i] = textCell(v)
		}
		return out
	}

	assert.Equal(t, arrow.PrimitiveTypes.Int64, inferType(cells("1", "NA", "-3")))
	assert.Equal(t, arrow.PrimitiveTypes.Float64, inferType(cells("1", "2.5", "NaN")))
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, inferType(cells("true", "FALSE", "")))
	assert.Equal(t, arrow.BinaryTypes.String, inferType(cells("1", "x")))
	assert.Equal(t, arrow.BinaryTypes.String, inferType(cells("", "NA")))
	assert.Equal(t, arrow.BinaryTypes.String, inferType([]cell{{text: "12", quoted: true}}))
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "survey.csv", "id;score;group;passed\n1;2.5;a;true\n2;NA;b;false\n3;4;;TRUE\n")

	src, err := New(nil, nil).Load(context.Background(), path)
	require.NoError(t, err)
	defer src.Release()

	require.Len(t, src, 4)
	assert.Equal(t, arrow.INT64, src[0].Values.DataType().ID())
	assert.Equal(t, arrow.FLOAT64, src[1].Values.DataType().ID())
	assert.Equal(t, arrow.STRING, src[2].Values.DataType().ID())
	assert.Equal(t, arrow.BOOL, src[3].Values.DataType().ID())

	ds := importSource(t, src)
	assert.Equal(t, []string{"id", "score", "group", "passed"}, ds.ColumnNames())
	assert.Equal(t, []string{"2.5", "", "4"}, ds.ColumnByName("score").Values())
	assert.True(t, ds.ColumnByName("score").IsMissing(1))
	assert.True(t, ds.ColumnByName("group").IsMissing(2))
	assert.Equal(t, []string{"1", "0", "1"}, ds.ColumnByName("passed").Values())
}

func TestLoadCSVErrors(t *testing.T) {
	l := New(nil, nil)

	_, err := l.LoadCSV(writeFile(t, "empty.csv", ""))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = l.LoadCSV(writeFile(t, "ragged.csv", "a,b\n1,2\n3\n"))
	assert.Error(t, err)

	_, err = l.Load(context.Background(), writeFile(t, "data.bin", "xx"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	src, err := New(nil, nil).LoadCSV(writeFile(t, "header.csv", "a,b\n"))
	require.NoError(t, err)
	defer src.Release()

	ds := importSource(t, src)
	assert.Equal(t, 2, ds.ColumnCount())
	assert.Equal(t, 0, ds.RowCount())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "rows.json", `[
		{"name": "ann", "age": 31, "weight": 60.5, "member": true},
		{"age": 40, "name": "bob", "code": "007"},
		{"name": null, "age": 22, "weight": 71, "tags": ["x"]}
	]`)

	src, err := New(nil, nil).LoadJSON(path)
	require.NoError(t, err)
	defer src.Release()

	ds := importSource(t, src)
	assert.Equal(t, []string{"name", "age", "weight", "member", "code", "tags"}, ds.ColumnNames())
	assert.Equal(t, 3, ds.RowCount())

	assert.Equal(t, []string{"ann", "bob", ""}, ds.ColumnByName("name").Values())
	assert.True(t, ds.ColumnByName("name").IsMissing(2))
	assert.Equal(t, datatable.KindInteger, ds.ColumnByName("age").Kind())
	assert.Equal(t, datatable.KindFloat, ds.ColumnByName("weight").Kind())
	assert.Equal(t, []string{"60.5", "", "71"}, ds.ColumnByName("weight").Values())
	assert.Equal(t, []string{"1", "", ""}, ds.ColumnByName("member").Values())
	// quoted digits stay text
	assert.Equal(t, datatable.KindText, ds.ColumnByName("code").Kind())
	assert.Equal(t, []string{"", "007", ""}, ds.ColumnByName("code").Values())
	assert.Equal(t, []string{"", "", `["x"]`}, ds.ColumnByName("tags").Values())
}

func TestLoadJSONSingleObjectAndErrors(t *testing.T) {
	l := New(nil, nil)

	src, err := l.LoadJSON(writeFile(t, "one.json", `{"x": 1, "y": "a"}`))
	require.NoError(t, err)
	defer src.Release()
	require.Len(t, src, 2)
	assert.Equal(t, 1, src[0].Values.Len())

	_, err = l.LoadJSON(writeFile(t, "empty.json", `[]`))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = l.LoadJSON(writeFile(t, "bad.json", `{"x":`))
	assert.Error(t, err)

	_, err = l.LoadJSON(writeFile(t, "scalars.json", `[1, 2]`))
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"site", "count", "ratio"},
		{"Amsterdam", 3, 0.25},
		{"Utrecht", 5},
		{"", 7, 1.5},
	}
	for r, row := range rows {
		for c, v := range row {
			cellName, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellName, v))
		}
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src, err := New(nil, nil).Load(context.Background(), path)
	require.NoError(t, err)
	defer src.Release()

	ds := importSource(t, src)
	assert.Equal(t, []string{"site", "count", "ratio"}, ds.ColumnNames())
	assert.Equal(t, []string{"Amsterdam", "Utrecht", ""}, ds.ColumnByName("site").Values())
	assert.Equal(t, datatable.KindInteger, ds.ColumnByName("count").Kind())
	assert.Equal(t, []string{"3", "5", "7"}, ds.ColumnByName("count").Values())
	assert.Equal(t, []string{"0.25", "", "1.5"}, ds.ColumnByName("ratio").Values())
	assert.True(t, ds.ColumnByName("ratio").IsMissing(1))
}

func exportFixture(t *testing.T) *datatable.DataSet {
	t.Helper()
	path := writeFile(t, "fixture.csv", "id,score,label,flag\n1,1.5,a,true\n2,Inf,,false\n3,NaN,c,\n")
	src, err := New(nil, nil).LoadCSV(path)
	require.NoError(t, err)
	defer src.Release()
	return importSource(t, src)
}

func TestExportCSV(t *testing.T) {
	ds := exportFixture(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(ds, &buf))
	assert.Equal(t, "id,score,label,flag\n1,1.5,a,1\n2,∞,,0\n3,NaN,c,\n", buf.String())
}

func TestExportJSON(t *testing.T) {
	ds := exportFixture(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(ds, &buf))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, map[string]interface{}{"id": 1.0, "score": 1.5, "label": "a", "flag": true}, got[0])
	assert.Equal(t, map[string]interface{}{"id": 2.0, "score": "∞", "label": nil, "flag": false}, got[1])
	assert.Equal(t, "NaN", got[2]["score"])
	assert.Nil(t, got[2]["flag"])

	// keys keep column order
	assert.True(t, strings.Index(buf.String(), `"id"`) < strings.Index(buf.String(), `"flag"`))
}

func TestExportParquetRoundTrip(t *testing.T) {
	ds := exportFixture(t)
	path := filepath.Join(t.TempDir(), "out.parquet")

	require.NoError(t, Export(ds, path, FileTypeParquet))

	src, err := New(nil, nil).Load(context.Background(), path)
	require.NoError(t, err)
	defer src.Release()

	back := importSource(t, src)
	assert.Equal(t, ds.ColumnNames(), back.ColumnNames())
	for _, name := range ds.ColumnNames() {
		assert.Equal(t, ds.ColumnByName(name).Values(), back.ColumnByName(name).Values(), name)
		assert.Equal(t, ds.ColumnByName(name).Kind(), back.ColumnByName(name).Kind(), name)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	ds := exportFixture(t)
	err := Export(ds, filepath.Join(t.TempDir(), "out.xlsx"), FileTypeXLSX)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}
