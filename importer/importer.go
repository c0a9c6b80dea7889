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

// Package importer turns typed source columns into the display-string
// column model.
package importer

import (
	"fmt"
	"log/slog"
	"strconv"

	"statbridge/datatable"
)

// Diagnostic describes a column that could not be imported as-is.
type Diagnostic struct {
	Column  int
	Name    string
	Message string
	Err     error
}

func (d Diagnostic) String() string {
	return d.Message
}

// Report summarises an import.
type Report struct {
	Rows        int
	Columns     int
	Diagnostics []Diagnostic
}

// Importer loads sources into data sets.
type Importer struct {
	logger *slog.Logger
}

// New creates an Importer. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{logger: logger}
}

// ColumnName returns the name used for the source column at index.
func ColumnName(name string, index int) string {
	if name == "" {
		return "column_" + strconv.Itoa(index)
	}
	return name
}

// Import populates dataset from src. dataset is expected to be freshly
// created; its columns are replaced. Unsupported columns become blank and
// are listed in the report; the import itself never fails on them.
func (im *Importer) Import(dataset *datatable.DataSet, src Source, policy datatable.Policy) Report {
	dataset.SetColumnCount(len(src))

	maxRows := 0
	var diags []Diagnostic

	for colNr, sc := range src {
		name := ColumnName(sc.Name, colNr)

		var (
			values  []string
			missing []bool
			kind    = datatable.KindUnsupported
		)
		if sc.Values != nil {
			values, missing, kind = FormatColumn(sc.Values)
		}

		if kind == datatable.KindUnsupported {
			typeName := "nil"
			if sc.Values != nil {
				typeName = sc.Values.DataType().String()
			}
			msg := fmt.Sprintf("Unknown type of variable %s!", name)
			im.logger.Warn(msg, "column", name, "index", colNr, "type", typeName)
			diags = append(diags, Diagnostic{
				Column:  colNr,
				Name:    name,
				Message: msg,
				Err:     fmt.Errorf("%w: %s", datatable.ErrUnsupportedKind, typeName),
			})

			values = make([]string, maxRows)
			missing = make([]bool, maxRows)
			for i := range missing {
				missing[i] = true
			}
		}

		if len(values) > maxRows {
			maxRows = len(values)
		}
		if dataset.RowCount() < maxRows {
			dataset.SetRowCount(maxRows)
		}

		// index is always within the slots allocated above
		_ = dataset.InitColumn(colNr, name, values, missing, kind, policy)
	}

	// Columns formatted before the longest one are padded here.
	dataset.SetRowCount(maxRows)

	im.logger.Debug("dataset imported", "rows", maxRows, "columns", len(src), "diagnostics", len(diags))

	return Report{Rows: maxRows, Columns: len(src), Diagnostics: diags}
}
