package provider

import (
	"fmt"

	"github.com/spf13/cast"

	"statbridge/datatable"
)

// InfoType selects a variable query.
type InfoType int

const (
	VariableType InfoType = iota
	DoubleValues
	TotalNumericValues
	TotalLevels
	Labels
	DataSetRowCount
	DataSetValue
	DataSetValues
	VariableNames
	DataAvailable
)

func (i InfoType) String() string {
	switch i {
	case VariableType:
		return "VariableType"
	case DoubleValues:
		return "DoubleValues"
	case TotalNumericValues:
		return "TotalNumericValues"
	case TotalLevels:
		return "TotalLevels"
	case Labels:
		return "Labels"
	case DataSetRowCount:
		return "DataSetRowCount"
	case DataSetValue:
		return "DataSetValue"
	case DataSetValues:
		return "DataSetValues"
	case VariableNames:
		return "VariableNames"
	case DataAvailable:
		return "DataAvailable"
	default:
		return fmt.Sprintf("InfoType(%d)", int(i))
	}
}

func (p *Provider) column(name string) *datatable.Column {
	return p.DataSet().ColumnByName(name)
}

// VariableType returns the classification of the named column, Unknown
// when it does not exist.
func (p *Provider) VariableType(name string) datatable.Classification {
	c := p.column(name)
	if c == nil {
		return datatable.Unknown
	}
	return c.Classification()
}

// DoubleValues returns the numeric reading of every row of the column.
func (p *Provider) DoubleValues(name string) []float64 {
	c := p.column(name)
	if c == nil {
		return nil
	}
	return c.Doubles()
}

// TotalNumericValues counts the rows of the column holding a number.
func (p *Provider) TotalNumericValues(name string) int {
	c := p.column(name)
	if c == nil {
		return 0
	}
	return c.NumericCount()
}

// TotalLevels returns the number of levels of the column.
func (p *Provider) TotalLevels(name string) int {
	c := p.column(name)
	if c == nil {
		return 0
	}
	return len(c.Levels())
}

// Labels returns the levels of the column.
func (p *Provider) Labels(name string) []string {
	c := p.column(name)
	if c == nil {
		return []string{}
	}
	return c.Levels()
}

// RowCount returns the row count of the current data set.
func (p *Provider) RowCount() int {
	return p.DataSet().RowCount()
}

// Value returns one display string, "" for unknown columns or rows.
func (p *Provider) Value(name string, row int) string {
	c := p.column(name)
	if c == nil {
		return ""
	}
	return c.Value(row)
}

// Values returns every display string of the column.
func (p *Provider) Values(name string) []string {
	c := p.column(name)
	if c == nil {
		return []string{}
	}
	return c.Values()
}

// VariableNames returns the column names in order.
func (p *Provider) VariableNames() []string {
	return p.DataSet().ColumnNames()
}

// DataAvailable reports whether a data set with at least one column is
// loaded.
func (p *Provider) DataAvailable() bool {
	return p.DataSet().ColumnCount() > 0
}

// Info answers a query selected by info. row is only used by DataSetValue.
// Unknown info types yield "".
func (p *Provider) Info(info InfoType, name string, row int) interface{} {
	switch info {
	case VariableType:
		return p.VariableType(name)
	case DoubleValues:
		return p.DoubleValues(name)
	case TotalNumericValues:
		return p.TotalNumericValues(name)
	case TotalLevels:
		return p.TotalLevels(name)
	case Labels:
		return p.Labels(name)
	case DataSetRowCount:
		return p.RowCount()
	case DataSetValue:
		return p.Value(name, row)
	case DataSetValues:
		return p.Values(name)
	case VariableNames:
		return p.VariableNames()
	case DataAvailable:
		return p.DataAvailable()
	}
	return ""
}

// SetValue replaces one display value of the named column.
func (p *Provider) SetValue(name string, row int, value string) error {
	return p.DataSet().SetValue(name, row, value)
}

// SetValues writes values into consecutive rows starting at start. Values
// past the last row are dropped.
func (p *Provider) SetValues(name string, start int, values []string) error {
	_, err := p.DataSet().SetValues(name, start, values)
	return err
}

// Absorb writes a value coming from a form or script. DataSetValue takes a
// single value; DataSetValues takes any slice written from row onwards.
// It reports whether anything was written.
func (p *Provider) Absorb(info InfoType, name string, row int, value interface{}) bool {
	switch info {
	case DataSetValue:
		s, err := cast.ToStringE(value)
		if err != nil {
			p.logger.Warn("Cannot absorb value", "column", name, "error", err)
			return false
		}
		return p.SetValue(name, row, s) == nil

	case DataSetValues:
		var values []string
		if s, ok := value.(string); ok {
			values = []string{s}
		} else {
			var err error
			if values, err = cast.ToStringSliceE(value); err != nil {
				p.logger.Warn("Cannot absorb values", "column", name, "error", err)
				return false
			}
		}
		return p.SetValues(name, row, values) == nil
	}
	return false
}
