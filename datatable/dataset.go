package datatable

import (
	"fmt"
	"sync"
)

// DataSet is an ordered collection of columns sharing one row count.
// It is safe for concurrent reads; writes come from the importer while it
// populates a fresh DataSet and from explicit value updates.
type DataSet struct {
	mu       sync.RWMutex
	columns  []*Column
	byName   map[string]int
	rowCount int
}

// NewDataSet creates an empty DataSet.
func NewDataSet() *DataSet {
	return &DataSet{byName: make(map[string]int)}
}

// ColumnCount returns the number of columns.
func (d *DataSet) ColumnCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.columns)
}

// RowCount returns the number of rows.
func (d *DataSet) RowCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rowCount
}

// Column returns the column at index, or nil when it does not exist or has
// not been initialised yet.
func (d *DataSet) Column(index int) *Column {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.columns) {
		return nil
	}
	return d.columns[index]
}

// ColumnByName returns the column called name, or nil.
func (d *DataSet) ColumnByName(name string) *Column {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.byName[name]
	if !ok {
		return nil
	}
	return d.columns[idx]
}

// ColumnNames returns the column names in order. Uninitialised slots are
// reported as empty strings.
func (d *DataSet) ColumnNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		if c != nil {
			names[i] = c.name
		}
	}
	return names
}

// SetColumnCount resizes the column slots. New slots are empty until
// InitColumn fills them; surplus columns are dropped.
func (d *DataSet) SetColumnCount(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 {
		n = 0
	}
	for i := n; i < len(d.columns); i++ {
		if c := d.columns[i]; c != nil && d.byName[c.name] == i {
			delete(d.byName, c.name)
		}
	}
	if n <= len(d.columns) {
		d.columns = d.columns[:n]
		return
	}
	d.columns = append(d.columns, make([]*Column, n-len(d.columns))...)
}

// SetRowCount sets the row count. Growing pads every existing column with
// missing entries; the row count never shrinks below the longest column.
func (d *DataSet) SetRowCount(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.columns {
		if c != nil && c.Len() > n {
			n = c.Len()
		}
	}
	d.rowCount = n
	d.padColumns()
}

// padColumns replaces every column shorter than the row count with a
// padded copy. The caller holds the write lock.
func (d *DataSet) padColumns() {
	for i, c := range d.columns {
		if c != nil && c.Len() < d.rowCount {
			cp := c.clone()
			cp.pad(d.rowCount)
			d.columns[i] = cp
		}
	}
}

// InitColumn installs a column at index from formatted values, pads it to
// the current row count and classifies it under policy.
func (d *DataSet) InitColumn(index int, name string, values []string, missing []bool, kind Kind, policy Policy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.columns) {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, index)
	}

	if old := d.columns[index]; old != nil && d.byName[old.name] == index {
		delete(d.byName, old.name)
	}

	c := newColumn(name, kind, values, missing)
	if c.Len() > d.rowCount {
		d.rowCount = c.Len()
		d.padColumns()
	}
	c.pad(d.rowCount)
	c.classify(policy)

	d.columns[index] = c
	// The first column with a given name wins lookups.
	if _, taken := d.byName[name]; !taken {
		d.byName[name] = index
	}
	return nil
}

// Reclassify recomputes levels and classification of every column.
func (d *DataSet) Reclassify(policy Policy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.columns {
		if c != nil {
			cp := c.clone()
			cp.classify(policy)
			d.columns[i] = cp
		}
	}
}

// SetValue replaces one cell of the named column, clears its missing flag
// and reclassifies the column with its last policy.
func (d *DataSet) SetValue(name string, row int, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	cp := d.columns[idx].clone()
	if !cp.setCell(row, value) {
		return fmt.Errorf("%w: %d", ErrInvalidRow, row)
	}
	cp.classify(cp.policy)
	d.columns[idx] = cp
	return nil
}

// SetValues replaces a run of cells of the named column starting at start
// and reclassifies once. Values past the last row are dropped; it returns
// how many were written.
func (d *DataSet) SetValues(name string, start int, values []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, ok := d.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	if start < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRow, start)
	}
	if start >= d.columns[idx].Len() || len(values) == 0 {
		return 0, nil
	}
	cp := d.columns[idx].clone()
	n := 0
	for i, v := range values {
		if !cp.setCell(start+i, v) {
			break
		}
		n++
	}
	cp.classify(cp.policy)
	d.columns[idx] = cp
	return n, nil
}

// ColumnName implements DataSource.
func (d *DataSet) ColumnName(col int) (string, error) {
	c := d.Column(col)
	if c == nil {
		return "", ErrInvalidColumn
	}
	return c.name, nil
}

// ColumnKind implements DataSource.
func (d *DataSet) ColumnKind(col int) (Kind, error) {
	c := d.Column(col)
	if c == nil {
		return KindUnsupported, ErrInvalidColumn
	}
	return c.kind, nil
}

// Cell implements DataSource.
func (d *DataSet) Cell(row, col int) (Value, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if col < 0 || col >= len(d.columns) || d.columns[col] == nil {
		return Value{}, ErrInvalidColumn
	}
	if row < 0 || row >= d.rowCount {
		return Value{}, ErrInvalidRow
	}
	c := d.columns[col]
	return Value{Formatted: c.values[row], Kind: c.kind, IsNull: c.missing[row]}, nil
}

// Row implements DataSource.
func (d *DataSet) Row(row int) ([]Value, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if row < 0 || row >= d.rowCount {
		return nil, ErrInvalidRow
	}
	out := make([]Value, len(d.columns))
	for i, c := range d.columns {
		if c == nil {
			out[i] = Value{IsNull: true}
			continue
		}
		out[i] = Value{Formatted: c.values[row], Kind: c.kind, IsNull: c.missing[row]}
	}
	return out, nil
}

// Metadata implements DataSource.
func (d *DataSet) Metadata() Metadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Metadata{
		"rows":    d.rowCount,
		"columns": len(d.columns),
	}
}
