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

// Package provider owns the session's current data set and answers the
// variable queries made by forms and analysis code.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"statbridge/datatable"
	"statbridge/datatable/filter"
	"statbridge/importer"
	"statbridge/loader"
)

// Provider holds the current data set. Loads build a fresh DataSet off to
// the side and swap it in under the write lock, so readers never observe a
// partially imported set.
type Provider struct {
	mu       sync.RWMutex
	dataset  *datatable.DataSet
	policy   datatable.Policy
	filter   filter.Filter
	importer *importer.Importer
	loader   *loader.Loader
	logger   *slog.Logger
}

// New creates a Provider with an empty data set.
func New(policy datatable.Policy, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		dataset:  datatable.NewDataSet(),
		policy:   policy,
		importer: importer.New(logger),
		loader:   loader.New(nil, logger),
		logger:   logger,
	}
}

// DataSet returns the current data set.
func (p *Provider) DataSet() *datatable.DataSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dataset
}

// Policy returns the classification policy applied on import.
func (p *Provider) Policy() datatable.Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// SetPolicy changes the classification policy and reclassifies the current
// data set.
func (p *Provider) SetPolicy(policy datatable.Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
	p.dataset.Reclassify(policy)
}

// Reset discards the current data set and any filter.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataset = datatable.NewDataSet()
	p.filter = nil
}

// Import replaces the current data set with one imported from src.
func (p *Provider) Import(src importer.Source) importer.Report {
	policy := p.Policy()

	ds := datatable.NewDataSet()
	report := p.importer.Import(ds, src, policy)

	p.mu.Lock()
	p.dataset = ds
	p.filter = nil
	p.mu.Unlock()

	return report
}

// LoadFile reads a data file and imports it as the current data set. On
// failure the previous data set is kept.
func (p *Provider) LoadFile(ctx context.Context, filePath string) (importer.Report, error) {
	src, err := p.loader.Load(ctx, filePath)
	if err != nil {
		return importer.Report{}, fmt.Errorf("failed to load %s: %w", filePath, err)
	}
	defer src.Release()

	return p.Import(src), nil
}

// SetFilter parses query against the current columns and installs it. An
// empty query removes the filter.
func (p *Provider) SetFilter(query string) error {
	return p.SetFilters(filter.LogicAND, query)
}

// SetFilters parses every query and installs them joined by logic. Empty
// queries are skipped; a failing query leaves the previous filter in place.
func (p *Provider) SetFilters(logic filter.LogicOp, queries ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := p.dataset.ColumnNames()
	var parsed []filter.Filter
	for _, query := range queries {
		q, err := filter.Parse(query, names)
		if err != nil {
			return err
		}
		if q != nil {
			parsed = append(parsed, q)
		}
	}
	p.filter = filter.Combine(logic, parsed...)
	return nil
}

// Filter returns the installed filter, or nil.
func (p *Provider) Filter() filter.Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

// FilteredRows returns the indices of the rows that pass the filter.
func (p *Provider) FilteredRows() ([]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return filter.Apply(p.dataset, p.filter)
}

// FilteredDataSet returns a copy of the data set holding only the rows that
// pass the filter. Without a filter the copy holds every row.
func (p *Provider) FilteredDataSet() (*datatable.DataSet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := filter.Apply(p.dataset, p.filter)
	if err != nil {
		return nil, err
	}

	src := p.dataset
	out := datatable.NewDataSet()
	out.SetColumnCount(src.ColumnCount())
	out.SetRowCount(len(rows))
	for i := 0; i < src.ColumnCount(); i++ {
		c := src.Column(i)
		if c == nil {
			continue
		}
		values := make([]string, len(rows))
		missing := make([]bool, len(rows))
		for j, r := range rows {
			values[j] = c.Value(r)
			missing[j] = c.IsMissing(r)
		}
		if err := out.InitColumn(i, c.Name(), values, missing, c.Kind(), p.policy); err != nil {
			return nil, err
		}
	}
	return out, nil
}
