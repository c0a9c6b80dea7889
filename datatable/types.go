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

// Package datatable holds the imported column model: columns of display
// strings with their source kind, classification and level set.
package datatable

import "fmt"

// Kind is the element kind of a source column. It is decided once when a
// column is ingested and never re-inspected afterwards.
type Kind int

const (
	// KindUnsupported marks a source type the formatter cannot render.
	KindUnsupported Kind = iota
	// KindInteger represents signed or unsigned integers of any width.
	KindInteger
	// KindBoolean represents logical values.
	KindBoolean
	// KindText represents strings.
	KindText
	// KindFloat represents floating-point values of any precision.
	KindFloat
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "Unsupported"
	case KindInteger:
		return "Integer"
	case KindBoolean:
		return "Boolean"
	case KindText:
		return "Text"
	case KindFloat:
		return "Float"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Classification is the measurement scale assigned to a column.
type Classification int

const (
	// Unknown is the state of a column that has not been classified or
	// has nothing to classify.
	Unknown Classification = iota
	// Continuous is a numeric scale column.
	Continuous
	// Ordinal is an ordered categorical column.
	Ordinal
	// Nominal is an unordered categorical column.
	Nominal
)

// String returns the string representation of a Classification.
func (c Classification) String() string {
	switch c {
	case Unknown:
		return "unknown"
	case Continuous:
		return "scale"
	case Ordinal:
		return "ordinal"
	case Nominal:
		return "nominal"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// IsCategorical reports whether c is ordinal or nominal.
func (c Classification) IsCategorical() bool {
	return c == Ordinal || c == Nominal
}

// Value is a single cell as seen by display code.
type Value struct {
	// Formatted is the display string; empty for missing cells.
	Formatted string

	// Kind is the source kind of the owning column.
	Kind Kind

	// IsNull indicates a true missing element, as opposed to empty text.
	IsNull bool
}

// Metadata holds optional metadata about a data source.
type Metadata map[string]interface{}

// Policy controls how columns are classified and how their levels are
// ordered.
type Policy struct {
	// Threshold is the largest distinct-value count at which a column is
	// still categorical.
	Threshold int

	// OrderLabelsByValue sorts levels by their underlying value instead of
	// by first appearance.
	OrderLabelsByValue bool

	// ThresholdInclusive makes a distinct count equal to Threshold
	// categorical. When false the count must be strictly smaller.
	ThresholdInclusive bool

	// TextAlwaysNominal classifies text columns as nominal regardless of
	// their distinct count or content.
	TextAlwaysNominal bool
}

// DefaultPolicy returns the policy used when the caller supplies none.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:          10,
		OrderLabelsByValue: true,
		ThresholdInclusive: true,
		TextAlwaysNominal:  true,
	}
}

// fits reports whether a distinct count is within the categorical threshold.
func (p Policy) fits(distinct int) bool {
	if p.ThresholdInclusive {
		return distinct <= p.Threshold
	}
	return distinct < p.Threshold
}
