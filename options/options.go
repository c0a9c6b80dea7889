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

// Package options runs analysis options through compiled forms and writes
// the wrapper code forms generate.
package options

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"statbridge/forms"
)

// NestedKey is the key under which options may be wrapped.
const NestedKey = "options"

// ParseOptions hands raw to the form and returns the normalized options.
// raw is either the options object itself or an object carrying it under
// "options"; the result has the same shape as raw. Other keys of a nested
// request are kept.
func ParseOptions(form *forms.Form, raw []byte) (json.RawMessage, error) {
	top, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: input: %v", ErrOptionsParse, err)
	}

	inner := json.RawMessage(raw)
	nested := false
	if v, ok := top[NestedKey]; ok && isObject(v) {
		inner = v
		nested = true
	}

	text, err := form.ParseOptions(string(inner))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptionsParse, err)
	}
	if _, err := decodeObject([]byte(text)); err != nil {
		return nil, fmt.Errorf("%w: form returned %q: %v", ErrOptionsParse, truncate(text, 64), err)
	}

	var out bytes.Buffer
	if err := json.Compact(&out, []byte(text)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptionsParse, err)
	}
	if !nested {
		return out.Bytes(), nil
	}

	top[NestedKey] = out.Bytes()
	b, err := json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOptionsParse, err)
	}
	return b, nil
}

// GenerateWrapper asks the form for wrapper code. The module name handed to
// the form is the last element of modulePath.
func GenerateWrapper(form *forms.Form, modulePath, analysisName, artifactFileName string) (string, error) {
	moduleName := filepath.Base(filepath.Clean(modulePath))
	text, err := form.GenerateWrapper(moduleName, analysisName, artifactFileName)
	if err != nil {
		return "", fmt.Errorf("failed to generate wrapper for %s: %w", analysisName, err)
	}
	return text, nil
}

// decodeObject decodes b as a JSON object, keeping values raw.
func decodeObject(b []byte) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return m, nil
}

func isObject(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '{'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
