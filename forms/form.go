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

// Package forms compiles analysis forms from Go source files and caches
// them by path and modification time.
//
// A form is a file in package main that defines
//
//	func ParseOptions(options string) string
//
// and optionally
//
//	func GenerateWrapper(moduleName, analysisName, fileName string) string
//	func Init()
//	func Info() string
//
// Forms may import "statbridge/host" to run scripts and read the current
// data set.
package forms

import (
	"fmt"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
)

// ParseFunc is the signature of a form's ParseOptions entry point.
type ParseFunc = func(options string) string

// WrapperFunc is the signature of a form's GenerateWrapper entry point.
type WrapperFunc = func(moduleName, analysisName, fileName string) string

// Form is a compiled analysis form. Entry points run without holding the
// form's lock, so a form may reach the host and through it other forms
// while it runs. Forms that keep package state guard it themselves.
type Form struct {
	mu       sync.Mutex
	path     string
	modTime  time.Time
	info     string
	interp   *interp.Interpreter
	parse    ParseFunc
	generate WrapperFunc
	binding  *Binding
	output   *lockedBuffer
	retired  bool
}

// NewForm assembles a form from already resolved entry points. parse is
// required; generate may be nil.
func NewForm(path string, modTime time.Time, parse ParseFunc, generate WrapperFunc, binding *Binding) *Form {
	if binding == nil {
		binding = newBinding(path, nil)
	}
	return &Form{
		path:     path,
		modTime:  modTime,
		parse:    parse,
		generate: generate,
		binding:  binding,
		output:   &lockedBuffer{},
	}
}

// Path returns the absolute path the form was compiled from.
func (f *Form) Path() string { return f.path }

// ModTime returns the modification time of the compiled source.
func (f *Form) ModTime() time.Time { return f.modTime }

// Info returns the form's self description, if it has one.
func (f *Form) Info() string { return f.info }

// Binding returns the form's host binding.
func (f *Form) Binding() *Binding { return f.binding }

// HasWrapper reports whether the form can generate wrapper code.
func (f *Form) HasWrapper() bool {
	_, generate, err := f.entryPoints()
	return err == nil && generate != nil
}

// Output returns what the form printed to stdout and stderr.
func (f *Form) Output() string { return f.output.String() }

// Retired reports whether the form was replaced or cleared.
func (f *Form) Retired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retired
}

// entryPoints returns the current entry points, or ErrFormRetired.
func (f *Form) entryPoints() (ParseFunc, WrapperFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retired {
		return nil, nil, ErrFormRetired
	}
	return f.parse, f.generate, nil
}

// ParseOptions passes the options JSON text to the form and returns its
// normalized text.
func (f *Form) ParseOptions(options string) (out string, err error) {
	parse, _, err := f.entryPoints()
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ParseOptions panicked: %v", r)
		}
	}()
	return parse(options), nil
}

// GenerateWrapper asks the form for wrapper code. Forms without the entry
// point produce "".
func (f *Form) GenerateWrapper(moduleName, analysisName, fileName string) (out string, err error) {
	_, generate, err := f.entryPoints()
	if err != nil {
		return "", err
	}
	if generate == nil {
		return "", nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("GenerateWrapper panicked: %v", r)
		}
	}()
	return generate(moduleName, analysisName, fileName), nil
}

// release drops the interpreter and entry points. The binding must be
// detached before.
func (f *Form) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retired = true
	f.interp = nil
	f.parse = nil
	f.generate = nil
}

// lockedBuffer collects interpreter output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
