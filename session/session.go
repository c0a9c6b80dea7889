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

// Package session ties a data set and a form cache together for one
// analysis session. Everything a form can reach goes through the session
// it was compiled in.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"statbridge/datatable"
	"statbridge/forms"
	"statbridge/importer"
	"statbridge/options"
	"statbridge/provider"
)

// ErrClosed is returned by a session after Close.
var ErrClosed = errors.New("session is closed")

// ScriptRequest is a script a form asked the host to run.
type ScriptRequest struct {
	FormPath string
	Script   string
}

// ScriptRunner executes scripts requested by forms.
type ScriptRunner interface {
	RunScript(req ScriptRequest)
}

// Options configures a Session.
type Options struct {
	Policy datatable.Policy
	// GoPath is handed to the form interpreter for resolving imports.
	GoPath     string
	Extension  string
	Layout     options.Layout
	Runner     ScriptRunner
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Session owns the provider and the form cache of one analysis session.
type Session struct {
	id       uuid.UUID
	provider *provider.Provider
	cache    *forms.Cache
	layout   options.Layout
	runner   ScriptRunner
	logger   *slog.Logger

	mu      sync.Mutex
	pending []ScriptRequest
	closed  bool
}

// New starts a session with an empty data set and an empty form cache.
// Without a Runner, script requests are queued until TakeScripts.
func New(opts Options) *Session {
	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session_id", id.String()))

	if opts.Policy.Threshold <= 0 {
		opts.Policy = datatable.DefaultPolicy()
	}
	if opts.Layout.Dir == "" && opts.Layout.Suffix == "" {
		opts.Layout = options.DefaultLayout()
	}

	s := &Session{
		id:       id,
		provider: provider.New(opts.Policy, logger),
		layout:   opts.Layout,
		runner:   opts.Runner,
		logger:   logger,
	}
	metrics, err := forms.NewMetrics(opts.Registerer)
	if err != nil {
		logger.Warn("Form metrics not registered", slog.Any("error", err))
	}
	s.cache = forms.NewCache(forms.CacheOptions{
		Compiler:  forms.NewYaegiCompiler(opts.GoPath, logger),
		Host:      &host{session: s},
		Extension: opts.Extension,
		Metrics:   metrics,
		Logger:    logger,
	})

	logger.Info("Session started")
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Provider returns the session's data provider.
func (s *Session) Provider() *provider.Provider { return s.provider }

// Cache returns the session's form cache.
func (s *Session) Cache() *forms.Cache { return s.cache }

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Import replaces the data set with src.
func (s *Session) Import(src importer.Source) (importer.Report, error) {
	if err := s.check(); err != nil {
		return importer.Report{}, err
	}
	return s.provider.Import(src), nil
}

// LoadFile replaces the data set with the contents of a data file.
func (s *Session) LoadFile(ctx context.Context, path string) (importer.Report, error) {
	if err := s.check(); err != nil {
		return importer.Report{}, err
	}
	return s.provider.LoadFile(ctx, path)
}

// Form returns the compiled form for path.
func (s *Session) Form(path string) (*forms.Form, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.cache.Form(path)
}

// ParseOptions runs raw through the form at formPath.
func (s *Session) ParseOptions(formPath string, raw []byte) (json.RawMessage, error) {
	form, err := s.Form(formPath)
	if err != nil {
		return nil, err
	}
	return options.ParseOptions(form, raw)
}

// CheckOptions answers a check request; see options.CheckOptions.
func (s *Session) CheckOptions(request []byte) []byte {
	if err := s.check(); err != nil {
		b, _ := json.Marshal(map[string]interface{}{"options": map[string]interface{}{}, "error": err.Error()})
		return b
	}
	return options.CheckOptions(s.cache, request)
}

// GenerateWrapper asks the form at formPath for wrapper code and writes it
// into modulePath. It returns the written path, or "" when the form
// produced nothing.
func (s *Session) GenerateWrapper(formPath, modulePath, analysisName string) (string, error) {
	form, err := s.Form(formPath)
	if err != nil {
		return "", err
	}
	text, err := options.GenerateWrapper(form, modulePath, analysisName, filepath.Base(form.Path()))
	if err != nil {
		return "", err
	}
	path, err := options.WriteWrapper(modulePath, analysisName, text, s.layout)
	if err != nil {
		s.logger.Error("Wrapper not written", slog.String("analysis", analysisName), slog.Any("error", err))
		return "", err
	}
	if path != "" {
		s.logger.Info("Wrapper written", slog.String("analysis", analysisName), slog.String("path", path))
	}
	return path, nil
}

// runScript forwards a form's script to the runner or queues it.
func (s *Session) runScript(formPath, script string) {
	req := ScriptRequest{FormPath: formPath, Script: script}
	s.logger.Debug("Script requested", slog.String("form", formPath))

	s.mu.Lock()
	runner := s.runner
	if runner == nil {
		s.pending = append(s.pending, req)
	}
	s.mu.Unlock()

	if runner != nil {
		runner.RunScript(req)
	}
}

// TakeScripts returns and clears the queued script requests.
func (s *Session) TakeScripts() []ScriptRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Reset retires every form and empties the data set and script queue.
func (s *Session) Reset() error {
	if err := s.check(); err != nil {
		return err
	}
	s.cache.Clear()
	s.provider.Reset()

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	s.logger.Info("Session reset")
	return nil
}

// Close retires every form and releases the data set. Further calls
// return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("close: %w", ErrClosed)
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	s.cache.Clear()
	s.provider.Reset()
	s.logger.Info("Session closed")
	return nil
}
