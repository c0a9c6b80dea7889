package forms

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"statbridge/datatable"
)

const descriptivesForm = `package main

import (
	"encoding/json"

	"statbridge/host"
)

func ParseOptions(options string) string {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(options), &m); err != nil {
		return "not json"
	}
	m["rows"] = host.RowCount()
	b, _ := json.Marshal(m)
	return string(b)
}

func GenerateWrapper(moduleName, analysisName, fileName string) string {
	return moduleName + "::" + analysisName + "(" + fileName + ")"
}

func Init() {
	host.RunScript("init")
}

func Info() string {
	return "descriptives"
}
`

const minimalForm = `package main

func ParseOptions(options string) string {
	return options
}
`

// recordingHost is a Host that records scripts and serves a fixed data set.
type recordingHost struct {
	mu      sync.Mutex
	scripts []string
	rows    int
}

func (h *recordingHost) RunScript(formPath, script string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts = append(h.scripts, filepath.Base(formPath)+":"+script)
}

func (h *recordingHost) Scripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

func (h *recordingHost) VariableNames() []string { return []string{"x"} }

func (h *recordingHost) VariableType(name string) datatable.Classification {
	if name == "x" {
		return datatable.Continuous
	}
	return datatable.Unknown
}

func (h *recordingHost) Labels(string) []string { return nil }

func (h *recordingHost) Values(string) []string { return []string{"1", "2"} }

func (h *recordingHost) RowCount() int { return h.rows }

// countingCompiler counts Compile calls of the wrapped compiler.
type countingCompiler struct {
	mu    sync.Mutex
	inner Compiler
	calls int
}

func (c *countingCompiler) Compile(path string, host Host) (*Form, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Compile(path, host)
}

func (c *countingCompiler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// writeForm writes src to dir/name and stamps it with mtime.
func writeForm(t *testing.T, dir, name, src string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}
