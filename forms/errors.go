package forms

import (
	"errors"
	"fmt"
	"go/scanner"
	"regexp"
	"strconv"
	"strings"
)

// Common errors returned by the forms package.
var (
	// ErrArtifactNotFound is returned when a form file does not exist.
	ErrArtifactNotFound = errors.New("form file not found")

	// ErrCompilation is the error every CompileError unwraps to.
	ErrCompilation = errors.New("form compilation failed")

	// ErrFormRetired is returned when a replaced or cleared form is used.
	ErrFormRetired = errors.New("form has been retired")

	// ErrCompileInProgress is returned when a form is requested while the
	// same file is still being compiled, for example from its own Init.
	ErrCompileInProgress = errors.New("form is being compiled")
)

// Diagnostic is one compiler message. Line and Column are 1-based; zero
// means the position is unknown.
type Diagnostic struct {
	Line        int
	Column      int
	Description string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("Error when creating component at %d,%d: %s", d.Line, d.Column, d.Description)
}

// CompileError reports why a form could not be built.
type CompileError struct {
	Path        string
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Description)
	}
	return fmt.Sprintf("%s: %s: %s", ErrCompilation, e.Path, strings.Join(msgs, "; "))
}

func (e *CompileError) Unwrap() error {
	return ErrCompilation
}

// positionPattern matches "file:line:col: message" and "line:col: message".
var positionPattern = regexp.MustCompile(`^(?:.*?:)?(\d+):(\d+): (.*)$`)

func newCompileError(path string, err error) *CompileError {
	return &CompileError{Path: path, Diagnostics: diagnosticsFromError(err)}
}

func diagnosticf(path string, format string, args ...interface{}) *CompileError {
	return &CompileError{Path: path, Diagnostics: []Diagnostic{{Description: fmt.Sprintf(format, args...)}}}
}

// diagnosticsFromError extracts positioned messages from an interpreter
// error. Parser errors carry positions directly; type errors carry them in
// their text.
func diagnosticsFromError(err error) []Diagnostic {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		out := make([]Diagnostic, 0, len(list))
		for _, e := range list {
			out = append(out, Diagnostic{Line: e.Pos.Line, Column: e.Pos.Column, Description: e.Msg})
		}
		return out
	}

	var single *scanner.Error
	if errors.As(err, &single) {
		return []Diagnostic{{Line: single.Pos.Line, Column: single.Pos.Column, Description: single.Msg}}
	}

	var out []Diagnostic
	for _, line := range strings.Split(strings.TrimSpace(err.Error()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := positionPattern.FindStringSubmatch(line)
		if m == nil {
			out = append(out, Diagnostic{Description: line})
			continue
		}
		l, _ := strconv.Atoi(m[1])
		c, _ := strconv.Atoi(m[2])
		out = append(out, Diagnostic{Line: l, Column: c, Description: m[3]})
	}
	if len(out) == 0 {
		out = append(out, Diagnostic{Description: err.Error()})
	}
	return out
}
