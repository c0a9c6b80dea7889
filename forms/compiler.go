package forms

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Compiler builds a form from the file at path and connects it to host.
// path is absolute and already carries its extension.
type Compiler interface {
	Compile(path string, host Host) (*Form, error)
}

// YaegiCompiler interprets forms with yaegi, one interpreter per form.
type YaegiCompiler struct {
	// GoPath is where non-standard imports of forms are resolved.
	GoPath string
	Logger *slog.Logger
}

// NewYaegiCompiler creates a compiler resolving form imports from goPath.
func NewYaegiCompiler(goPath string, logger *slog.Logger) *YaegiCompiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &YaegiCompiler{GoPath: goPath, Logger: logger}
}

// Compile implements Compiler. Init, when defined, runs once before
// Compile returns; a panic there fails the compilation.
func (y *YaegiCompiler) Compile(path string, host Host) (form *Form, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat form: %w", err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read form: %w", err)
	}

	binding := newBinding(path, host)
	output := &lockedBuffer{}

	defer func() {
		if r := recover(); r != nil {
			form = nil
			err = diagnosticf(path, "panic: %v", r)
		}
		if err != nil {
			binding.Detach()
		}
	}()

	i := interp.New(interp.Options{
		GoPath: y.GoPath,
		Stdout: output,
		Stderr: output,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if err := i.Use(binding.exports()); err != nil {
		return nil, fmt.Errorf("failed to load host symbols: %w", err)
	}

	if _, err := i.Eval(string(src)); err != nil {
		return nil, newCompileError(path, err)
	}

	parse, ok, err := entryPoint[ParseFunc](i, path, "ParseOptions")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, diagnosticf(path, "ParseOptions is not defined")
	}
	generate, _, err := entryPoint[WrapperFunc](i, path, "GenerateWrapper")
	if err != nil {
		return nil, err
	}
	initFn, _, err := entryPoint[func()](i, path, "Init")
	if err != nil {
		return nil, err
	}
	infoFn, _, err := entryPoint[func() string](i, path, "Info")
	if err != nil {
		return nil, err
	}

	form = NewForm(path, info.ModTime(), parse, generate, binding)
	form.interp = i
	form.output = output

	if initFn != nil {
		initFn()
	}
	if infoFn != nil {
		form.info = infoFn()
	}

	y.Logger.Debug("Compiled form", slog.String("path", path), slog.Bool("wrapper", generate != nil))
	return form, nil
}

// entryPoint looks up a top-level function of the form. A missing name is
// not an error; a name bound to something of another type is.
func entryPoint[T any](i *interp.Interpreter, path, name string) (T, bool, error) {
	var zero T
	v, err := i.Eval(name)
	if err != nil || !v.IsValid() || v.Kind() != reflect.Func {
		if err == nil && v.IsValid() {
			return zero, false, diagnosticf(path, "%s must be a function", name)
		}
		return zero, false, nil
	}
	fn, ok := v.Interface().(T)
	if !ok {
		return zero, false, diagnosticf(path, "%s has signature %s, want %s", name, v.Type(), reflect.TypeOf(zero))
	}
	return fn, true, nil
}
