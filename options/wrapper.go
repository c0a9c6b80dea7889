package options

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout places wrapper files inside a module directory.
type Layout struct {
	Dir    string
	Suffix string
}

// DefaultLayout writes <module>/R/<analysis>Wrapper.R.
func DefaultLayout() Layout {
	return Layout{Dir: "R", Suffix: "Wrapper.R"}
}

// Path returns where the wrapper for analysisName is written.
func (l Layout) Path(modulePath, analysisName string) string {
	return filepath.Join(modulePath, l.Dir, analysisName+l.Suffix)
}

// WriteWrapper writes text verbatim to the layout's path and returns it.
// Empty text writes nothing and returns "".
func WriteWrapper(modulePath, analysisName, text string, layout Layout) (string, error) {
	if text == "" {
		return "", nil
	}
	if analysisName == "" {
		return "", fmt.Errorf("%w: empty analysis name", ErrWrapperWrite)
	}
	if layout.Dir == "" && layout.Suffix == "" {
		layout = DefaultLayout()
	}

	path := layout.Path(modulePath, analysisName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrapperWrite, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWrapperWrite, path, err)
	}
	return path, nil
}
