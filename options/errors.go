package options

import "errors"

// Common errors returned by the options package.
var (
	// ErrOptionsParse is returned when options or the form's answer are not
	// a JSON object, or the form failed while parsing.
	ErrOptionsParse = errors.New("failed to parse options")

	// ErrWrapperWrite is returned when wrapper code cannot be written.
	ErrWrapperWrite = errors.New("failed to write wrapper")
)
