package crashscan

import (
	"errors"
	"fmt"
)

var (
	// ErrNilLog is returned when a pipeline is run without a parsed log.
	ErrNilLog = errors.New("parsed log is nil")

	// ErrNoAnalyzers is returned when a pipeline is built without analyzers.
	ErrNoAnalyzers = errors.New("no analyzers configured")

	// ErrKeyNotFound indicates that no value was written for a context key.
	ErrKeyNotFound = errors.New("context key not found")
)

// TypeMismatchError reports a context value stored under a key with a
// different type than the one requested.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("context key %q holds %s, not %s", e.Key, e.Got, e.Want)
}

// AnalyzerError wraps an error raised inside an analyzer.
type AnalyzerError struct {
	Analyzer string
	Err      error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("analyzer %s: %v", e.Analyzer, e.Err)
}

func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
