package rules

import "fmt"

// ValidationError represents a schema-level validation error.
// These errors occur when a rule document violates structural requirements
// (e.g., unsupported version, an FCX entry without a path).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// KeyError reports a single rule whose key or value could not be parsed.
// The rule is skipped; the rest of the document stays usable.
type KeyError struct {
	Section string // YAML section, e.g. "stack_patterns"
	Key     string // Raw key as written in the document
	Message string
	Cause   error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: key %q: %s", e.Section, e.Key, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *KeyError) Unwrap() error {
	return e.Cause
}

// LoadWarning reports a rule document that could not be loaded.
// The store substitutes an empty rule set and keeps serving it.
type LoadWarning struct {
	Name string
	Err  error
}

func (w *LoadWarning) Error() string {
	return fmt.Sprintf("rule set %q unavailable, using empty rules: %v", w.Name, w.Err)
}

// Unwrap returns the underlying load error.
func (w *LoadWarning) Unwrap() error {
	return w.Err
}
