package crashscan

import (
	"fmt"
	"slices"
	"sync"
)

// Key names a typed value in the shared analysis context.
// Declare keys once as package variables and share them between writers and readers.
type Key[T any] struct {
	name string
}

// NewKey declares a context key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key name.
func (k Key[T]) Name() string { return k.name }

// sharedStore holds values committed by finished analyzers.
type sharedStore struct {
	mu   sync.RWMutex
	data map[string]any
}

// AnalysisContext is the per-run view handed to analyzers: the parsed log plus
// the shared key/value store.
//
// Each analyzer receives its own staged view. Its writes are visible to itself
// immediately and to other analyzers only after it completes successfully, so
// a cancelled or failed analyzer never leaves partial writes behind.
//
// AnalysisContext is safe for concurrent use.
type AnalysisContext struct {
	Log *ParsedLog

	store *sharedStore

	mu      sync.Mutex
	pending map[string]any // nil for the root context
	staged  bool
}

// NewAnalysisContext creates the root context for one run.
// Writes to the root context are committed immediately.
func NewAnalysisContext(log *ParsedLog) *AnalysisContext {
	return &AnalysisContext{
		Log:   log,
		store: &sharedStore{data: make(map[string]any)},
	}
}

// stage returns a view whose writes are buffered until commit.
func (ac *AnalysisContext) stage() *AnalysisContext {
	return &AnalysisContext{
		Log:     ac.Log,
		store:   ac.store,
		pending: make(map[string]any),
		staged:  true,
	}
}

// commit publishes the staged writes. Writes arriving after commit go straight to the store.
func (ac *AnalysisContext) commit() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if !ac.staged {
		return
	}
	ac.store.mu.Lock()
	for k, v := range ac.pending {
		ac.store.data[k] = v
	}
	ac.store.mu.Unlock()
	ac.pending = nil
	ac.staged = false
}

// discard drops staged writes. Later writes through this view are ignored.
func (ac *AnalysisContext) discard() {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.pending = nil
	ac.staged = true
}

func (ac *AnalysisContext) put(key string, v any) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.staged {
		if ac.pending != nil {
			ac.pending[key] = v
		}
		return
	}
	ac.store.mu.Lock()
	ac.store.data[key] = v
	ac.store.mu.Unlock()
}

func (ac *AnalysisContext) load(key string) (any, bool) {
	ac.mu.Lock()
	if v, ok := ac.pending[key]; ok {
		ac.mu.Unlock()
		return v, true
	}
	ac.mu.Unlock()

	ac.store.mu.RLock()
	defer ac.store.mu.RUnlock()
	v, ok := ac.store.data[key]
	return v, ok
}

// Keys returns the committed key names in sorted order.
func (ac *AnalysisContext) Keys() []string {
	ac.store.mu.RLock()
	keys := make([]string, 0, len(ac.store.data))
	for k := range ac.store.data {
		keys = append(keys, k)
	}
	ac.store.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Set writes a value under key.
func Set[T any](ac *AnalysisContext, key Key[T], v T) {
	ac.put(key.name, v)
}

// Get reads the value under key. It reports false when the key is missing or
// holds a value of another type; values are never converted.
func Get[T any](ac *AnalysisContext, key Key[T]) (T, bool) {
	v, err := Lookup(ac, key)
	return v, err == nil
}

// Lookup reads the value under key, returning ErrKeyNotFound or a
// *TypeMismatchError when it cannot.
func Lookup[T any](ac *AnalysisContext, key Key[T]) (T, error) {
	var zero T
	raw, ok := ac.load(key.name)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrKeyNotFound, key.name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Key:  key.name,
			Want: fmt.Sprintf("%T", zero),
			Got:  fmt.Sprintf("%T", raw),
		}
	}
	return v, nil
}

// GetOr reads the value under key or returns def.
func GetOr[T any](ac *AnalysisContext, key Key[T], def T) T {
	if v, ok := Get(ac, key); ok {
		return v
	}
	return def
}
