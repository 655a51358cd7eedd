package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// errNoSource is reported when a store has no Source.
var errNoSource = errors.New("no rule source configured")

// StoreOption configures a Store using the functional options pattern.
type StoreOption func(*Store)

// WithLogger sets a logger for load diagnostics.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// cacheEntry is a loaded rule set with the warning produced while loading it.
type cacheEntry struct {
	rs   *RuleSet
	warn error
}

// Store loads rule sets by name and caches them for its lifetime.
//
// Each name is loaded at most once, even when many goroutines request it
// concurrently for the first time. A document that is missing or invalid is
// cached as an empty rule set together with a *LoadWarning.
//
// Store is safe for concurrent use. Returned rule sets must not be modified.
type Store struct {
	src    Source
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*cacheEntry
	group singleflight.Group
	loads atomic.Int64
}

// NewStore creates an empty store reading documents from src.
func NewStore(src Source, opts ...StoreOption) *Store {
	s := &Store{
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load returns the rule set called name.
//
// The returned rule set is never nil. The error is a *LoadWarning when the
// document could not be loaded (the rule set is then empty), or ctx.Err()
// when ctx ends while waiting for another caller's load.
func (s *Store) Load(ctx context.Context, name string) (*RuleSet, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	if e, ok := s.lookup(name); ok {
		return e.rs, e.warn
	}

	// The load outlives a cancelled caller so other waiters still get a result.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(name, func() (any, error) {
		// Double-check: a previous flight may have finished after our lookup.
		if e, ok := s.lookup(name); ok {
			return e, nil
		}
		e := s.load(loadCtx, name)
		s.mu.Lock()
		s.cache[name] = e
		s.mu.Unlock()
		return e, nil
	})

	select {
	case r := <-ch:
		e := r.Val.(*cacheEntry)
		return e.rs, e.warn
	case <-ctx.Done():
		return Empty(name), ctx.Err()
	}
}

func (s *Store) lookup(name string) (*cacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[name]
	return e, ok
}

func (s *Store) load(ctx context.Context, name string) *cacheEntry {
	s.loads.Add(1)
	log := s.logger.With("rules", name)

	degraded := func(err error) *cacheEntry {
		w := &LoadWarning{Name: name, Err: err}
		log.Warn("rule set unavailable", "error", err)
		return &cacheEntry{rs: Empty(name), warn: w}
	}

	if s.src == nil {
		return degraded(errNoSource)
	}
	data, err := s.src.ReadRules(ctx, name)
	if err != nil {
		return degraded(err)
	}
	doc, err := LoadBytes(data)
	if err != nil {
		return degraded(err)
	}

	rs := Compile(name, doc)
	for _, k := range rs.Skipped {
		log.Warn("skipping malformed rule", "section", k.Section, "key", k.Key, "reason", k.Message)
	}
	log.Debug("rule set loaded", "rules", rs.Count(), "skipped", len(rs.Skipped))
	return &cacheEntry{rs: rs}
}

// Loads returns how many documents the store has read from its source.
func (s *Store) Loads() int64 {
	return s.loads.Load()
}

func (s *Store) get(ctx context.Context, name string) *RuleSet {
	rs, _ := s.Load(ctx, name)
	return rs
}

// ErrorSignatures returns the error-signature rules of a rule set.
func (s *Store) ErrorSignatures(ctx context.Context, name string) []Signature {
	return s.get(ctx, name).Signatures
}

// StackPatterns returns the stack-pattern rules of a rule set.
func (s *Store) StackPatterns(ctx context.Context, name string) []StackPattern {
	return s.get(ctx, name).StackPatterns
}

// ModWarnings returns the mod warnings of one category.
func (s *Store) ModWarnings(ctx context.Context, name, category string) []ModWarning {
	return findCategory(s.get(ctx, name).ModWarnings, category)
}

// ModWarningCategories returns the mod warning categories in declaration order.
func (s *Store) ModWarningCategories(ctx context.Context, name string) []string {
	return categoryNames(s.get(ctx, name).ModWarnings)
}

// ModConflicts returns the mod conflict rules.
func (s *Store) ModConflicts(ctx context.Context, name string) []ModConflict {
	return s.get(ctx, name).ModConflicts
}

// ImportantMods returns the important mods of one category.
func (s *Store) ImportantMods(ctx context.Context, name, category string) []ImportantMod {
	return findCategory(s.get(ctx, name).ImportantMods, category)
}

// ImportantModCategories returns the important mod categories in declaration order.
func (s *Store) ImportantModCategories(ctx context.Context, name string) []string {
	return categoryNames(s.get(ctx, name).ImportantMods)
}

// IgnoredPlugins returns the plugin ignore list.
func (s *Store) IgnoredPlugins(ctx context.Context, name string) []string {
	return s.get(ctx, name).IgnorePlugins
}

// Records returns the record markers and the markers that exclude a line.
func (s *Store) Records(ctx context.Context, name string) (include, exclude []string) {
	rs := s.get(ctx, name)
	return rs.Records, rs.RecordsExclude
}

// DLLAllowList returns DLLs never reported as prime suspects.
func (s *Store) DLLAllowList(ctx context.Context, name string) []string {
	return s.get(ctx, name).DLLAllowList
}

// SettingsRules returns the settings check configuration.
func (s *Store) SettingsRules(ctx context.Context, name string) SettingsRules {
	return s.get(ctx, name).Settings
}

// FCXManifest returns the files the FCX check expects.
func (s *Store) FCXManifest(ctx context.Context, name string) []FCXEntry {
	return s.get(ctx, name).FCXFiles
}
