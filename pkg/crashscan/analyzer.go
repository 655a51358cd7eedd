package crashscan

import (
	"context"
	"time"
)

// Analyzer is the contract every crash log analyzer implements.
type Analyzer interface {
	// Name identifies the analyzer in results and logs.
	Name() string

	// Priority orders execution. Lower numbers finish before higher numbers start;
	// analyzers with equal priority may run concurrently.
	Priority() int

	// Timeout bounds a single Analyze call. Zero uses the pipeline default.
	Timeout() time.Duration

	// CanAnalyze reports whether the analyzer applies to this run.
	CanAnalyze(ac *AnalysisContext) bool

	// Analyze inspects the log and returns a result.
	// Returns error only for unexpected failures, not for empty findings.
	Analyze(ctx context.Context, ac *AnalysisContext) (AnalysisResult, error)
}

// AnalyzeFunc is the signature of the function wrapped by NewAnalyzerFunc.
type AnalyzeFunc func(ctx context.Context, ac *AnalysisContext) (AnalysisResult, error)

// funcAnalyzer adapts an ordinary function to the Analyzer interface.
type funcAnalyzer struct {
	name     string
	priority int
	timeout  time.Duration
	fn       AnalyzeFunc
}

// NewAnalyzerFunc wraps fn as an Analyzer that always applies.
func NewAnalyzerFunc(name string, priority int, fn AnalyzeFunc) Analyzer {
	return &funcAnalyzer{name: name, priority: priority, fn: fn}
}

// NewAnalyzerFuncWithTimeout is NewAnalyzerFunc with an explicit timeout.
func NewAnalyzerFuncWithTimeout(name string, priority int, timeout time.Duration, fn AnalyzeFunc) Analyzer {
	return &funcAnalyzer{name: name, priority: priority, timeout: timeout, fn: fn}
}

func (f *funcAnalyzer) Name() string                       { return f.name }
func (f *funcAnalyzer) Priority() int                      { return f.priority }
func (f *funcAnalyzer) Timeout() time.Duration             { return f.timeout }
func (f *funcAnalyzer) CanAnalyze(_ *AnalysisContext) bool { return true }

func (f *funcAnalyzer) Analyze(ctx context.Context, ac *AnalysisContext) (AnalysisResult, error) {
	return f.fn(ctx, ac)
}

// Ensure funcAnalyzer implements Analyzer.
var _ Analyzer = (*funcAnalyzer)(nil)
