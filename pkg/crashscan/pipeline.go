package crashscan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pipeline runs a fixed set of analyzers over parsed crash logs.
// A Pipeline holds no per-run state and may be reused and shared.
type Pipeline struct {
	analyzers []Analyzer
	cfg       pipelineConfig
}

// Run is the outcome of one pipeline execution.
type Run struct {
	// Context holds the values committed by successful analyzers.
	Context *AnalysisContext
	// Results are in execution order: ascending priority, then registration order.
	Results []AnalysisResult
}

// NewPipeline creates a pipeline. Analyzers are ordered by priority;
// analyzers with equal priority keep their registration order.
func NewPipeline(analyzers []Analyzer, opts ...PipelineOption) (*Pipeline, error) {
	cfg := applyPipelineOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	list := make([]Analyzer, 0, len(analyzers))
	for _, a := range analyzers {
		// Skip nil analyzers
		if a != nil {
			list = append(list, a)
		}
	}
	if len(list) == 0 {
		return nil, ErrNoAnalyzers
	}
	slices.SortStableFunc(list, func(a, b Analyzer) int {
		return a.Priority() - b.Priority()
	})

	return &Pipeline{analyzers: list, cfg: *cfg}, nil
}

// Analyzers returns the analyzers in execution order.
func (p *Pipeline) Analyzers() []Analyzer {
	return slices.Clone(p.analyzers)
}

// Run executes every applicable analyzer against log.
//
// Analyzer failures, panics, timeouts and cancellation are reported inside the
// returned results and never abort the run. An error is returned only when the
// run cannot start.
//
// Context Cancellation:
// Analyzers that have not started when ctx is cancelled are reported as skipped.
func (p *Pipeline) Run(ctx context.Context, log *ParsedLog) (*Run, error) {
	if log == nil {
		return nil, ErrNilLog
	}

	root := NewAnalysisContext(log)
	results := make([]AnalysisResult, 0, len(p.analyzers))

	for _, batch := range p.batches() {
		if err := ctx.Err(); err != nil {
			for _, a := range batch {
				results = append(results, SkippedResult(a.Name(), "analysis cancelled before start"))
			}
			continue
		}

		var runnable []Analyzer
		for _, a := range batch {
			if !a.CanAnalyze(root) {
				p.cfg.logger.Debug("analyzer not applicable", "analyzer", a.Name())
				continue
			}
			runnable = append(runnable, a)
		}

		batchResults := make([]AnalysisResult, len(runnable))
		var g errgroup.Group
		g.SetLimit(p.cfg.maxParallel)
		for i, a := range runnable {
			g.Go(func() error {
				// Each goroutine writes to a unique index, which is safe.
				batchResults[i] = p.runOne(ctx, a, root)
				return nil
			})
		}
		_ = g.Wait()
		results = append(results, batchResults...)
	}

	return &Run{Context: root, Results: results}, nil
}

// batches groups the sorted analyzers by priority.
func (p *Pipeline) batches() [][]Analyzer {
	var out [][]Analyzer
	for i, a := range p.analyzers {
		if i == 0 || a.Priority() != p.analyzers[i-1].Priority() {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], a)
	}
	return out
}

// analyzeOutcome carries the return values of one Analyze call.
type analyzeOutcome struct {
	result AnalysisResult
	err    error
}

// runOne executes a single analyzer with its timeout, converting errors,
// panics and cancellation into results.
func (p *Pipeline) runOne(ctx context.Context, a Analyzer, root *AnalysisContext) AnalysisResult {
	name := a.Name()
	log := p.cfg.logger.With("analyzer", name)

	timeout := a.Timeout()
	if timeout == 0 {
		timeout = p.cfg.timeout
	}
	var (
		actx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		actx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	view := root.stage()
	start := time.Now()
	done := make(chan analyzeOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analyzeOutcome{err: &PanicError{Value: r}}
			}
		}()
		res, err := a.Analyze(actx, view)
		done <- analyzeOutcome{result: res, err: err}
	}()

	var out analyzeOutcome
	select {
	case out = <-done:
	case <-actx.Done():
		view.discard()
		res := skippedFor(name, ctx, timeout)
		res.Duration = time.Since(start)
		log.Debug("analyzer skipped", "reason", res.Warnings[0])
		return res
	}
	elapsed := time.Since(start)

	if out.err != nil {
		view.discard()
		if actx.Err() != nil && (errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded)) {
			res := skippedFor(name, ctx, timeout)
			res.Duration = elapsed
			return res
		}
		log.Warn("analyzer failed", "error", out.err)
		res := FailedResult(name, &AnalyzerError{Analyzer: name, Err: out.err})
		res.Duration = elapsed
		return res
	}

	res := normalizeResult(name, out.result)
	res.Duration = elapsed
	if res.Outcome == OutcomeSuccess {
		view.commit()
	} else {
		view.discard()
	}
	log.Debug("analyzer finished", "outcome", res.Outcome, "severity", res.Severity, "duration", elapsed)
	return res
}

// skippedFor builds the skipped result for a cancelled or timed-out analyzer.
func skippedFor(name string, parent context.Context, timeout time.Duration) AnalysisResult {
	if parent.Err() != nil {
		return SkippedResult(name, "analysis cancelled")
	}
	return SkippedResult(name, fmt.Sprintf("analysis timed out after %v", timeout))
}

// normalizeResult fills in fields an analyzer may have left unset.
func normalizeResult(name string, res AnalysisResult) AnalysisResult {
	if res.AnalyzerName == "" {
		res.AnalyzerName = name
	}
	if res.Metadata == nil {
		res.Metadata = make(map[string]string)
	}
	res.Success = res.Outcome != OutcomeFailed
	if res.Fragment == nil {
		res.Fragment = NewFragment(name, "", FragmentTypeFor(res.Severity))
	}
	return res
}
