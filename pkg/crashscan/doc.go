// Package crashscan analyzes Bethesda game crash logs (Buffout 4, Crash Logger)
// and reports probable crash causes.
//
// This package allows you to:
//   - Represent a parsed crash log as a [ParsedLog]
//   - Run a set of [Analyzer] implementations over it in priority order
//   - Share derived data between analyzers through an [AnalysisContext]
//   - Assemble the per-analyzer fragments into one deterministic report
//
// # Basic Usage
//
// Build a pipeline from the stock analyzers and run it over a parsed log:
//
//	store := rules.NewStore(rules.DefaultSource())
//	pipeline, err := crashscan.NewPipeline(
//	    analyzers.Default(store, analyzers.Config{}),
//	    crashscan.WithTimeout(10*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	run, err := pipeline.Run(ctx, parsed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report := crashscan.Assemble(run.Results, crashscan.ViewFull)
//	fmt.Print(crashscan.RenderMarkdown(report))
//
// # Custom Analyzers
//
// Implement the [Analyzer] interface, or wrap a function with [NewAnalyzerFunc]:
//
//	type Analyzer interface {
//	    Name() string
//	    Priority() int
//	    Timeout() time.Duration
//	    CanAnalyze(ac *AnalysisContext) bool
//	    Analyze(ctx context.Context, ac *AnalysisContext) (AnalysisResult, error)
//	}
//
// Analyzers with a lower priority number complete before analyzers with a
// higher one start. Analyzers sharing a priority may run concurrently.
//
// # Shared Data
//
// Values written with [Set] become visible to later analyzers once the writer
// finishes successfully:
//
//	crashscan.Set(ac, analyzers.GPUInfoKey, info)
//	info, ok := crashscan.Get(ac, analyzers.GPUInfoKey)
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with Bethesda Softworks.
package crashscan
