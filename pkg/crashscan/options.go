package crashscan

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"
)

// DefaultAnalyzerTimeout bounds analyzers that do not declare their own timeout.
const DefaultAnalyzerTimeout = 30 * time.Second

// PipelineOption configures a Pipeline using the functional options pattern.
type PipelineOption func(*pipelineConfig)

// pipelineConfig holds internal configuration for the pipeline.
type pipelineConfig struct {
	timeout     time.Duration
	maxParallel int
	logger      *slog.Logger
}

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// defaultPipelineConfig returns a pipelineConfig with sensible defaults.
func defaultPipelineConfig() *pipelineConfig {
	return &pipelineConfig{
		timeout:     DefaultAnalyzerTimeout,
		maxParallel: runtime.GOMAXPROCS(0),
		logger:      discardLogger,
	}
}

// applyPipelineOptions applies functional options to a pipelineConfig.
func applyPipelineOptions(opts []PipelineOption) *pipelineConfig {
	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option values.
func (c *pipelineConfig) validate() error {
	if c.timeout < 0 {
		return fmt.Errorf("analyzer timeout must be non-negative, got %v", c.timeout)
	}
	if c.maxParallel < 1 {
		return fmt.Errorf("max parallel must be at least 1, got %d", c.maxParallel)
	}
	return nil
}

// WithTimeout sets the default per-analyzer timeout.
// Analyzers returning a non-zero Timeout() keep their own value.
// Zero disables the default timeout.
func WithTimeout(d time.Duration) PipelineOption {
	return func(c *pipelineConfig) {
		c.timeout = d
	}
}

// WithMaxParallel bounds how many analyzers of the same priority run at once.
// 1 runs every analyzer sequentially. Default: GOMAXPROCS.
func WithMaxParallel(n int) PipelineOption {
	return func(c *pipelineConfig) {
		c.maxParallel = n
	}
}

// WithLogger sets a logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
