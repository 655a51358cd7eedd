package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crashscan/crashscan-go/internal/crashlog"
	"github.com/crashscan/crashscan-go/internal/formiddb"
	"github.com/crashscan/crashscan-go/internal/logfinder"
	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [crash-log...]",
		Short: "Analyze crash logs and print a report",
		Long: `Analyze one or more crash logs and print a report for each.

Without arguments the newest crash-*.log in the crash log directory is
scanned. The directory is taken from --log-dir, the CRASHSCAN_LOGDIR
environment variable, or the game's script extender folder under
Documents/My Games.

Markdown reports are printed one after another. JSON reports are printed
as one indented object per crash log.

Examples:
  # Scan the newest Fallout 4 crash log
  crashscan scan

  # Scan specific logs with a FormID database
  crashscan scan --formid-db formids.db crash-2024-01-15-23-59-59.log

  # Skyrim SE, machine-readable, only sections with findings
  crashscan scan -g skyrimse --format json --view summary

  # Verify game files against the rule set's manifest
  crashscan scan --fcx --game-dir "C:\Games\Fallout 4"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runScan(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}

	f := cmd.Flags()
	f.StringP("log-dir", "d", "", "crash log directory (auto-detected if not specified)")
	f.String("load-order", "", "loadorder.txt preferred over the crash log's plugin list")
	f.Bool("fcx", false, "check game files against the rule set's manifest")
	f.String("game-dir", "", "game installation directory for --fcx")
	f.Duration("timeout", crashscan.DefaultAnalyzerTimeout, "default per-analyzer timeout (0 disables)")
	f.Int("max-parallel", 0, "analyzers of equal priority run at once (0 = number of CPUs)")
	f.StringP("format", "f", formatMarkdown, "output format: markdown, json")
	f.String("view", "full", "report view: full, summary")
	f.String("color", "auto", "colorize markdown output: auto, always, never")
	f.Bool("stats", false, "print a table of analyzer outcomes to stderr")
	return cmd
}

// runScan scans every path, or the newest crash log when paths is empty.
// A log that cannot be read is reported and the rest are still scanned.
func (a *app) runScan(ctx context.Context, stdout, stderr io.Writer, paths []string) error {
	if len(paths) == 0 {
		latest, err := a.latestCrashLog()
		if err != nil {
			return err
		}
		paths = []string{latest}
	}

	view, err := crashscan.ParseView(a.cfg.View)
	if err != nil {
		return err
	}

	p, cleanup, err := a.buildPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	failed := 0
	for i, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Debug("scanning crash log", "path", path)

		log, err := crashlog.ParseFile(path)
		if err != nil {
			a.logger.Error("cannot scan crash log", "path", path, "error", err)
			failed++
			continue
		}
		run, err := p.Run(ctx, log)
		if err != nil {
			return err
		}

		report := crashscan.Assemble(run.Results, view)
		if a.format() == formatMarkdown && len(paths) > 1 {
			if i > 0 {
				fmt.Fprintln(stdout, "---")
				fmt.Fprintln(stdout)
			}
			fmt.Fprintf(stdout, "> %s\n\n", path)
		}
		if err := writeReport(stdout, a.format(), report); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if a.cfg.Stats {
			if err := writeStats(stderr, run.Results); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d crash logs could not be scanned", failed, len(paths))
	}
	return nil
}

func (a *app) format() string {
	if a.cfg.Format == "" {
		return formatMarkdown
	}
	return a.cfg.Format
}

func (a *app) latestCrashLog() (string, error) {
	dir, err := logfinder.FindLogDir(a.cfg.LogDir, a.game())
	if err != nil {
		return "", err
	}
	return logfinder.FindLatestCrashLog(dir)
}

// buildPipeline wires the rule store, the optional FormID database and the
// stock analyzers. The cleanup function is always non-nil.
func (a *app) buildPipeline() (*crashscan.Pipeline, func(), error) {
	noop := func() {}

	store := rules.NewStore(a.ruleSource(), rules.WithLogger(a.logger))
	acfg := analyzers.Config{
		Game:          a.game(),
		Logger:        a.logger,
		LoadOrderPath: a.cfg.LoadOrder,
		FCX:           a.cfg.FCX,
		GameDir:       a.cfg.GameDir,
	}

	cleanup := noop
	if a.cfg.FormIDDB != "" {
		db := formiddb.New(a.cfg.FormIDDB, formiddb.WithLogger(a.logger))
		acfg.FormIDs = db
		cleanup = func() {
			if err := db.Close(); err != nil {
				a.logger.Warn("closing FormID database", "error", err)
			}
		}
	}

	opts := []crashscan.PipelineOption{
		crashscan.WithLogger(a.logger),
		crashscan.WithTimeout(a.cfg.Timeout),
	}
	if a.cfg.MaxParallel > 0 {
		opts = append(opts, crashscan.WithMaxParallel(a.cfg.MaxParallel))
	}

	p, err := crashscan.NewPipeline(analyzers.Default(store, acfg), opts...)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return p, cleanup, nil
}
