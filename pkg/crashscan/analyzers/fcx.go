package analyzers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// FileStatus is the integrity state of one game file.
type FileStatus string

const (
	FileOK       FileStatus = "ok"
	FileMissing  FileStatus = "missing"
	FileModified FileStatus = "modified"
	FileError    FileStatus = "error"
)

// FileCheck is the result of checking one manifest entry.
type FileCheck struct {
	Path   string     `json:"path"`
	Status FileStatus `json:"status"`
	Advice string     `json:"advice,omitempty"`
	// Err describes why the file could not be read when Status is FileError.
	Err string `json:"error,omitempty"`
}

// fcxTimeout bounds the whole file check; hashing large executables is slow.
const fcxTimeout = 2 * time.Minute

// FCXAnalyzer checks game files against the rule set's manifest.
type FCXAnalyzer struct {
	store   *rules.Store
	game    string
	enabled bool
	fs      afero.Fs
	logger  *slog.Logger
}

// NewFCXAnalyzer creates the file integrity checker. It only runs when
// cfg.FCX is set and cfg.GameDir is not empty.
func NewFCXAnalyzer(store *rules.Store, cfg Config) *FCXAnalyzer {
	a := &FCXAnalyzer{
		store:   store,
		game:    cfg.game(),
		enabled: cfg.FCX && cfg.GameDir != "",
		logger:  cfg.logger(),
	}
	if a.enabled {
		base := cfg.FS
		if base == nil {
			base = afero.NewOsFs()
		}
		a.fs = afero.NewBasePathFs(base, cfg.GameDir)
	}
	return a
}

func (a *FCXAnalyzer) Name() string                                 { return NameFCX }
func (a *FCXAnalyzer) Priority() int                                { return PriorityFCX }
func (a *FCXAnalyzer) Timeout() time.Duration                       { return fcxTimeout }
func (a *FCXAnalyzer) CanAnalyze(_ *crashscan.AnalysisContext) bool { return a.enabled }

// Analyze implements crashscan.Analyzer.
func (a *FCXAnalyzer) Analyze(ctx context.Context, _ *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameFCX)

	rs, err := a.store.Load(ctx, a.game)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Warn("%v", err)
	}

	checks, err := CheckFiles(ctx, a.fs, rs.FCXFiles)
	if err != nil {
		return res, err
	}

	var problems []string
	for _, c := range checks {
		a.logger.Debug("fcx file checked", "path", c.Path, "status", c.Status)
		switch c.Status {
		case FileOK:
			continue
		case FileError:
			problems = append(problems, fmt.Sprintf("%s could not be read: %s", c.Path, c.Err))
		default:
			line := fmt.Sprintf("%s is %s.", c.Path, c.Status)
			if c.Advice != "" {
				line += " " + c.Advice
			}
			problems = append(problems, line)
		}
	}
	res.SetMeta("files", len(checks))
	res.SetMeta("problems", len(problems))

	if len(problems) == 0 {
		res.Fragment = crashscan.NewFragment("Game Files",
			fmt.Sprintf("All %d checked game files are intact.", len(checks)), crashscan.FragmentNone)
		return res, nil
	}
	res.Severity = crashscan.SeverityWarning
	res.Fragment = crashscan.NewFragment("Game Files", bulletList(problems), crashscan.FragmentWarning)
	return res, nil
}

// CheckFiles checks each manifest entry on fsys: the file must exist and,
// when a digest is given, its SHA-256 must match. ctx is checked between files.
func CheckFiles(ctx context.Context, fsys afero.Fs, manifest []rules.FCXEntry) ([]FileCheck, error) {
	out := make([]FileCheck, 0, len(manifest))
	for _, e := range manifest {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, checkFile(fsys, e))
	}
	return out, nil
}

func checkFile(fsys afero.Fs, e rules.FCXEntry) FileCheck {
	c := FileCheck{Path: e.Path, Advice: e.Advice}
	name := filepath.FromSlash(e.Path)

	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Status = FileMissing
		} else {
			c.Status = FileError
			c.Err = err.Error()
		}
		return c
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.Status = FileError
		c.Err = err.Error()
		return c
	}
	if info.IsDir() {
		c.Status = FileError
		c.Err = "is a directory"
		return c
	}
	if e.SHA256 == "" {
		c.Status = FileOK
		return c
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		c.Status = FileError
		c.Err = err.Error()
		return c
	}
	if hex.EncodeToString(h.Sum(nil)) != strings.ToLower(e.SHA256) {
		c.Status = FileModified
		return c
	}
	c.Status = FileOK
	return c
}

// Ensure FCXAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*FCXAnalyzer)(nil)
