package rules

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/crashscan/crashscan-go/internal/safefile"
)

//go:embed defaults/*.yaml
var defaultDocs embed.FS

// Source supplies raw rule documents by name.
// A missing document must be reported with an error wrapping fs.ErrNotExist.
type Source interface {
	ReadRules(ctx context.Context, name string) ([]byte, error)
}

// SourceFunc is an adapter to allow the use of ordinary functions as Sources.
type SourceFunc func(ctx context.Context, name string) ([]byte, error)

// ReadRules calls f(ctx, name).
func (f SourceFunc) ReadRules(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// fileName maps a rule set name to its document file name.
func fileName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid rule set name %q", name)
	}
	return strings.ToLower(name) + ".yaml", nil
}

// DirSource reads "<name>.yaml" documents from a directory.
type DirSource struct {
	Dir string
}

// ReadRules implements Source.
func (s DirSource) ReadRules(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := fileName(name)
	if err != nil {
		return nil, err
	}
	data, err := safefile.ReadRegular(filepath.Join(s.Dir, file), MaxDocumentSize)
	if err != nil {
		return nil, sanitizePathError(err)
	}
	return data, nil
}

// FSSource reads "<name>.yaml" documents from a directory of an fs.FS.
type FSSource struct {
	FS  fs.FS
	Dir string
}

// ReadRules implements Source.
func (s FSSource) ReadRules(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := fileName(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(s.FS, path.Join(s.Dir, file))
	if err != nil {
		return nil, sanitizePathError(err)
	}
	return data, nil
}

// DefaultSource serves the rule documents built into the binary.
func DefaultSource() Source {
	return FSSource{FS: defaultDocs, Dir: "defaults"}
}

// LayeredSource tries each source in order and returns the first document found.
type LayeredSource []Source

// ReadRules implements Source.
func (l LayeredSource) ReadRules(ctx context.Context, name string) ([]byte, error) {
	for _, s := range l {
		if s == nil {
			continue
		}
		data, err := s.ReadRules(ctx, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("rule set %q: %w", name, fs.ErrNotExist)
}

// Compile-time checks.
var (
	_ Source = DirSource{}
	_ Source = FSSource{}
	_ Source = LayeredSource{}
	_ Source = SourceFunc(nil)
)
