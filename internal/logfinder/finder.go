// Package logfinder locates crash generator log directories and files.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EnvLogDir is the environment variable name for specifying the crash log directory.
const EnvLogDir = "CRASHSCAN_LOGDIR"

// crashLogGlob matches the files written by Buffout 4 and Crash Logger.
const crashLogGlob = "crash-*.log"

// Sentinel errors.
var (
	ErrLogDirNotFound = errors.New("crash log directory not found")
	ErrNoCrashLogs    = errors.New("no crash logs found")
)

// gameDirs maps a rule set name to the script extender folder under
// Documents/My Games where the crash generator writes its logs.
var gameDirs = map[string][]string{
	"fallout4": {"Fallout4", "F4SE"},
	"skyrimse": {"Skyrim Special Edition", "SKSE"},
}

// DefaultLogDirs returns candidate crash log directories for game in
// priority order. Unknown games yield no candidates.
func DefaultLogDirs(game string) []string {
	parts, ok := gameDirs[game]
	if !ok {
		return nil
	}
	home := os.Getenv("USERPROFILE")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if home == "" {
		return nil
	}

	rel := append([]string{"My Games"}, parts...)
	dirs := []string{filepath.Join(append([]string{home, "Documents"}, rel...)...)}
	// OneDrive redirects Documents on many installs.
	if od := os.Getenv("OneDrive"); od != "" {
		dirs = append(dirs, filepath.Join(append([]string{od, "Documents"}, rel...)...))
	}
	return dirs
}

// FindLogDir returns the crash log directory.
//
// Priority:
//  1. explicit (if non-empty)
//  2. CRASHSCAN_LOGDIR environment variable
//  3. Auto-detect from DefaultLogDirs(game)
//
// Returns ErrLogDirNotFound if no directory holding crash logs is found.
// The returned path has symlinks resolved.
func FindLogDir(explicit, game string) (string, error) {
	if explicit != "" {
		if resolved := resolveAndValidateLogDir(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s is not a directory with crash logs", ErrLogDirNotFound, explicit)
	}

	if envDir := os.Getenv(EnvLogDir); envDir != "" {
		if resolved := resolveAndValidateLogDir(envDir); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to invalid directory", ErrLogDirNotFound, EnvLogDir)
	}

	for _, dir := range DefaultLogDirs(game) {
		if resolved := resolveAndValidateLogDir(dir); resolved != "" {
			return resolved, nil
		}
	}

	return "", ErrLogDirNotFound
}

// logCandidate caches a stat result so files deleted between globbing and
// sorting cannot break the ordering.
type logCandidate struct {
	path    string
	modTime int64
}

// FindCrashLogs returns the crash logs in dir, newest first.
// Non-regular files are ignored. Returns ErrNoCrashLogs if none remain.
func FindCrashLogs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, crashLogGlob))
	if err != nil {
		return nil, fmt.Errorf("globbing crash logs: %w", err)
	}

	candidates := make([]logCandidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, logCandidate{path: m, modTime: info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return nil, ErrNoCrashLogs
	}

	// Newest first; the name breaks ties so equal mtimes stay deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime != candidates[j].modTime {
			return candidates[i].modTime > candidates[j].modTime
		}
		return candidates[i].path > candidates[j].path
	})

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.path
	}
	return out, nil
}

// FindLatestCrashLog returns the most recently modified crash log in dir.
func FindLatestCrashLog(dir string) (string, error) {
	logs, err := FindCrashLogs(dir)
	if err != nil {
		return "", err
	}
	return logs[0], nil
}

// resolveAndValidateLogDir resolves symlinks and returns the path when it is
// a directory holding at least one crash log, or "" otherwise.
func resolveAndValidateLogDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	if !isValidLogDir(resolved) {
		return ""
	}
	return resolved
}

func isValidLogDir(dir string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, crashLogGlob))
	return err == nil && len(matches) > 0
}
