package logfinder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("Fallout 4 v1.10.163\n"), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func resolved(t *testing.T, dir string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	return r
}

func TestFindLatestCrashLog(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "crash-2024-01-01-00-00-00.log", 3*time.Hour)
	writeLog(t, dir, "crash-2024-01-03-00-00-00.log", time.Hour)
	writeLog(t, dir, "crash-2024-01-02-00-00-00.log", 2*time.Hour)
	writeLog(t, dir, "notes.log", 0)

	got, err := FindLatestCrashLog(dir)
	require.NoError(t, err)
	assert.Equal(t, "crash-2024-01-03-00-00-00.log", filepath.Base(got))
}

func TestFindCrashLogs_Order(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "crash-a.log", 2*time.Hour)
	writeLog(t, dir, "crash-b.log", time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "crash-dir.log"), 0o755))

	logs, err := FindCrashLogs(dir)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "crash-b.log", filepath.Base(logs[0]))
	assert.Equal(t, "crash-a.log", filepath.Base(logs[1]))
}

func TestFindCrashLogs_NoFiles(t *testing.T) {
	_, err := FindCrashLogs(t.TempDir())
	assert.ErrorIs(t, err, ErrNoCrashLogs)

	_, err = FindLatestCrashLog(t.TempDir())
	assert.ErrorIs(t, err, ErrNoCrashLogs)
}

func TestFindLogDir_EnvVar(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "crash-test.log", 0)
	t.Setenv(EnvLogDir, dir)

	got, err := FindLogDir("", "fallout4")
	require.NoError(t, err)
	assert.Equal(t, resolved(t, dir), got)
}

func TestFindLogDir_ExplicitWins(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "crash-test.log", 0)
	t.Setenv(EnvLogDir, "/some/other/path")

	got, err := FindLogDir(dir, "fallout4")
	require.NoError(t, err)
	assert.Equal(t, resolved(t, dir), got)
}

func TestFindLogDir_Invalid(t *testing.T) {
	_, err := FindLogDir("/nonexistent/path", "fallout4")
	assert.ErrorIs(t, err, ErrLogDirNotFound)

	t.Setenv(EnvLogDir, "/nonexistent/path")
	_, err = FindLogDir("", "fallout4")
	assert.ErrorIs(t, err, ErrLogDirNotFound)

	// A directory without crash logs is rejected too.
	_, err = FindLogDir(t.TempDir(), "fallout4")
	assert.ErrorIs(t, err, ErrLogDirNotFound)
}

func TestFindLogDir_AutoDetect(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "Documents", "My Games", "Fallout4", "F4SE")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeLog(t, dir, "crash-test.log", 0)
	t.Setenv(EnvLogDir, "")
	t.Setenv("USERPROFILE", home)
	t.Setenv("OneDrive", "")

	got, err := FindLogDir("", "fallout4")
	require.NoError(t, err)
	assert.Equal(t, resolved(t, dir), got)

	_, err = FindLogDir("", "skyrimse")
	assert.ErrorIs(t, err, ErrLogDirNotFound)
}

func TestDefaultLogDirs(t *testing.T) {
	t.Setenv("USERPROFILE", "/home/me")
	t.Setenv("OneDrive", "/onedrive")

	dirs := DefaultLogDirs("skyrimse")
	assert.Equal(t, []string{
		filepath.Join("/home/me", "Documents", "My Games", "Skyrim Special Edition", "SKSE"),
		filepath.Join("/onedrive", "Documents", "My Games", "Skyrim Special Edition", "SKSE"),
	}, dirs)
	assert.Nil(t, DefaultLogDirs("morrowind"))
}
