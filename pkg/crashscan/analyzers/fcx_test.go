package analyzers_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

func sha(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func fcxFixture(t *testing.T) (afero.Fs, string) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/games/Fallout 4/Fallout4.exe", []byte("game"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/games/Fallout 4/Data/F4SE/Plugins/Buffout4.dll", []byte("patched"), 0o644))

	doc := fmt.Sprintf(`version: 1
fcx_files:
  - path: "Fallout4.exe"
    sha256: %q
  - path: "Data/F4SE/Plugins/Buffout4.dll"
    sha256: %q
    advice: "Reinstall Buffout 4."
  - path: "Data/F4SE/Plugins/version-1-10-163-0.bin"
    advice: "Install Address Library."
`, sha("game"), sha("original"))
	return fsys, doc
}

func TestFCXAnalyzer_Checks(t *testing.T) {
	fsys, doc := fcxFixture(t)
	a := analyzers.NewFCXAnalyzer(storeWith(doc), analyzers.Config{FCX: true, GameDir: "/games/Fallout 4", FS: fsys})
	ac := crashscan.NewAnalysisContext(&crashscan.ParsedLog{})
	require.True(t, a.CanAnalyze(ac))

	res := analyze(t, a, ac)
	assert.Equal(t, crashscan.SeverityWarning, res.Severity)
	assert.Equal(t, "3", res.Metadata["files"])
	assert.Equal(t, "2", res.Metadata["problems"])
	assert.Equal(t, "- Data/F4SE/Plugins/Buffout4.dll is modified. Reinstall Buffout 4.\n"+
		"- Data/F4SE/Plugins/version-1-10-163-0.bin is missing. Install Address Library.", res.Fragment.Content)
}

func TestCheckFiles(t *testing.T) {
	fsys, _ := fcxFixture(t)
	base := afero.NewBasePathFs(fsys, "/games/Fallout 4")
	require.NoError(t, fsys.MkdirAll("/games/Fallout 4/Data/Textures", 0o755))

	checks, err := analyzers.CheckFiles(context.Background(), base, []rules.FCXEntry{
		{Path: "Fallout4.exe", SHA256: sha("game")},
		{Path: "Fallout4.exe"},
		{Path: "Data/F4SE/Plugins/Buffout4.dll", SHA256: sha("original")},
		{Path: "Data/Missing.esp"},
		{Path: "Data/Textures"},
	})
	require.NoError(t, err)

	var got []analyzers.FileStatus
	for _, c := range checks {
		got = append(got, c.Status)
	}
	assert.Equal(t, []analyzers.FileStatus{
		analyzers.FileOK,
		analyzers.FileOK,
		analyzers.FileModified,
		analyzers.FileMissing,
		analyzers.FileError,
	}, got)
}

func TestCheckFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzers.CheckFiles(ctx, afero.NewMemMapFs(), []rules.FCXEntry{{Path: "Fallout4.exe"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFCXAnalyzer_Disabled(t *testing.T) {
	ac := crashscan.NewAnalysisContext(&crashscan.ParsedLog{})
	store := rules.NewStore(rules.DefaultSource())

	assert.False(t, analyzers.NewFCXAnalyzer(store, analyzers.Config{}).CanAnalyze(ac))
	assert.False(t, analyzers.NewFCXAnalyzer(store, analyzers.Config{FCX: true}).CanAnalyze(ac))
	assert.False(t, analyzers.NewFCXAnalyzer(store, analyzers.Config{GameDir: "/games"}).CanAnalyze(ac))
}

func TestFCXAnalyzer_AllIntact(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/game/Fallout4.exe", []byte("game"), 0o644))
	doc := `version: 1
fcx_files:
  - path: "Fallout4.exe"
`
	a := analyzers.NewFCXAnalyzer(storeWith(doc), analyzers.Config{FCX: true, GameDir: "/game", FS: fsys})

	res := analyze(t, a, crashscan.NewAnalysisContext(&crashscan.ParsedLog{}))
	assert.Equal(t, crashscan.SeverityNone, res.Severity)
	assert.Equal(t, "All 1 checked game files are intact.", res.Fragment.Content)
}
