package rules_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

func TestLoad_Valid(t *testing.T) {
	doc, err := rules.Load("testdata/valid.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, []string{"High | Stack Overflow Crash", "Medium | Null Crash"}, doc.ErrorSignatures.Keys())
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	_, err := rules.Load("testdata/unsupported_version.yaml")
	var valErr *rules.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := rules.Load("testdata/nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read rule document")
	assert.NotContains(t, err.Error(), "testdata")
}

func TestLoadBytes_Empty(t *testing.T) {
	_, err := rules.LoadBytes(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadBytes_InvalidYAML(t *testing.T) {
	_, err := rules.LoadBytes([]byte("version: 1\nstack_patterns: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadBytes_BadDigest(t *testing.T) {
	_, err := rules.LoadBytes([]byte("version: 1\nfcx_files:\n  - path: a.dll\n    sha256: nothex\n"))
	var valErr *rules.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "fcx_files[0].sha256", valErr.Field)
}

func TestLoadBytes_GPUFlagNeedsVendor(t *testing.T) {
	_, err := rules.LoadBytes([]byte("version: 1\nsettings:\n  gpu_flags:\n    - setting: NVIDIAReflex\n"))
	var valErr *rules.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestCompile(t *testing.T) {
	doc, err := rules.Load("testdata/valid.yaml")
	require.NoError(t, err)
	rs := rules.Compile("test", doc)

	require.Len(t, rs.Signatures, 2)
	assert.Equal(t, "Stack Overflow Crash", rs.Signatures[0].Key.Label)
	assert.Equal(t, crashscan.SeverityError, rs.Signatures[0].Key.Severity)

	// "Broken Key" has no separator and is skipped on its own.
	require.Len(t, rs.StackPatterns, 2)
	assert.Equal(t, "Conditional", rs.StackPatterns[0].Key.Label)
	assert.Equal(t, "Optional", rs.StackPatterns[1].Key.Label)
	require.Len(t, rs.Skipped, 1)
	assert.Equal(t, "stack_patterns", rs.Skipped[0].Section)
	assert.Equal(t, "Broken Key", rs.Skipped[0].Key)

	require.Len(t, rs.ImportantMods, 1)
	gpu := rs.ImportantMods[0].Rules
	require.Len(t, gpu, 2)
	assert.Equal(t, "Vulkan Renderer", gpu[0].Key.Display)
	assert.Equal(t, "amd", gpu[0].GPU)
	assert.Equal(t, "Required.", gpu[1].Advice)
	assert.Empty(t, gpu[1].GPU)

	require.Len(t, rs.FCXFiles, 1)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", rs.FCXFiles[0].SHA256)

	// Unset settings fall back to the defaults.
	assert.Equal(t, "MemoryManager", rs.Settings.MemoryManagerSetting)
	assert.Equal(t, "1.31.1", rs.Settings.ArchiveLimitFixedIn)
}

func TestOrderedMap_DuplicateKeepsFirstPosition(t *testing.T) {
	doc, err := rules.LoadBytes([]byte(`version: 1
error_signatures:
  "High | A": "one"
  "High | B": "two"
  "High | A": "three"
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"High | A", "High | B"}, doc.ErrorSignatures.Keys())
	v, ok := doc.ErrorSignatures.Get("High | A")
	assert.True(t, ok)
	assert.Equal(t, "three", v)
}

func TestStringList_Scalar(t *testing.T) {
	doc, err := rules.LoadBytes([]byte("version: 1\nstack_patterns:\n  \"Low | Single\": OnlyOne\n"))
	require.NoError(t, err)
	rs := rules.Compile("t", doc)
	require.Len(t, rs.StackPatterns, 1)
	assert.Equal(t, "OnlyOne", rs.StackPatterns[0].Conditions[0].Text)
}

func TestDefaultSource_Compiles(t *testing.T) {
	for _, name := range []string{"fallout4", "skyrimse"} {
		t.Run(name, func(t *testing.T) {
			data, err := rules.DefaultSource().ReadRules(context.Background(), name)
			require.NoError(t, err)
			doc, err := rules.LoadBytes(data)
			require.NoError(t, err)
			rs := rules.Compile(name, doc)
			assert.Empty(t, rs.Skipped)
			assert.NotEmpty(t, rs.Signatures)
		})
	}
}
