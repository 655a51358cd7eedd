package crashlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/internal/safefile"
	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

const sampleLog = "testdata/crash-2024-01-15-23-59-59.log"

func TestParseFile(t *testing.T) {
	log, err := ParseFile(sampleLog)
	require.NoError(t, err)

	assert.Equal(t, sampleLog, log.FilePath)
	assert.Equal(t, "1.10.163", log.GameVersion)
	assert.Equal(t, "Buffout 4", log.CrashGenName)
	assert.Equal(t, "1.28.6", log.CrashGenVersion)
	assert.Equal(t, `Unhandled exception "EXCEPTION_ACCESS_VIOLATION" at 0x7FF6F8E14A53 Fallout4.exe+0x0E14A53`, log.MainError)
}

func TestParseFile_Settings(t *testing.T) {
	log, err := ParseFile(sampleLog)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"F4EE":               "true",
		"Symcache":           "c:symcache",
		"WaitForDebugger":    "false",
		"Achievements":       "true",
		"ArchiveLimits":      "false",
		"MemoryManager":      "true",
		"MemoryManagerDebug": "false",
	}, log.Settings)
}

func TestParseFile_Sections(t *testing.T) {
	log, err := ParseFile(sampleLog)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"OS: Microsoft Windows 10 Pro v10.0.19045",
		"CPU: AuthenticAMD AMD Ryzen 7 5800X 8-Core Processor",
		"GPU #1: Nvidia GA104 [GeForce RTX 3070]",
		"GPU #2: Microsoft Basic Render Driver",
		"PHYSICAL MEMORY: 12.34 GB/31.92 GB",
	}, log.SystemSpecs)

	// Probable call stack, registers and stack are concatenated in log order.
	require.Len(t, log.CallStack, 9)
	assert.Equal(t, "[0] 0x7FF6F8E14A53 Fallout4.exe+0x0E14A53", log.CallStack[0])
	assert.Equal(t, "\tForm ID: 0x0100ABCD", log.CallStack[5])
	assert.Equal(t, "\tName: \"Meshes\\Armor\\Broken.nif\"", log.CallStack[8])

	assert.Equal(t, []string{"XINPUT1_3.dll", "Fallout4.exe", "x-cell-fo4.dll", "Buffout4.dll", "f4ee.dll"}, log.XSEModules)
	assert.True(t, log.HasModule("X-CELL-FO4.DLL"))
}

func TestParseFile_Plugins(t *testing.T) {
	log, err := ParseFile(sampleLog)
	require.NoError(t, err)

	assert.Equal(t, []crashscan.PluginEntry{
		{Name: "Fallout4.esm", ID: "00"},
		{Name: "DLCRobot.esm", ID: "01"},
		{Name: "MyMod.esp", ID: "02"},
		{Name: "ccBGSFO4001-PipBoy(Black).esl", ID: "FE:000"},
		{Name: "Light Patch.esl", ID: "FE:001"},
		{Name: "NotLoaded.esp", ID: ""},
	}, log.Plugins.Entries())
}

func TestParse_CrashLoggerSSE(t *testing.T) {
	input := strings.Join([]string{
		"Skyrim SSE v1.6.640",
		"CrashLoggerSSE v1-12-1-0 Nov 18 2023 13:13:41",
		"",
		`Unhandled exception "EXCEPTION_ACCESS_VIOLATION" at 0x7FF7B2E3A9C0 SkyrimSE.exe+0x0C3A9C0`,
		"Exception Flags: 0x00000000",
		"",
		"SKSE PLUGINS:",
		"\tpo3_PapyrusExtender.dll v5.6.1",
		"",
		"PLUGINS:",
		"\t[00]     Skyrim.esm",
		"\t[FE:  0] ccQDRSSE001-SurvivalMode.esl",
	}, "\n")

	log, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, "1.6.640", log.GameVersion)
	assert.Equal(t, "CrashLoggerSSE", log.CrashGenName)
	assert.Equal(t, "1.12.1.0", log.CrashGenVersion)
	assert.Empty(t, log.Settings)
	assert.Equal(t, []string{"po3_PapyrusExtender.dll"}, log.XSEModules)
	id, ok := log.Plugins.ID("ccQDRSSE001-SurvivalMode.esl")
	require.True(t, ok)
	assert.Equal(t, "FE:000", id)
}

func TestParse_NotCrashLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"plain text", "hello\nworld\n"},
		{"other game log", "2024.01.15 23:59:59 Log        -  [Behaviour] OnPlayerJoined TestUser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrNotCrashLog)
		})
	}
}

func TestParse_BOM(t *testing.T) {
	log, err := Parse(strings.NewReader("\ufeffFallout 4 v1.10.163\nBuffout 4 v1.28.6\n"))
	require.NoError(t, err)
	assert.Equal(t, "1.10.163", log.GameVersion)
	assert.Equal(t, "1.28.6", log.CrashGenVersion)
}

func TestParse_UnknownSectionsIgnored(t *testing.T) {
	input := "Unhandled exception at 0x0\nFUTURE SECTION:\n\tGPU #1: not a spec\nSYSTEM SPECS:\n\tGPU #1: AMD\n"
	log, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"GPU #1: AMD"}, log.SystemSpecs)
}

func TestParseFile_NotRegular(t *testing.T) {
	_, err := ParseFile(t.TempDir())
	assert.ErrorIs(t, err, safefile.ErrNotRegularFile)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "crash-missing.log"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
