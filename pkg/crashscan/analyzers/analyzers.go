// Package analyzers provides the stock crash log analyzers: GPU detection,
// plugin and FormID suspects, named records, mod detection, settings checks,
// error and stack-pattern suspects, and game file integrity (FCX).
//
// Analyzers exchange derived data through the typed keys declared in this
// package. Writers run at a lower priority number than their readers:
//
//	GPU (15) -> Plugins (20) -> Suspects (25) -> FormIDs, Records (30)
//	    -> Mods (35) -> Settings (40) -> FCX (50)
package analyzers

import (
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// Analyzer names.
const (
	NameGPU      = "gpu"
	NamePlugins  = "plugins"
	NameSuspects = "suspects"
	NameFormIDs  = "formids"
	NameRecords  = "records"
	NameMods     = "mods"
	NameSettings = "settings"
	NameFCX      = "fcx"
)

// Analyzer priorities. Lower numbers run first.
const (
	PriorityGPU      = 15
	PriorityPlugins  = 20
	PrioritySuspects = 25
	PriorityFormIDs  = 30
	PriorityRecords  = 30
	PriorityMods     = 35
	PrioritySettings = 40
	PriorityFCX      = 50
)

// DefaultGame is the rule set used when Config.Game is empty.
const DefaultGame = "fallout4"

// Config configures the stock analyzers.
type Config struct {
	// Game names the rule set, e.g. "fallout4". Default: DefaultGame.
	Game string

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger

	// GPUDetector classifies the GPU from system spec lines. Default: KeywordDetector.
	GPUDetector GPUDetector

	// FormIDs enriches FormID suspects with descriptions. Optional.
	FormIDs FormIDDatabase

	// LoadOrderPath is an external load order file preferred over the
	// crash log's plugin list. Optional.
	LoadOrderPath string

	// FCX enables the game file integrity check; GameDir must be set too.
	FCX     bool
	GameDir string
	// FS is the filesystem GameDir lives on. Default: the OS filesystem.
	FS afero.Fs

	// ChunkSize is the number of call stack lines scanned per worker.
	// Default: crashscan.DefaultChunkSize.
	ChunkSize int
}

func (c Config) game() string {
	if c.Game == "" {
		return DefaultGame
	}
	return c.Game
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// Default returns the stock analyzers in registration order.
func Default(store *rules.Store, cfg Config) []crashscan.Analyzer {
	return []crashscan.Analyzer{
		NewGPUAnalyzer(cfg),
		NewPluginAnalyzer(store, cfg),
		NewSuspectAnalyzer(store, cfg),
		NewFormIDAnalyzer(cfg),
		NewRecordAnalyzer(store, cfg),
		NewModAnalyzer(store, cfg),
		NewSettingsAnalyzer(store, cfg),
		NewFCXAnalyzer(store, cfg),
	}
}

// Context keys written by the stock analyzers.
var (
	// GPUInfoKey holds the detected GPU. Written by the GPU analyzer.
	GPUInfoKey = crashscan.NewKey[GPUInfo]("GpuInfo")
	// DetectedGPUTypeKey holds the lowercase GPU vendor, e.g. "nvidia".
	// Only written when a GPU was detected.
	DetectedGPUTypeKey = crashscan.NewKey[string]("DetectedGpuType")
	// GPURivalKey holds the lowercase rival vendor, or "" when there is none.
	GPURivalKey = crashscan.NewKey[string]("GpuRival")

	// CrashLogPluginsKey holds the authoritative plugin table of the run.
	CrashLogPluginsKey = crashscan.NewKey[crashscan.PluginTable]("CrashLogPlugins")
	// PluginLimitKey reports a plugin loaded at id FF.
	PluginLimitKey = crashscan.NewKey[bool]("PluginLimitTriggered")
	// LightPluginLimitKey reports a light plugin loaded at id FE:FFF.
	LightPluginLimitKey = crashscan.NewKey[bool]("LightPluginLimitTriggered")
	// PluginSuspectsKey holds plugins named in the call stack.
	PluginSuspectsKey = crashscan.NewKey[[]PluginCount]("PluginSuspects")

	// FoundRecordsKey holds named records from the call stack.
	FoundRecordsKey = crashscan.NewKey[[]RecordCount]("FoundRecords")
	// FormIDSuspectsKey holds FormIDs from the call stack.
	FormIDSuspectsKey = crashscan.NewKey[[]FormIDMatch]("FormIDSuspects")
	// SuspectMatchesKey holds fired error-signature, stack-pattern and DLL suspects.
	SuspectMatchesKey = crashscan.NewKey[[]SuspectMatch]("SuspectMatches")
	// DetectedModsKey holds mod warnings, conflicts and important mod statuses.
	DetectedModsKey = crashscan.NewKey[[]ModFinding]("DetectedMods")
)

// pluginsOf returns the plugin table written by the plugin analyzer, falling
// back to the crash log's own list.
func pluginsOf(ac *crashscan.AnalysisContext) crashscan.PluginTable {
	if t, ok := crashscan.Get(ac, CrashLogPluginsKey); ok {
		return t
	}
	return ac.Log.Plugins
}
