package analyzers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
)

const modDoc = `version: 1
mod_warnings:
  frequent:
    "ScrapEverything": "Breaks precombines."
    "TacticalReload": "Causes weapon crashes."
    "NotInstalled": "Never reported."
mod_conflicts:
  "BetterPowerArmor | KnockoutFramework": "Both patch power armor."
  "FROST | PANPC": "Not compatible."
important_mods:
  core:
    "f4se_ | Fallout 4 Script Extender": "Required."
    "mentats | Mentats F4SE": "Fixes engine bugs."
  gpu:
    "nvidia_reflex | NVIDIA Reflex Support":
      advice: "NVIDIA only."
      gpu: nvidia
    "vulkan_renderer | Vulkan Renderer":
      advice: "AMD only."
      gpu: amd
`

func modContext(vendor, rival string) *crashscan.AnalysisContext {
	ac := crashscan.NewAnalysisContext(&crashscan.ParsedLog{
		Plugins: crashscan.NewPluginTable(
			crashscan.PluginEntry{Name: "Fallout4.esm", ID: "00"},
			crashscan.PluginEntry{Name: "TacticalReload.esm", ID: "02"},
			crashscan.PluginEntry{Name: "KnockoutFramework.esm", ID: "03"},
			crashscan.PluginEntry{Name: "NVIDIA_Reflex.esp", ID: "05"},
			crashscan.PluginEntry{Name: "ScrapEverything.esp", ID: "0A"},
			crashscan.PluginEntry{Name: "BetterPowerArmor.esp", ID: "FE:001"},
			crashscan.PluginEntry{Name: "FROST.esp", ID: "06"},
		),
		XSEModules: []string{"f4se_1_10_163.dll", "vulkan_renderer.dll"},
	})
	if vendor != "" {
		crashscan.Set(ac, analyzers.DetectedGPUTypeKey, vendor)
		crashscan.Set(ac, analyzers.GPURivalKey, rival)
	}
	return ac
}

func findingsOf(ac *crashscan.AnalysisContext, group analyzers.ModGroup) []analyzers.ModFinding {
	var out []analyzers.ModFinding
	for _, f := range crashscan.GetOr(ac, analyzers.DetectedModsKey, nil) {
		if f.Group == group {
			out = append(out, f)
		}
	}
	return out
}

func statusOf(findings []analyzers.ModFinding) map[string]analyzers.ModStatus {
	out := make(map[string]analyzers.ModStatus)
	for _, f := range findings {
		out[f.Name] = f.Status
	}
	return out
}

func TestModAnalyzer_Problematic(t *testing.T) {
	ac := modContext("", "")
	res := analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)
	assert.Equal(t, crashscan.SeverityWarning, res.Severity)

	problematic := findingsOf(ac, analyzers.GroupProblematic)
	require.Len(t, problematic, 2)
	// Ordered by load order, not declaration order.
	assert.Equal(t, "TacticalReload", problematic[0].Name)
	assert.Equal(t, []string{"02"}, problematic[0].PluginIDs)
	assert.Equal(t, "ScrapEverything", problematic[1].Name)
	assert.Equal(t, "frequent", problematic[1].Category)
}

func TestModAnalyzer_Conflicts(t *testing.T) {
	ac := modContext("", "")
	analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)

	conflicts := findingsOf(ac, analyzers.GroupConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "BetterPowerArmor | KnockoutFramework", conflicts[0].Name)
	assert.Equal(t, []string{"BetterPowerArmor.esp", "KnockoutFramework.esm"}, conflicts[0].Plugins)
	assert.Equal(t, []string{"FE:001", "03"}, conflicts[0].PluginIDs)
}

func TestModAnalyzer_ImportantWithRivalGPU(t *testing.T) {
	ac := modContext("amd", "nvidia")
	analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)

	important := findingsOf(ac, analyzers.GroupImportant)
	assert.Equal(t, map[string]analyzers.ModStatus{
		"f4se_":           analyzers.StatusInstalled,
		"mentats":         analyzers.StatusNotInstalled,
		"nvidia_reflex":   analyzers.StatusInstalledWithGPUIssue,
		"vulkan_renderer": analyzers.StatusInstalled,
	}, statusOf(important))
}

func TestModAnalyzer_ImportantWithMatchingGPU(t *testing.T) {
	ac := modContext("nvidia", "amd")
	analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)

	status := statusOf(findingsOf(ac, analyzers.GroupImportant))
	assert.Equal(t, analyzers.StatusInstalled, status["nvidia_reflex"])
	assert.Equal(t, analyzers.StatusInstalledWithGPUIssue, status["vulkan_renderer"])
}

func TestModAnalyzer_ImportantWithoutGPU(t *testing.T) {
	ac := modContext("", "")
	analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)

	status := statusOf(findingsOf(ac, analyzers.GroupImportant))
	assert.Equal(t, analyzers.StatusInstalled, status["nvidia_reflex"])
	assert.Equal(t, analyzers.StatusInstalled, status["vulkan_renderer"])
}

func TestModAnalyzer_ImportantOrder(t *testing.T) {
	ac := modContext("", "")
	analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)

	var got []string
	for _, f := range findingsOf(ac, analyzers.GroupImportant) {
		got = append(got, f.Name)
	}
	// Only nvidia_reflex has a plugin id; the rest keep declaration order.
	assert.Equal(t, []string{"nvidia_reflex", "f4se_", "mentats", "vulkan_renderer"}, got)
}

func TestModAnalyzer_GPUFromPipeline(t *testing.T) {
	store := storeWith(modDoc)
	p, err := crashscan.NewPipeline([]crashscan.Analyzer{
		analyzers.NewModAnalyzer(store, analyzers.Config{}),
		analyzers.NewGPUAnalyzer(analyzers.Config{}),
	})
	require.NoError(t, err)

	log := &crashscan.ParsedLog{
		SystemSpecs: []string{"GPU #1: AMD Radeon RX 6800", "GPU #2: Nvidia GeForce GTX 1650"},
		Plugins:     crashscan.NewPluginTable(crashscan.PluginEntry{Name: "NVIDIA_Reflex.esp", ID: "05"}),
	}
	run, err := p.Run(t.Context(), log)
	require.NoError(t, err)

	status := statusOf(findingsOf(run.Context, analyzers.GroupImportant))
	assert.Equal(t, analyzers.StatusInstalledWithGPUIssue, status["nvidia_reflex"])
}

func TestModAnalyzer_ConflictNeedsTwoMods(t *testing.T) {
	const doc = `version: 1
mod_conflicts:
  "StartMeUp | StartMeUpRedux": "Pick one."
  "Buffout | buffout4": "Duplicate crash loggers."
`
	tests := []struct {
		name      string
		plugins   []crashscan.PluginEntry
		modules   []string
		want      []string
		wantNames [][]string
		wantIDs   [][]string
	}{
		{
			name:    "only the longer name installed",
			plugins: []crashscan.PluginEntry{{Name: "StartMeUpRedux.esp", ID: "04"}},
		},
		{
			name: "both installed",
			plugins: []crashscan.PluginEntry{
				{Name: "StartMeUp.esp", ID: "04"},
				{Name: "StartMeUpRedux.esp", ID: "05"},
			},
			want:      []string{"StartMeUp | StartMeUpRedux"},
			wantNames: [][]string{{"StartMeUp.esp", "StartMeUpRedux.esp"}},
			wantIDs:   [][]string{{"04", "05"}},
		},
		{
			name:    "single module matches both sides",
			modules: []string{"buffout4.dll"},
		},
		{
			name:      "plugin and module",
			plugins:   []crashscan.PluginEntry{{Name: "Buffout4.esp", ID: "FE:002"}},
			modules:   []string{"buffout4.dll"},
			want:      []string{"Buffout | buffout4"},
			wantNames: [][]string{{"Buffout4.esp", "buffout4.dll"}},
			wantIDs:   [][]string{{"FE:002", ""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := crashscan.NewAnalysisContext(&crashscan.ParsedLog{
				Plugins:    crashscan.NewPluginTable(tt.plugins...),
				XSEModules: tt.modules,
			})
			analyze(t, analyzers.NewModAnalyzer(storeWith(doc), analyzers.Config{}), ac)

			var names []string
			var plugins, ids [][]string
			for _, f := range findingsOf(ac, analyzers.GroupConflict) {
				assert.NotEqual(t, f.Plugins[0], f.Plugins[1])
				names = append(names, f.Name)
				plugins = append(plugins, f.Plugins)
				ids = append(ids, f.PluginIDs)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.wantNames, plugins)
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestModAnalyzer_ImportantWithUnknownGPU(t *testing.T) {
	ac := modContext("unknown", "")
	analyze(t, analyzers.NewModAnalyzer(storeWith(modDoc), analyzers.Config{}), ac)

	status := statusOf(findingsOf(ac, analyzers.GroupImportant))
	assert.Equal(t, analyzers.StatusInstalled, status["nvidia_reflex"])
	assert.Equal(t, analyzers.StatusInstalled, status["vulkan_renderer"])
}
