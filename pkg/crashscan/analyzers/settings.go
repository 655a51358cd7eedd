package analyzers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	version "github.com/hashicorp/go-version"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// SettingsAnalyzer checks crash generator settings against installed mods
// and the detected GPU.
type SettingsAnalyzer struct {
	store  *rules.Store
	game   string
	logger *slog.Logger
}

// NewSettingsAnalyzer creates the settings checker.
func NewSettingsAnalyzer(store *rules.Store, cfg Config) *SettingsAnalyzer {
	return &SettingsAnalyzer{store: store, game: cfg.game(), logger: cfg.logger()}
}

func (a *SettingsAnalyzer) Name() string           { return NameSettings }
func (a *SettingsAnalyzer) Priority() int          { return PrioritySettings }
func (a *SettingsAnalyzer) Timeout() time.Duration { return 0 }

// CanAnalyze reports whether the crash log has a settings block.
func (a *SettingsAnalyzer) CanAnalyze(ac *crashscan.AnalysisContext) bool {
	return len(ac.Log.Settings) > 0
}

// settingsCheck is one settings finding.
type settingsCheck struct {
	title  string
	advice string
}

// Analyze implements crashscan.Analyzer.
func (a *SettingsAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameSettings)

	rs, err := a.store.Load(ctx, a.game)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Warn("%v", err)
	}
	sr := rs.Settings
	log := ac.Log
	plugins := pluginsOf(ac)
	installed := func(names []string) bool {
		for _, n := range names {
			if _, ok := plugins.Find(n); ok || log.HasModule(n) {
				return true
			}
		}
		return false
	}

	var checks []settingsCheck
	add := func(title, format string, args ...any) {
		checks = append(checks, settingsCheck{title: title, advice: fmt.Sprintf(format, args...)})
	}

	if installed(sr.AchievementsMods) && a.enabled(log, sr.AchievementsSetting) {
		add("Achievements",
			"An achievements mod is installed and %s is enabled. Set %s to false to avoid conflicts.",
			sr.AchievementsSetting, sr.AchievementsSetting)
	}

	builtin := a.enabled(log, sr.MemoryManagerSetting)
	xcell := installed(sr.XCellModules)
	baka := installed(sr.BakaModules)
	var managers []string
	if builtin {
		managers = append(managers, sr.MemoryManagerSetting)
	}
	if xcell {
		managers = append(managers, "X-Cell")
	}
	if baka {
		managers = append(managers, "Baka ScrapHeap")
	}
	if len(managers) > 1 {
		add("Memory Management",
			"More than one memory manager is active (%s). Keep only one of them.",
			strings.Join(managers, ", "))
	}
	if xcell {
		var overlap []string
		for _, s := range sr.XCellOverlap {
			if a.enabled(log, s) {
				overlap = append(overlap, s)
			}
		}
		if len(overlap) > 0 {
			add("X-Cell Allocators",
				"X-Cell replaces these allocators; disable them: %s.", strings.Join(overlap, ", "))
		}
	}

	if a.enabled(log, sr.ArchiveLimitSetting) && !fixedIn(log.CrashGenVersion, sr.ArchiveLimitFixedIn) {
		add("Archive Limits",
			"%s is enabled. It is known to cause instability; set it to false.", sr.ArchiveLimitSetting)
	}

	if installed(sr.LooksMenuModules) {
		if v, ok := log.Setting(sr.LooksMenuSetting); ok && isDisabled(v) {
			add("LooksMenu",
				"LooksMenu is installed but %s compatibility is disabled. Set %s to true.",
				sr.LooksMenuSetting, sr.LooksMenuSetting)
		}
	}

	if vendor, ok := crashscan.Get(ac, DetectedGPUTypeKey); ok && gpuKnown(vendor) {
		for _, f := range sr.GPUFlags {
			if a.enabled(log, f.Setting) && !strings.EqualFold(f.Vendor, vendor) {
				advice := f.Advice
				if advice == "" {
					advice = fmt.Sprintf("%s only works on %s GPUs; set it to false.", f.Setting, f.Vendor)
				}
				add(f.Setting, "%s", advice)
			}
		}
	}

	disabled := DisabledSettings(log.Settings, sr.DisabledIgnore)

	if len(checks) > 0 {
		res.Severity = crashscan.SeverityWarning
	} else if len(disabled) > 0 {
		res.Severity = crashscan.SeverityInfo
	}
	res.SetMeta("warnings", len(checks))
	res.SetMeta("disabled", len(disabled))

	frag := crashscan.NewFragment("Settings", "", crashscan.FragmentTypeFor(res.Severity))
	for _, c := range checks {
		frag.Append(crashscan.NewFragment(c.title, c.advice, crashscan.FragmentWarning))
	}
	if len(disabled) > 0 {
		frag.Append(crashscan.NewFragment("Disabled Settings",
			"These crash generator settings are disabled:\n\n"+bulletList(disabled),
			crashscan.FragmentInfo).WithWeight(1))
	}
	if len(frag.Children) == 0 {
		frag.Content = "No settings issues were found."
	}
	res.Fragment = frag
	return res, nil
}

func (a *SettingsAnalyzer) enabled(log *crashscan.ParsedLog, name string) bool {
	if name == "" {
		return false
	}
	v, ok := log.Setting(name)
	return ok && isEnabled(v)
}

// fixedIn reports whether the crash generator version is at or above cutoff.
// Unparseable versions are treated as older.
func fixedIn(current, cutoff string) bool {
	if current == "" || cutoff == "" {
		return false
	}
	cur, err := version.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return false
	}
	fix, err := version.NewVersion(strings.TrimSpace(cutoff))
	if err != nil {
		return false
	}
	return cur.GreaterThanOrEqual(fix)
}

// DisabledSettings returns the sorted names of settings whose value is
// false or 0 and that are not in ignore.
func DisabledSettings(settings map[string]string, ignore []string) []string {
	var out []string
	for name, v := range settings {
		if !isDisabled(v) {
			continue
		}
		if slices.ContainsFunc(ignore, func(i string) bool { return strings.EqualFold(i, name) }) {
			continue
		}
		out = append(out, name)
	}
	slices.SortFunc(out, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

// Ensure SettingsAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*SettingsAnalyzer)(nil)
