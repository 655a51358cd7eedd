package analyzers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// ModGroup separates the three mod detections.
type ModGroup string

const (
	GroupProblematic ModGroup = "problematic"
	GroupConflict    ModGroup = "conflict"
	GroupImportant   ModGroup = "important"
)

// ModStatus is the installation status of an important mod.
type ModStatus string

const (
	StatusInstalled             ModStatus = "installed"
	StatusNotInstalled          ModStatus = "not_installed"
	StatusInstalledWithGPUIssue ModStatus = "installed_with_gpu_issue"
)

// ModFinding is one mod detection result.
type ModFinding struct {
	Group    ModGroup `json:"group"`
	Category string   `json:"category,omitempty"`
	// Name is the rule's mod name, "modA | modB" for conflicts.
	Name    string `json:"name"`
	Display string `json:"display,omitempty"`
	// Plugins and PluginIDs list the installed plugins that matched.
	Plugins   []string           `json:"plugins,omitempty"`
	PluginIDs []string           `json:"plugin_ids,omitempty"`
	Status    ModStatus          `json:"status,omitempty"`
	Advice    string             `json:"advice,omitempty"`
	Severity  crashscan.Severity `json:"severity"`
}

// sortID is the load order id findings are ordered by.
func (f ModFinding) sortID() string {
	if len(f.PluginIDs) == 0 {
		return ""
	}
	return f.PluginIDs[0]
}

// ModAnalyzer reports problematic mods, mod conflicts and the status of
// important mods.
type ModAnalyzer struct {
	store  *rules.Store
	game   string
	logger *slog.Logger
}

// NewModAnalyzer creates the mod detection analyzer.
func NewModAnalyzer(store *rules.Store, cfg Config) *ModAnalyzer {
	return &ModAnalyzer{store: store, game: cfg.game(), logger: cfg.logger()}
}

func (a *ModAnalyzer) Name() string                                 { return NameMods }
func (a *ModAnalyzer) Priority() int                                { return PriorityMods }
func (a *ModAnalyzer) Timeout() time.Duration                       { return 0 }
func (a *ModAnalyzer) CanAnalyze(_ *crashscan.AnalysisContext) bool { return true }

// Analyze implements crashscan.Analyzer.
func (a *ModAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameMods)

	rs, err := a.store.Load(ctx, a.game)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Warn("%v", err)
	}

	inv := newInventory(pluginsOf(ac), ac.Log.XSEModules)
	vendor := crashscan.GetOr(ac, DetectedGPUTypeKey, "")
	rival := crashscan.GetOr(ac, GPURivalKey, "")

	problematic := detectProblematic(rs.ModWarnings, inv)
	conflicts := detectConflicts(rs.ModConflicts, inv)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	important := detectImportant(rs.ImportantMods, inv, vendor, rival)

	for _, g := range [][]ModFinding{problematic, conflicts, important} {
		crashscan.SortByLoadOrder(g, ModFinding.sortID)
	}

	all := make([]ModFinding, 0, len(problematic)+len(conflicts)+len(important))
	all = append(all, problematic...)
	all = append(all, conflicts...)
	all = append(all, important...)
	crashscan.Set(ac, DetectedModsKey, all)

	for _, f := range all {
		res.Severity = res.Severity.Max(f.Severity)
	}
	res.SetMeta("problematic", len(problematic))
	res.SetMeta("conflicts", len(conflicts))
	res.SetMeta("important", len(important))

	frag := crashscan.NewFragment("Mod Checks", "", crashscan.FragmentTypeFor(res.Severity))
	frag.Append(
		findingsFragment("Problematic Mods", problematic, formatProblematic),
		findingsFragment("Mod Conflicts", conflicts, formatConflict),
		findingsFragment("Important Mods", important, formatImportant),
	)
	if len(frag.Children) == 0 {
		frag.Content = "No mod issues were found."
	}
	res.Fragment = frag
	return res, nil
}

// inventory answers "is this mod installed" against plugins and script
// extender modules.
type inventory struct {
	plugins []crashscan.PluginEntry
	modules []string
}

func newInventory(plugins crashscan.PluginTable, modules []string) inventory {
	return inventory{plugins: plugins.Entries(), modules: modules}
}

// matchPlugins returns the plugins whose name contains fragment, ignoring case.
func (inv inventory) matchPlugins(fragment string) []crashscan.PluginEntry {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return nil
	}
	var out []crashscan.PluginEntry
	for _, p := range inv.plugins {
		if strings.Contains(strings.ToLower(p.Name), fragment) {
			out = append(out, p)
		}
	}
	return out
}

// modItem is an installed plugin, or a script extender module with no id.
type modItem struct {
	name string
	id   string
}

// matchItems returns the plugins, in load order, then the modules whose
// name contains fragment, ignoring case.
func (inv inventory) matchItems(fragment string) []modItem {
	var out []modItem
	names, ids := pluginNamesIDs(inv.matchPlugins(fragment))
	for i := range names {
		out = append(out, modItem{name: names[i], id: ids[i]})
	}
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if fragment == "" {
		return out
	}
	for _, m := range inv.modules {
		if strings.Contains(strings.ToLower(m), fragment) {
			out = append(out, modItem{name: m})
		}
	}
	return out
}

func (inv inventory) hasModule(fragment string) bool {
	return containsAnyFold(strings.Join(inv.modules, "\n"), []string{strings.TrimSpace(fragment)})
}

func pluginNamesIDs(ps []crashscan.PluginEntry) ([]string, []string) {
	crashscan.SortByLoadOrder(ps, func(p crashscan.PluginEntry) string { return p.ID })
	names := make([]string, len(ps))
	ids := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
		ids[i] = p.ID
	}
	return names, ids
}

// detectProblematic matches mod warnings against installed plugins.
func detectProblematic(cats []rules.Category[rules.ModWarning], inv inventory) []ModFinding {
	var out []ModFinding
	for _, c := range cats {
		for _, w := range c.Rules {
			matched := inv.matchPlugins(w.Mod)
			if len(matched) == 0 {
				continue
			}
			names, ids := pluginNamesIDs(matched)
			out = append(out, ModFinding{
				Group:     GroupProblematic,
				Category:  c.Name,
				Name:      w.Mod,
				Plugins:   names,
				PluginIDs: ids,
				Advice:    w.Advice,
				Severity:  crashscan.SeverityWarning,
			})
		}
	}
	return out
}

// detectConflicts reports conflicts whose two mods are both installed. Each
// side must be matched by a different plugin or module, so one install whose
// name contains both fragments never conflicts with itself.
func detectConflicts(conflicts []rules.ModConflict, inv inventory) []ModFinding {
	var out []ModFinding
	for _, c := range conflicts {
		a, b, ok := distinctPair(inv.matchItems(c.Key.First), inv.matchItems(c.Key.Second))
		if !ok {
			continue
		}
		out = append(out, ModFinding{
			Group:     GroupConflict,
			Name:      c.Key.String(),
			Plugins:   []string{a.name, b.name},
			PluginIDs: []string{a.id, b.id},
			Advice:    c.Advice,
			Severity:  crashscan.SeverityWarning,
		})
	}
	return out
}

// distinctPair picks one item per side with the two items different.
// First-side items that the second side does not also match are tried first.
func distinctPair(first, second []modItem) (modItem, modItem, bool) {
	ordered := make([]modItem, 0, len(first))
	for _, x := range first {
		if !slices.Contains(second, x) {
			ordered = append(ordered, x)
		}
	}
	for _, x := range first {
		if slices.Contains(second, x) {
			ordered = append(ordered, x)
		}
	}
	for _, x := range ordered {
		for _, y := range second {
			if x != y {
				return x, y, true
			}
		}
	}
	return modItem{}, modItem{}, false
}

// detectImportant reports the status of every important mod. A mod requiring
// a GPU vendor is flagged when a GPU was detected and the requirement is the
// rival vendor or differs from the detected one.
func detectImportant(cats []rules.Category[rules.ImportantMod], inv inventory, vendor, rival string) []ModFinding {
	var out []ModFinding
	for _, c := range cats {
		for _, m := range c.Rules {
			f := ModFinding{
				Group:    GroupImportant,
				Category: c.Name,
				Name:     m.Key.Internal,
				Display:  m.Key.Display,
				Advice:   m.Advice,
			}
			matched := inv.matchPlugins(m.Key.Internal)
			installed := len(matched) > 0 || inv.hasModule(m.Key.Internal)
			switch {
			case !installed:
				f.Status = StatusNotInstalled
				f.Severity = crashscan.SeverityInfo
			case gpuMismatch(m.GPU, vendor, rival):
				f.Status = StatusInstalledWithGPUIssue
				f.Severity = crashscan.SeverityWarning
			default:
				f.Status = StatusInstalled
			}
			if len(matched) > 0 {
				f.Plugins, f.PluginIDs = pluginNamesIDs(matched)
			}
			out = append(out, f)
		}
	}
	return out
}

// gpuMismatch reports a GPU requirement that the detected vendor does not
// meet. An unclassified GPU counts as not detected.
func gpuMismatch(required, vendor, rival string) bool {
	if required == "" || !gpuKnown(vendor) {
		return false
	}
	return (rival != "" && strings.EqualFold(required, rival)) || !strings.EqualFold(required, vendor)
}

func findingsFragment(title string, findings []ModFinding, format func(ModFinding) string) *crashscan.ReportFragment {
	if len(findings) == 0 {
		return nil
	}
	sev := crashscan.SeverityNone
	lines := make([]string, len(findings))
	for i, f := range findings {
		sev = sev.Max(f.Severity)
		lines[i] = format(f)
	}
	return crashscan.NewFragment(title, bulletList(lines), crashscan.FragmentTypeFor(sev))
}

func formatPlugins(f ModFinding) string {
	parts := make([]string, len(f.Plugins))
	for i, p := range f.Plugins {
		id := f.PluginIDs[i]
		if id == "" {
			id = "??"
		}
		parts[i] = fmt.Sprintf("[%s] %s", id, p)
	}
	return strings.Join(parts, ", ")
}

func formatProblematic(f ModFinding) string {
	return fmt.Sprintf("%s (%s): %s", f.Name, formatPlugins(f), f.Advice)
}

func formatConflict(f ModFinding) string {
	return fmt.Sprintf("%s (%s): %s", f.Name, formatPlugins(f), f.Advice)
}

func formatImportant(f ModFinding) string {
	switch f.Status {
	case StatusNotInstalled:
		return fmt.Sprintf("%s is not installed. %s", f.Display, f.Advice)
	case StatusInstalledWithGPUIssue:
		return fmt.Sprintf("%s is installed, but it does not support your GPU. %s", f.Display, f.Advice)
	default:
		return fmt.Sprintf("%s is installed.", f.Display)
	}
}

// Ensure ModAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*ModAnalyzer)(nil)
