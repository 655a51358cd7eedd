package analyzers

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// PluginCount is a plugin named in the call stack.
type PluginCount struct {
	Name  string `json:"name"`
	ID    string `json:"id,omitempty"`
	Count int    `json:"count"`
}

// Plugin list sources, reported in the "source" metadata entry.
const (
	PluginSourceLoadOrder = "loadorder"
	PluginSourceCrashLog  = "crashlog"
	PluginSourceCallStack = "callstack"
)

var (
	quotedPluginRe = regexp.MustCompile(`(?i)"([^"\r\n]+\.(?:esp|esm|esl))"`)
	barePluginRe   = regexp.MustCompile(`(?i)\b([\w\-]+\.(?:esp|esm|esl))\b`)
)

// PluginAnalyzer resolves the plugin list of the run and reports plugins
// named in the call stack.
type PluginAnalyzer struct {
	store         *rules.Store
	game          string
	loadOrderPath string
	chunkSize     int
	logger        *slog.Logger
}

// NewPluginAnalyzer creates the plugin analyzer.
func NewPluginAnalyzer(store *rules.Store, cfg Config) *PluginAnalyzer {
	return &PluginAnalyzer{
		store:         store,
		game:          cfg.game(),
		loadOrderPath: cfg.LoadOrderPath,
		chunkSize:     cfg.ChunkSize,
		logger:        cfg.logger(),
	}
}

func (a *PluginAnalyzer) Name() string                                 { return NamePlugins }
func (a *PluginAnalyzer) Priority() int                                { return PriorityPlugins }
func (a *PluginAnalyzer) Timeout() time.Duration                       { return 0 }
func (a *PluginAnalyzer) CanAnalyze(_ *crashscan.AnalysisContext) bool { return true }

// Analyze implements crashscan.Analyzer.
func (a *PluginAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NamePlugins)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	table, source := a.resolvePlugins(ac.Log, &res)
	ignore, err := a.loadIgnore(ctx, &res)
	if err != nil {
		return res, err
	}

	counts, err := CountPlugins(ctx, ac.Log.CallStack, table, a.chunkSize)
	if err != nil {
		return res, err
	}

	var suspects []PluginCount
	for _, e := range table.Entries() {
		n := counts[strings.ToLower(e.Name)]
		if n == 0 || matchesIgnore(e.Name, ignore) {
			continue
		}
		suspects = append(suspects, PluginCount{Name: e.Name, ID: e.ID, Count: n})
	}
	SortPluginSuspects(suspects)

	limit, lightLimit := false, false
	for _, e := range table.Entries() {
		switch e.ID {
		case "FF":
			limit = true
		case "FE:FFF":
			lightLimit = true
		}
	}

	crashscan.Set(ac, CrashLogPluginsKey, table)
	crashscan.Set(ac, PluginLimitKey, limit)
	crashscan.Set(ac, LightPluginLimitKey, lightLimit)
	crashscan.Set(ac, PluginSuspectsKey, suspects)

	res.SetMeta("source", source)
	res.SetMeta("plugin_count", table.Len())
	res.SetMeta("suspects", len(suspects))
	res.SetMeta("plugin_limit", limit)
	res.SetMeta("light_plugin_limit", lightLimit)

	frag := crashscan.NewFragment("Plugin Suspects", "", crashscan.FragmentNone)
	if len(suspects) > 0 {
		res.Severity = crashscan.SeverityWarning
		lines := make([]string, len(suspects))
		for i, s := range suspects {
			id := s.ID
			if id == "" {
				id = "??"
			}
			lines[i] = fmt.Sprintf("[%s] %s | %d", id, s.Name, s.Count)
		}
		frag.Type = crashscan.FragmentWarning
		frag.Content = "These plugins were found in the call stack:\n\n" + bulletList(lines)
	} else {
		frag.Content = "No plugins were found in the call stack."
	}
	if limit {
		res.Severity = res.Severity.Max(crashscan.SeverityError)
		frag.Type = crashscan.FragmentError
		frag.Append(crashscan.NewFragment("Plugin Limit Reached",
			"A plugin is loaded at id FF. The game cannot load more than 254 full plugins; merge or convert plugins to ESL.",
			crashscan.FragmentError).WithWeight(-1))
	}
	if lightLimit {
		res.Severity = res.Severity.Max(crashscan.SeverityError)
		frag.Type = crashscan.FragmentError
		frag.Append(crashscan.NewFragment("Light Plugin Limit Reached",
			"A light plugin is loaded at id FE:FFF. No more than 4096 light plugins can be loaded.",
			crashscan.FragmentError).WithWeight(-1))
	}
	res.Fragment = frag
	return res, nil
}

// resolvePlugins picks the plugin list: external load order file, then the
// crash log's plugin section, then plugin names found in the call stack.
func (a *PluginAnalyzer) resolvePlugins(log *crashscan.ParsedLog, res *crashscan.AnalysisResult) (crashscan.PluginTable, string) {
	if a.loadOrderPath != "" {
		table, err := ReadLoadOrder(a.loadOrderPath)
		switch {
		case err != nil:
			res.Warn("load order file ignored: %v", err)
		case table.Len() == 0:
			res.Warn("load order file ignored: no plugins listed")
		default:
			return table, PluginSourceLoadOrder
		}
	}
	if log.Plugins.Len() > 0 {
		return log.Plugins, PluginSourceCrashLog
	}
	return InferPlugins(log.CallStack), PluginSourceCallStack
}

func (a *PluginAnalyzer) loadIgnore(ctx context.Context, res *crashscan.AnalysisResult) ([]string, error) {
	rs, err := a.store.Load(ctx, a.game)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		res.Warn("%v", err)
	}
	return rs.IgnorePlugins, nil
}

// InferPlugins collects plugin file names mentioned in call stack lines.
// The plugins carry no load order id.
func InferPlugins(lines []string) crashscan.PluginTable {
	var table crashscan.PluginTable
	for _, line := range lines {
		for _, m := range quotedPluginRe.FindAllStringSubmatch(line, -1) {
			table.Add(m[1], "")
		}
		rest := quotedPluginRe.ReplaceAllString(line, " ")
		for _, m := range barePluginRe.FindAllStringSubmatch(rest, -1) {
			table.Add(m[1], "")
		}
	}
	return table
}

// CountPlugins counts case-insensitive occurrences of each plugin name in the
// call stack, skipping "modified by:" annotation lines. Keys are lowercase names.
func CountPlugins(ctx context.Context, stack []string, table crashscan.PluginTable, chunkSize int) (map[string]int, error) {
	names := make([]string, 0, table.Len())
	for _, e := range table.Entries() {
		names = append(names, strings.ToLower(e.Name))
	}

	parts, err := crashscan.ScanChunks(ctx, stack, chunkSize, func(ctx context.Context, chunk []string, _ int) (map[string]int, error) {
		counts := make(map[string]int)
		for _, line := range chunk {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lower := strings.ToLower(line)
			if strings.Contains(lower, modifiedByMarker) {
				continue
			}
			for _, n := range names {
				if c := strings.Count(lower, n); c > 0 {
					counts[n] += c
				}
			}
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}

	total := make(map[string]int)
	for _, p := range parts {
		for k, v := range p {
			total[k] += v
		}
	}
	return total, nil
}

// SortPluginSuspects orders suspects by descending count, then ascending
// case-insensitive name.
func SortPluginSuspects(s []PluginCount) {
	slices.SortStableFunc(s, func(a, b PluginCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// Ensure PluginAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*PluginAnalyzer)(nil)
