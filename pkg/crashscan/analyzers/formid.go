package analyzers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

// FormIDKey identifies a FormID database entry.
type FormIDKey struct {
	// Plugin is the plugin file name, e.g. "Fallout4.esm".
	Plugin string
	// FormID is the uppercase 6-hex-digit id without the load order prefix.
	FormID string
}

// FormIDDatabase looks up FormID descriptions. Lookups are best effort.
type FormIDDatabase interface {
	// IsAvailable reports whether the database can serve lookups at all.
	IsAvailable() bool
	// Initialize prepares the database. It is called before every batch and
	// must be cheap once the database is ready.
	Initialize(ctx context.Context) error
	// GetEntries returns one description per key, nil where none is known.
	GetEntries(ctx context.Context, keys []FormIDKey) ([]*string, error)
}

// FormIDMatch is a FormID found in the call stack.
type FormIDMatch struct {
	// FormID is the uppercase 8-hex-digit id.
	FormID string `json:"form_id"`
	Count  int    `json:"count"`
	// PluginID is the load order id the FormID points to: "00".."FD" or "FE:xxx".
	PluginID string `json:"plugin_id"`
	// Plugin is the owning plugin, empty when no plugin has PluginID.
	Plugin      string `json:"plugin,omitempty"`
	Description string `json:"description,omitempty"`
}

// formIDRe matches "Form ID: 0x0001A2B3". Ids of any other length are ignored.
var formIDRe = regexp.MustCompile(`(?i)Form\s*ID:\s*0x([0-9A-F]{8})\b`)

// FormIDAnalyzer reports FormIDs referenced by the call stack and the plugins
// that define them.
type FormIDAnalyzer struct {
	db        FormIDDatabase
	chunkSize int
	logger    *slog.Logger
}

// NewFormIDAnalyzer creates the FormID analyzer.
func NewFormIDAnalyzer(cfg Config) *FormIDAnalyzer {
	return &FormIDAnalyzer{db: cfg.FormIDs, chunkSize: cfg.ChunkSize, logger: cfg.logger()}
}

func (a *FormIDAnalyzer) Name() string           { return NameFormIDs }
func (a *FormIDAnalyzer) Priority() int          { return PriorityFormIDs }
func (a *FormIDAnalyzer) Timeout() time.Duration { return 0 }

// CanAnalyze reports whether there is a call stack to scan.
func (a *FormIDAnalyzer) CanAnalyze(ac *crashscan.AnalysisContext) bool {
	return len(ac.Log.CallStack) > 0
}

// Analyze implements crashscan.Analyzer.
func (a *FormIDAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameFormIDs)

	matches, err := ExtractFormIDs(ctx, ac.Log.CallStack, a.chunkSize)
	if err != nil {
		return res, err
	}
	ResolveFormIDs(matches, pluginsOf(ac))
	a.enrich(ctx, matches)
	crashscan.SortByLoadOrder(matches, func(m FormIDMatch) string {
		if m.Plugin == "" {
			return ""
		}
		return m.PluginID
	})

	crashscan.Set(ac, FormIDSuspectsKey, matches)
	res.SetMeta("formids", len(matches))

	if len(matches) == 0 {
		res.Fragment = crashscan.NewFragment("FormID Suspects", "No FormIDs were found in the call stack.", crashscan.FragmentNone)
		return res, nil
	}

	lines := make([]string, len(matches))
	for i, m := range matches {
		line := "Form ID: " + m.FormID
		if m.Plugin != "" {
			line += fmt.Sprintf(" | [%s] %s", m.PluginID, m.Plugin)
		}
		if m.Description != "" {
			line += " | " + m.Description
		}
		lines[i] = fmt.Sprintf("%s | %d", line, m.Count)
	}
	res.Severity = crashscan.SeverityWarning
	res.Fragment = crashscan.NewFragment("FormID Suspects",
		"These FormIDs were found in the call stack. Open the plugins in xEdit to check the records:\n\n"+bulletList(lines),
		crashscan.FragmentWarning)
	return res, nil
}

// ExtractFormIDs finds FormIDs in the call stack, in order of first
// occurrence, counting every occurrence. FormIDs starting with FF are
// runtime-generated and dropped.
func ExtractFormIDs(ctx context.Context, stack []string, chunkSize int) ([]FormIDMatch, error) {
	parts, err := crashscan.ScanChunks(ctx, stack, chunkSize, func(ctx context.Context, chunk []string, _ int) ([]string, error) {
		var ids []string
		for _, line := range chunk {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, m := range formIDRe.FindAllStringSubmatch(line, -1) {
				id := strings.ToUpper(m[1])
				if strings.HasPrefix(id, "FF") {
					continue
				}
				ids = append(ids, id)
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}

	var out []FormIDMatch
	index := make(map[string]int)
	for _, ids := range parts {
		for _, id := range ids {
			if i, ok := index[id]; ok {
				out[i].Count++
				continue
			}
			index[id] = len(out)
			out = append(out, FormIDMatch{FormID: id, Count: 1, PluginID: PluginIDOf(id)})
		}
	}
	return out, nil
}

// PluginIDOf returns the load order id encoded in a FormID: "FE:xxx" for
// light plugins, otherwise the first byte.
func PluginIDOf(formID string) string {
	formID = strings.ToUpper(formID)
	if len(formID) != 8 {
		return ""
	}
	if strings.HasPrefix(formID, "FE") {
		return "FE:" + formID[2:5]
	}
	return formID[:2]
}

// localFormID returns the part of a FormID that is stable across load orders.
func localFormID(formID string) string {
	if strings.HasPrefix(formID, "FE") {
		return "000" + formID[5:]
	}
	return formID[2:]
}

// ResolveFormIDs fills in the owning plugin of each match.
func ResolveFormIDs(matches []FormIDMatch, plugins crashscan.PluginTable) {
	for i := range matches {
		if e, ok := plugins.ByID(matches[i].PluginID); ok {
			matches[i].Plugin = e.Name
		}
	}
}

// enrich adds database descriptions. Failures leave the matches unchanged.
func (a *FormIDAnalyzer) enrich(ctx context.Context, matches []FormIDMatch) {
	if a.db == nil || !a.db.IsAvailable() {
		return
	}
	var (
		keys []FormIDKey
		idx  []int
	)
	for i, m := range matches {
		if m.Plugin == "" {
			continue
		}
		keys = append(keys, FormIDKey{Plugin: m.Plugin, FormID: localFormID(m.FormID)})
		idx = append(idx, i)
	}
	if len(keys) == 0 {
		return
	}

	if err := a.db.Initialize(ctx); err != nil {
		a.logger.Debug("formid database unavailable", "error", err)
		return
	}
	descs, err := a.db.GetEntries(ctx, keys)
	if err != nil {
		a.logger.Debug("formid lookup failed", "error", err)
		return
	}
	for j, d := range descs {
		if j < len(idx) && d != nil {
			matches[idx[j]].Description = *d
		}
	}
}

// Ensure FormIDAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*FormIDAnalyzer)(nil)
