package analyzers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// RecordCount is a named record found in the call stack.
type RecordCount struct {
	Record string `json:"record"`
	Count  int    `json:"count"`
}

// rspPrefixRe matches the "[RSP+38  ] 0x1A2B3C4D5E6F " prefix of stack lines.
var rspPrefixRe = regexp.MustCompile(`(?i)^\s*\[RSP\+[0-9A-F]+\s*\]\s+0x[0-9A-F]+\s+`)

// RecordAnalyzer reports named records (files, editor ids, scripts) that
// appear in the call stack.
type RecordAnalyzer struct {
	store     *rules.Store
	game      string
	chunkSize int
	logger    *slog.Logger
}

// NewRecordAnalyzer creates the record scanner.
func NewRecordAnalyzer(store *rules.Store, cfg Config) *RecordAnalyzer {
	return &RecordAnalyzer{store: store, game: cfg.game(), chunkSize: cfg.ChunkSize, logger: cfg.logger()}
}

func (a *RecordAnalyzer) Name() string           { return NameRecords }
func (a *RecordAnalyzer) Priority() int          { return PriorityRecords }
func (a *RecordAnalyzer) Timeout() time.Duration { return 0 }

// CanAnalyze reports whether there is a call stack to scan.
func (a *RecordAnalyzer) CanAnalyze(ac *crashscan.AnalysisContext) bool {
	return len(ac.Log.CallStack) > 0
}

// Analyze implements crashscan.Analyzer.
func (a *RecordAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameRecords)

	rs, err := a.store.Load(ctx, a.game)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Warn("%v", err)
	}

	records, err := FindRecords(ctx, ac.Log.CallStack, rs.Records, rs.RecordsExclude, a.chunkSize)
	if err != nil {
		return res, err
	}
	crashscan.Set(ac, FoundRecordsKey, records)
	res.SetMeta("records", len(records))

	if len(records) == 0 {
		res.Fragment = crashscan.NewFragment("Named Records", "No named records were found in the call stack.", crashscan.FragmentNone)
		return res, nil
	}
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = fmt.Sprintf("%s | %d", r.Record, r.Count)
	}
	res.Severity = crashscan.SeverityInfo
	res.Fragment = crashscan.NewFragment("Named Records",
		"These records were found in the call stack and may be involved in the crash:\n\n"+bulletList(lines),
		crashscan.FragmentInfo)
	return res, nil
}

// FindRecords returns call stack lines containing a record marker and no
// excluded marker, with the stack address prefix removed. Identical records
// are counted and kept in order of first occurrence.
func FindRecords(ctx context.Context, stack, include, exclude []string, chunkSize int) ([]RecordCount, error) {
	if len(include) == 0 {
		return nil, nil
	}
	parts, err := crashscan.ScanChunks(ctx, stack, chunkSize, func(ctx context.Context, chunk []string, _ int) ([]string, error) {
		var found []string
		for _, line := range chunk {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !containsAnyFold(line, include) || containsAnyFold(line, exclude) {
				continue
			}
			rec := strings.TrimSpace(rspPrefixRe.ReplaceAllString(line, ""))
			if rec != "" {
				found = append(found, rec)
			}
		}
		return found, nil
	})
	if err != nil {
		return nil, err
	}

	var out []RecordCount
	index := make(map[string]int)
	for _, part := range parts {
		for _, rec := range part {
			if i, ok := index[rec]; ok {
				out[i].Count++
				continue
			}
			index[rec] = len(out)
			out = append(out, RecordCount{Record: rec, Count: 1})
		}
	}
	return out, nil
}

// Ensure RecordAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*RecordAnalyzer)(nil)
