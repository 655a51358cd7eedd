package crashscan

import (
	"fmt"
	"slices"
	"strings"
)

// View selects how much of the report is kept.
type View int

const (
	// ViewFull keeps every fragment.
	ViewFull View = iota
	// ViewSummary drops None-type fragments that have no children.
	ViewSummary
)

// ParseView converts "full" or "summary" to a View.
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ViewFull, nil
	case "summary":
		return ViewSummary, nil
	default:
		return ViewFull, fmt.Errorf("unknown report view %q (want full or summary)", s)
	}
}

func (v View) String() string {
	if v == ViewSummary {
		return "summary"
	}
	return "full"
}

// ReportTitle is the title of the assembled report root.
const ReportTitle = "Crash Log Analysis"

// StatusTitle is the title of the trailing section listing failed and skipped analyzers.
const StatusTitle = "Analyzer Status"

// statusWeight keeps the status section after every analyzer fragment.
const statusWeight = 1 << 20

// Assemble merges analyzer fragments into a new report tree.
//
// Fragments keep the order of results, which is the pipeline's execution
// order; at every level siblings are then stably ordered by weight. The
// input fragments are copied, never modified. Analyzers that failed or were
// skipped are listed in a trailing info section.
func Assemble(results []AnalysisResult, view View) *ReportFragment {
	root := NewFragment(ReportTitle, "", FragmentNone)

	var status []string
	for _, r := range results {
		switch r.Outcome {
		case OutcomeFailed:
			status = append(status, fmt.Sprintf("- %s: failed (%s)", r.AnalyzerName, firstOr(r.Errors, "unknown error")))
			continue
		case OutcomeSkipped:
			status = append(status, fmt.Sprintf("- %s: skipped (%s)", r.AnalyzerName, firstOr(r.Warnings, "no reason given")))
			continue
		}
		if r.Fragment == nil {
			continue
		}
		if f := copyFragment(r.Fragment, view); f != nil {
			root.Children = append(root.Children, f)
		}
	}

	if len(status) > 0 {
		root.Children = append(root.Children,
			NewFragment(StatusTitle, strings.Join(status, "\n"), FragmentInfo).WithWeight(statusWeight))
	}
	sortSiblings(root.Children)
	return root
}

// copyFragment deep-copies f, applying the view. It returns nil when the view
// elides the fragment.
func copyFragment(f *ReportFragment, view View) *ReportFragment {
	out := &ReportFragment{
		Title:   f.Title,
		Content: f.Content,
		Type:    f.Type,
		Weight:  f.Weight,
	}
	for _, c := range f.Children {
		if c == nil {
			continue
		}
		if cc := copyFragment(c, view); cc != nil {
			out.Children = append(out.Children, cc)
		}
	}
	if view == ViewSummary && out.Type == FragmentNone && len(out.Children) == 0 {
		return nil
	}
	sortSiblings(out.Children)
	return out
}

func sortSiblings(children []*ReportFragment) {
	slices.SortStableFunc(children, func(a, b *ReportFragment) int {
		return a.Weight - b.Weight
	})
}

func firstOr(list []string, def string) string {
	if len(list) == 0 || list[0] == "" {
		return def
	}
	return list[0]
}

// HighestType returns the most severe fragment type in the tree.
func (f *ReportFragment) HighestType() FragmentType {
	if f == nil {
		return FragmentNone
	}
	t := f.Type
	for _, c := range f.Children {
		if ct := c.HighestType(); ct > t {
			t = ct
		}
	}
	return t
}
