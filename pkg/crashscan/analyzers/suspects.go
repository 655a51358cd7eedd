package analyzers

import (
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

// SuspectKind tells which rule family produced a suspect.
type SuspectKind string

const (
	SuspectSignature SuspectKind = "signature"
	SuspectStack     SuspectKind = "stack"
	SuspectDLL       SuspectKind = "dll"
)

// defaultDLLAllowList applies when the rule document has no dll_allow_list.
var defaultDLLAllowList = []string{"tbbmalloc.dll"}

// dllRe matches a DLL file name in the main error.
var dllRe = regexp.MustCompile(`(?i)[\w\-.]+\.dll\b`)

// SuspectMatch is a fired error-signature, stack-pattern or DLL suspect.
type SuspectMatch struct {
	Kind SuspectKind   `json:"kind"`
	Key  rules.RuleKey `json:"key"`
	// Evidence is the matched signature, the rule's conditions, or the DLL name.
	Evidence string `json:"evidence"`
	// Context holds ME-OPT texts found in the main error.
	Context []string `json:"context,omitempty"`
}

// SuspectAnalyzer matches the main error and call stack against the error
// signatures and stack patterns of the rule set.
type SuspectAnalyzer struct {
	store  *rules.Store
	game   string
	logger *slog.Logger
}

// NewSuspectAnalyzer creates the suspect scanner.
func NewSuspectAnalyzer(store *rules.Store, cfg Config) *SuspectAnalyzer {
	return &SuspectAnalyzer{store: store, game: cfg.game(), logger: cfg.logger()}
}

func (a *SuspectAnalyzer) Name() string           { return NameSuspects }
func (a *SuspectAnalyzer) Priority() int          { return PrioritySuspects }
func (a *SuspectAnalyzer) Timeout() time.Duration { return 0 }

// CanAnalyze reports whether there is a main error or a call stack to match.
func (a *SuspectAnalyzer) CanAnalyze(ac *crashscan.AnalysisContext) bool {
	return ac.Log.MainError != "" || len(ac.Log.CallStack) > 0
}

// Analyze implements crashscan.Analyzer.
func (a *SuspectAnalyzer) Analyze(ctx context.Context, ac *crashscan.AnalysisContext) (crashscan.AnalysisResult, error) {
	res := crashscan.NewResult(NameSuspects)

	rs, err := a.store.Load(ctx, a.game)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		res.Warn("%v", err)
	}

	mainErr := strings.ToLower(ac.Log.MainError)
	stack := strings.ToLower(strings.Join(ac.Log.CallStack, "\n"))

	signatures := MatchSignatures(rs.Signatures, mainErr)
	stackHits, err := matchStackPatterns(ctx, rs.StackPatterns, mainErr, stack)
	if err != nil {
		return res, err
	}

	allow := rs.DLLAllowList
	if len(allow) == 0 {
		allow = defaultDLLAllowList
	}
	dll, hasDLL := PrimeSuspectDLL(ac.Log.MainError, allow)

	matches := make([]SuspectMatch, 0, len(signatures)+len(stackHits)+1)
	matches = append(matches, signatures...)
	matches = append(matches, stackHits...)
	if hasDLL {
		matches = append(matches, SuspectMatch{Kind: SuspectDLL, Evidence: dll})
	}
	crashscan.Set(ac, SuspectMatchesKey, matches)

	switch {
	case len(signatures) > 0:
		res.Severity = crashscan.SeverityError
	case len(stackHits) > 0:
		res.Severity = crashscan.SeverityWarning
	}
	res.SetMeta("signatures", len(signatures))
	res.SetMeta("stack_patterns", len(stackHits))
	if hasDLL {
		res.SetMeta("dll", dll)
	}
	a.logger.Debug("suspects matched", "signatures", len(signatures), "stack_patterns", len(stackHits), "dll", dll)

	frag := crashscan.NewFragment("Crash Suspects", "", crashscan.FragmentTypeFor(res.Severity))
	if len(signatures) == 0 && len(stackHits) == 0 {
		frag.Content = "No known crash suspects were found. Check the plugin and FormID suspects below."
	}
	if len(signatures) > 0 {
		frag.Append(crashscan.NewFragment("Main Error Suspects", formatSuspects(signatures), crashscan.FragmentError))
	}
	if len(stackHits) > 0 {
		frag.Append(crashscan.NewFragment("Call Stack Suspects", formatSuspects(stackHits), crashscan.FragmentWarning))
	}
	if hasDLL {
		frag.Append(crashscan.NewFragment("DLL Suspect",
			fmt.Sprintf("The main error names %s. This DLL is the prime suspect; update or remove the mod that ships it.", dll),
			crashscan.FragmentError).WithWeight(-1))
	}
	res.Fragment = frag
	return res, nil
}

// MatchSignatures returns the signatures found in the lowercase main error,
// in declaration order.
func MatchSignatures(sigs []rules.Signature, mainErr string) []SuspectMatch {
	var out []SuspectMatch
	for _, s := range sigs {
		p := strings.ToLower(s.Pattern)
		if p != "" && strings.Contains(mainErr, p) {
			out = append(out, SuspectMatch{Kind: SuspectSignature, Key: s.Key, Evidence: s.Pattern})
		}
	}
	return out
}

func matchStackPatterns(ctx context.Context, patterns []rules.StackPattern, mainErr, stack string) ([]SuspectMatch, error) {
	var out []SuspectMatch
	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m, ok := EvaluateStackPattern(p, mainErr, stack); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// EvaluateStackPattern evaluates one stack pattern against the lowercase
// main error and call stack.
//
// The rule fires when no gating condition fails and it either has a positive
// condition or one of its ME-OPT texts is in the main error.
func EvaluateStackPattern(p rules.StackPattern, mainErr, stack string) (SuspectMatch, bool) {
	var (
		positive bool
		mentions []string
	)
	for _, c := range p.Conditions {
		text := strings.ToLower(c.Text)
		switch c.Kind {
		case rules.CondContains:
			if !strings.Contains(stack, text) {
				return SuspectMatch{}, false
			}
		case rules.CondAtLeast:
			if strings.Count(stack, text) < c.Count {
				return SuspectMatch{}, false
			}
		case rules.CondNot:
			if strings.Contains(stack, text) {
				return SuspectMatch{}, false
			}
		case rules.CondMainErrorRequired:
			if !strings.Contains(mainErr, text) {
				return SuspectMatch{}, false
			}
		case rules.CondMainErrorOptional:
			if strings.Contains(mainErr, text) {
				mentions = append(mentions, c.Text)
			}
		}
		if c.Kind.Positive() {
			positive = true
		}
	}
	if !positive && len(mentions) == 0 {
		return SuspectMatch{}, false
	}

	conds := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		conds[i] = c.String()
	}
	return SuspectMatch{
		Kind:     SuspectStack,
		Key:      p.Key,
		Evidence: strings.Join(conds, ", "),
		Context:  mentions,
	}, true
}

// PrimeSuspectDLL returns the first DLL named in the main error that is not
// allow-listed.
func PrimeSuspectDLL(mainErr string, allow []string) (string, bool) {
	for _, dll := range dllRe.FindAllString(mainErr, -1) {
		if slices.ContainsFunc(allow, func(a string) bool { return strings.EqualFold(a, dll) }) {
			continue
		}
		return dll, true
	}
	return "", false
}

func formatSuspects(matches []SuspectMatch) string {
	lines := make([]string, len(matches))
	for i, m := range matches {
		line := fmt.Sprintf("**%s** (%s)", m.Key.Label, m.Key.Severity)
		if len(m.Context) > 0 {
			line += ". Main error mentions: " + strings.Join(m.Context, ", ")
		}
		lines[i] = line
	}
	return bulletList(lines)
}

// Ensure SuspectAnalyzer implements crashscan.Analyzer.
var _ crashscan.Analyzer = (*SuspectAnalyzer)(nil)
