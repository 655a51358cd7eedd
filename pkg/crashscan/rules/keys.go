package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

// RuleKey is the parsed form of a "severity | label" rule key.
type RuleKey struct {
	// Level is the severity as written, e.g. "High" or "5".
	Level    string
	Severity crashscan.Severity
	Label    string
}

func (k RuleKey) String() string {
	return k.Level + " | " + k.Label
}

var severityWords = map[string]crashscan.Severity{
	"critical": crashscan.SeverityCritical,
	"severe":   crashscan.SeverityCritical,
	"high":     crashscan.SeverityError,
	"error":    crashscan.SeverityError,
	"medium":   crashscan.SeverityWarning,
	"moderate": crashscan.SeverityWarning,
	"warning":  crashscan.SeverityWarning,
	"low":      crashscan.SeverityInfo,
	"info":     crashscan.SeverityInfo,
}

// ParseRuleKey parses "severity | label". Severity is a word (critical, high,
// medium, low, ...) or a number from 1 to 6, where 5 and 6 are critical.
func ParseRuleKey(raw string) (RuleKey, error) {
	level, label, ok := strings.Cut(raw, "|")
	if !ok {
		return RuleKey{}, fmt.Errorf("missing '|' separator")
	}
	level = strings.TrimSpace(level)
	label = strings.TrimSpace(label)
	if level == "" || label == "" {
		return RuleKey{}, fmt.Errorf("severity and label must both be non-empty")
	}
	sev, err := parseSeverity(level)
	if err != nil {
		return RuleKey{}, err
	}
	return RuleKey{Level: level, Severity: sev, Label: label}, nil
}

func parseSeverity(s string) (crashscan.Severity, error) {
	if n, err := strconv.Atoi(s); err == nil {
		switch {
		case n >= 5 && n <= 6:
			return crashscan.SeverityCritical, nil
		case n == 4:
			return crashscan.SeverityError, nil
		case n == 3:
			return crashscan.SeverityWarning, nil
		case n >= 1 && n <= 2:
			return crashscan.SeverityInfo, nil
		default:
			return crashscan.SeverityNone, fmt.Errorf("numeric severity %d out of range 1-6", n)
		}
	}
	if sev, ok := severityWords[strings.ToLower(s)]; ok {
		return sev, nil
	}
	return crashscan.SeverityNone, fmt.Errorf("unknown severity %q", s)
}

// ConflictKey is the parsed form of a "modA | modB" conflict key.
type ConflictKey struct {
	First  string
	Second string
}

func (k ConflictKey) String() string {
	return k.First + " | " + k.Second
}

// ParseConflictKey parses "modA | modB".
func ParseConflictKey(raw string) (ConflictKey, error) {
	first, second, err := splitPair(raw)
	if err != nil {
		return ConflictKey{}, err
	}
	return ConflictKey{First: first, Second: second}, nil
}

// ImportantKey is the parsed form of an "internal | Display Name" key.
// Internal is matched against plugin and module names; Display is shown to users.
type ImportantKey struct {
	Internal string
	Display  string
}

func (k ImportantKey) String() string {
	return k.Internal + " | " + k.Display
}

// ParseImportantKey parses "internal | Display Name".
func ParseImportantKey(raw string) (ImportantKey, error) {
	internal, display, err := splitPair(raw)
	if err != nil {
		return ImportantKey{}, err
	}
	return ImportantKey{Internal: internal, Display: display}, nil
}

func splitPair(raw string) (string, string, error) {
	a, b, ok := strings.Cut(raw, "|")
	if !ok {
		return "", "", fmt.Errorf("missing '|' separator")
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", "", fmt.Errorf("both sides of '|' must be non-empty")
	}
	if strings.Contains(b, "|") {
		return "", "", fmt.Errorf("more than one '|' separator")
	}
	return a, b, nil
}

// ConditionKind selects how a stack-pattern condition is evaluated.
type ConditionKind int

const (
	// CondContains requires the text somewhere in the call stack.
	CondContains ConditionKind = iota
	// CondAtLeast requires the text at least Count times in the call stack.
	CondAtLeast
	// CondNot disqualifies the rule when the text is in the call stack.
	CondNot
	// CondMainErrorRequired requires the text in the main error.
	CondMainErrorRequired
	// CondMainErrorOptional reports the text when the main error contains it.
	// It never disqualifies a rule.
	CondMainErrorOptional
)

func (k ConditionKind) String() string {
	switch k {
	case CondContains:
		return "contains"
	case CondAtLeast:
		return "at-least"
	case CondNot:
		return "not"
	case CondMainErrorRequired:
		return "me-req"
	case CondMainErrorOptional:
		return "me-opt"
	default:
		return fmt.Sprintf("condition(%d)", int(k))
	}
}

// Gating reports whether the condition can decide a rule on its own.
func (k ConditionKind) Gating() bool {
	return k != CondMainErrorOptional
}

// Positive reports whether a satisfied condition is evidence for the rule.
func (k ConditionKind) Positive() bool {
	return k == CondContains || k == CondAtLeast || k == CondMainErrorRequired
}

// Condition is one parsed stack-pattern sub-condition.
type Condition struct {
	Kind ConditionKind
	// Text is matched case-insensitively.
	Text  string
	Count int
}

func (c Condition) String() string {
	switch c.Kind {
	case CondAtLeast:
		return strconv.Itoa(c.Count) + "|" + c.Text
	case CondNot:
		return "NOT|" + c.Text
	case CondMainErrorRequired:
		return "ME-REQ|" + c.Text
	case CondMainErrorOptional:
		return "ME-OPT|" + c.Text
	default:
		return c.Text
	}
}

// ParseCondition parses one sub-condition:
//
//	text          text appears in the call stack
//	N|text        text appears at least N times in the call stack
//	NOT|text      text does not appear in the call stack
//	ME-REQ|text   main error contains text
//	ME-OPT|text   main error text reported as context, never gating
//
// A prefix that is none of these leaves the whole string as plain text.
func ParseCondition(raw string) (Condition, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Condition{}, fmt.Errorf("empty condition")
	}

	prefix, text, ok := strings.Cut(raw, "|")
	if !ok {
		return Condition{Kind: CondContains, Text: raw}, nil
	}
	prefix = strings.TrimSpace(prefix)
	text = strings.TrimSpace(text)

	var cond Condition
	switch strings.ToUpper(prefix) {
	case "NOT":
		cond = Condition{Kind: CondNot, Text: text}
	case "ME-REQ":
		cond = Condition{Kind: CondMainErrorRequired, Text: text}
	case "ME-OPT":
		cond = Condition{Kind: CondMainErrorOptional, Text: text}
	default:
		n, err := strconv.Atoi(prefix)
		if err != nil {
			return Condition{Kind: CondContains, Text: raw}, nil
		}
		if n < 1 {
			return Condition{}, fmt.Errorf("occurrence count must be at least 1, got %d", n)
		}
		cond = Condition{Kind: CondAtLeast, Text: text, Count: n}
	}
	if cond.Text == "" {
		return Condition{}, fmt.Errorf("condition %q has no text", raw)
	}
	return cond, nil
}
