package crashscan

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity ranks how strongly an analyzer result points at a crash cause.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = [...]string{"none", "info", "warning", "error", "critical"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalJSON encodes the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Max returns the higher of two severities.
func (s Severity) Max(o Severity) Severity {
	if o > s {
		return o
	}
	return s
}

// Outcome tells how an analyzer run ended.
type Outcome int

const (
	// OutcomeSuccess means the analyzer completed, with or without findings.
	OutcomeSuccess Outcome = iota
	// OutcomeSkipped means the analyzer was cancelled or ran out of time.
	OutcomeSkipped
	// OutcomeFailed means the analyzer returned an error or panicked.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalJSON encodes the outcome by name.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// FragmentType selects the styling of a report fragment.
type FragmentType int

const (
	FragmentNone FragmentType = iota
	FragmentInfo
	FragmentWarning
	FragmentError
)

func (t FragmentType) String() string {
	switch t {
	case FragmentInfo:
		return "info"
	case FragmentWarning:
		return "warning"
	case FragmentError:
		return "error"
	default:
		return "none"
	}
}

// MarshalJSON encodes the fragment type by name.
func (t FragmentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// FragmentTypeFor maps a severity to the fragment styling used for it.
func FragmentTypeFor(s Severity) FragmentType {
	switch {
	case s >= SeverityError:
		return FragmentError
	case s == SeverityWarning:
		return FragmentWarning
	case s == SeverityInfo:
		return FragmentInfo
	default:
		return FragmentNone
	}
}

// ReportFragment is a node of the report tree.
// Siblings render by ascending Weight, then insertion order.
type ReportFragment struct {
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content,omitempty"`
	Type     FragmentType      `json:"type"`
	Weight   int               `json:"weight,omitempty"`
	Children []*ReportFragment `json:"children,omitempty"`
}

// NewFragment creates a fragment with the given title, content and type.
func NewFragment(title, content string, typ FragmentType) *ReportFragment {
	return &ReportFragment{Title: title, Content: content, Type: typ}
}

// WithWeight sets the ordering weight and returns the fragment.
func (f *ReportFragment) WithWeight(w int) *ReportFragment {
	f.Weight = w
	return f
}

// Append adds children, skipping nils, and returns the fragment.
func (f *ReportFragment) Append(children ...*ReportFragment) *ReportFragment {
	for _, c := range children {
		if c != nil {
			f.Children = append(f.Children, c)
		}
	}
	return f
}

// AnalysisResult is the output of a single analyzer invocation.
type AnalysisResult struct {
	AnalyzerName string            `json:"analyzer"`
	Outcome      Outcome           `json:"outcome"`
	Success      bool              `json:"success"`
	Severity     Severity          `json:"severity"`
	Fragment     *ReportFragment   `json:"fragment,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	// Duration is wall time spent in Analyze. It is not part of the rendered report.
	Duration time.Duration `json:"-"`
}

// NewResult returns a successful result for the named analyzer.
func NewResult(name string) AnalysisResult {
	return AnalysisResult{
		AnalyzerName: name,
		Outcome:      OutcomeSuccess,
		Success:      true,
		Metadata:     make(map[string]string),
	}
}

// SkippedResult reports an analyzer that did not finish for operational reasons.
func SkippedResult(name, reason string) AnalysisResult {
	r := NewResult(name)
	r.Outcome = OutcomeSkipped
	r.Warnings = append(r.Warnings, reason)
	return r
}

// FailedResult reports an analyzer that failed with err.
func FailedResult(name string, err error) AnalysisResult {
	r := NewResult(name)
	r.Outcome = OutcomeFailed
	r.Success = false
	r.Severity = SeverityError
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

// SetMeta records a metadata value formatted with %v.
func (r *AnalysisResult) SetMeta(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = fmt.Sprint(value)
}

// Warn appends a formatted warning.
func (r *AnalysisResult) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
