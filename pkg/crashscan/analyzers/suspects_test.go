package analyzers_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

func pattern(t *testing.T, key string, conds ...string) rules.StackPattern {
	t.Helper()
	k, err := rules.ParseRuleKey(key)
	require.NoError(t, err)
	p := rules.StackPattern{Key: k}
	for _, c := range conds {
		cond, err := rules.ParseCondition(c)
		require.NoError(t, err)
		p.Conditions = append(p.Conditions, cond)
	}
	return p
}

func fires(p rules.StackPattern, mainErr string, stack ...string) bool {
	_, ok := analyzers.EvaluateStackPattern(p,
		strings.ToLower(mainErr),
		strings.ToLower(strings.Join(stack, "\n")))
	return ok
}

func TestEvaluateStackPattern_Not(t *testing.T) {
	p := pattern(t, "High|Conditional", "BadFunction", "NOT|SafeFunction")

	assert.False(t, fires(p, "", "BadFunction", "SafeFunction"))
	assert.True(t, fires(p, "", "BadFunction", "OtherFunction"))
}

func TestEvaluateStackPattern_MainErrorOptionalAlone(t *testing.T) {
	p := pattern(t, "Medium|Optional", "ME-OPT|OPTIONAL_ERROR")

	m, ok := analyzers.EvaluateStackPattern(p, strings.ToLower("OPTIONAL_ERROR detected"), "")
	require.True(t, ok)
	assert.Equal(t, []string{"OPTIONAL_ERROR"}, m.Context)
	assert.Equal(t, analyzers.SuspectStack, m.Kind)
	assert.Equal(t, "Optional", m.Key.Label)

	assert.False(t, fires(p, "something else"))
}

func TestEvaluateStackPattern_MainErrorOptionalNeverGates(t *testing.T) {
	p := pattern(t, "Medium|Item", "UpdateItem3D", "ME-OPT|EXCEPTION_ACCESS_VIOLATION")

	m, ok := analyzers.EvaluateStackPattern(p, "", strings.ToLower("UpdateItem3D"))
	require.True(t, ok)
	assert.Empty(t, m.Context)
}

func TestEvaluateStackPattern_MainErrorRequired(t *testing.T) {
	p := pattern(t, "High|Overflow", "BSGeometryListCullingProcess", "2|BSTriShape", "ME-REQ|EXCEPTION_STACK_OVERFLOW")
	stack := []string{"BSGeometryListCullingProcess", "BSTriShape", "BSTriShape", "BSTriShape"}

	assert.False(t, fires(p, "EXCEPTION_ACCESS_VIOLATION", stack...))
	assert.False(t, fires(p, "", stack...))
	assert.True(t, fires(p, `Unhandled exception "EXCEPTION_STACK_OVERFLOW"`, stack...))
}

func TestEvaluateStackPattern_CountBoundary(t *testing.T) {
	p := pattern(t, "Low|Player", "3|PlayerCharacter")

	assert.False(t, fires(p, "", "PlayerCharacter", "PlayerCharacter"))
	assert.True(t, fires(p, "", "PlayerCharacter", "PlayerCharacter", "PlayerCharacter"))
	assert.True(t, fires(p, "", "PlayerCharacter PlayerCharacter", "playercharacter", "PlayerCharacter"))
}

func TestEvaluateStackPattern_NotOnly(t *testing.T) {
	p := pattern(t, "Low|Nothing", "NOT|Something")
	assert.False(t, fires(p, "", "Other"))
}

const suspectDoc = `version: 1
error_signatures:
  "Critical | Stack Overflow Crash": "EXCEPTION_STACK_OVERFLOW"
  "Medium | Null Crash": "0x000000000000"
  "High | Never": "NEVER_MATCHES"
stack_patterns:
  "High | Conditional": ["BadFunction", "NOT|SafeFunction"]
  "Medium | Optional": ["ME-OPT|OPTIONAL_ERROR"]
  "Low | Counted": ["2|Loop"]
dll_allow_list: ["tbbmalloc.dll"]
`

func TestSuspectAnalyzer_Signatures(t *testing.T) {
	log := &crashscan.ParsedLog{
		MainError: `Unhandled exception "EXCEPTION_STACK_OVERFLOW" at 0x000000000000`,
		CallStack: []string{"BadFunction", "Loop"},
	}
	ac := crashscan.NewAnalysisContext(log)

	res := analyze(t, analyzers.NewSuspectAnalyzer(storeWith(suspectDoc), analyzers.Config{}), ac)
	assert.Equal(t, crashscan.SeverityError, res.Severity)
	assert.Equal(t, "2", res.Metadata["signatures"])
	assert.Equal(t, "1", res.Metadata["stack_patterns"])

	matches := crashscan.GetOr(ac, analyzers.SuspectMatchesKey, nil)
	var got []string
	for _, m := range matches {
		got = append(got, string(m.Kind)+":"+m.Key.Label)
	}
	assert.Equal(t, []string{
		"signature:Stack Overflow Crash",
		"signature:Null Crash",
		"stack:Conditional",
	}, got)
	assert.Equal(t, []string{"Main Error Suspects", "Call Stack Suspects"}, childTitles(res.Fragment))
}

func TestSuspectAnalyzer_StackOnlyIsWarning(t *testing.T) {
	log := &crashscan.ParsedLog{
		MainError: "OPTIONAL_ERROR detected",
		CallStack: []string{"Loop", "loop"},
	}
	ac := crashscan.NewAnalysisContext(log)

	res := analyze(t, analyzers.NewSuspectAnalyzer(storeWith(suspectDoc), analyzers.Config{}), ac)
	assert.Equal(t, crashscan.SeverityWarning, res.Severity)

	matches := crashscan.GetOr(ac, analyzers.SuspectMatchesKey, nil)
	require.Len(t, matches, 2)
	assert.Equal(t, "Optional", matches[0].Key.Label)
	assert.Equal(t, "Counted", matches[1].Key.Label)

	md := crashscan.RenderMarkdown(res.Fragment)
	assert.Contains(t, md, "Main error mentions: OPTIONAL_ERROR")
}

func TestSuspectAnalyzer_NothingMatched(t *testing.T) {
	ac := crashscan.NewAnalysisContext(&crashscan.ParsedLog{MainError: "EXCEPTION_ACCESS_VIOLATION"})

	res := analyze(t, analyzers.NewSuspectAnalyzer(storeWith(suspectDoc), analyzers.Config{}), ac)
	assert.Equal(t, crashscan.SeverityNone, res.Severity)
	assert.Empty(t, crashscan.GetOr(ac, analyzers.SuspectMatchesKey, nil))
	assert.Empty(t, res.Fragment.Children)
	assert.NotEmpty(t, res.Fragment.Content)
}

func TestSuspectAnalyzer_DLL(t *testing.T) {
	ac := crashscan.NewAnalysisContext(&crashscan.ParsedLog{
		MainError: `Unhandled exception "EXCEPTION_ACCESS_VIOLATION" at 0x7FFB1A2B3C4D tbbmalloc.dll+0x1234 then MyMod.dll+0x10`,
	})

	res := analyze(t, analyzers.NewSuspectAnalyzer(storeWith(suspectDoc), analyzers.Config{}), ac)
	assert.Equal(t, "MyMod.dll", res.Metadata["dll"])

	matches := crashscan.GetOr(ac, analyzers.SuspectMatchesKey, nil)
	require.Len(t, matches, 1)
	assert.Equal(t, analyzers.SuspectDLL, matches[0].Kind)

	require.Len(t, res.Fragment.Children, 1)
	assert.Equal(t, crashscan.FragmentError, res.Fragment.Children[0].Type)
	assert.Contains(t, res.Fragment.Children[0].Content, "MyMod.dll")
}

func TestPrimeSuspectDLL(t *testing.T) {
	tests := []struct {
		name    string
		mainErr string
		want    string
		wantOK  bool
	}{
		{"allow listed", "crash in tbbmalloc.dll+0x20", "", false},
		{"allow listed any case", "crash in TBBMalloc.DLL+0x20", "", false},
		{"suspect", "crash in x-cell-fo4.dll+0x20", "x-cell-fo4.dll", true},
		{"no dll", "crash in Fallout4.exe+0x20", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := analyzers.PrimeSuspectDLL(tt.mainErr, []string{"tbbmalloc.dll"})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuspectAnalyzer_CanAnalyze(t *testing.T) {
	a := analyzers.NewSuspectAnalyzer(storeWith(suspectDoc), analyzers.Config{})
	assert.False(t, a.CanAnalyze(crashscan.NewAnalysisContext(&crashscan.ParsedLog{})))
	assert.True(t, a.CanAnalyze(crashscan.NewAnalysisContext(&crashscan.ParsedLog{MainError: "x"})))
}
