package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

func TestParseRuleKey(t *testing.T) {
	tests := []struct {
		raw      string
		severity crashscan.Severity
		label    string
	}{
		{"High|Conditional", crashscan.SeverityError, "Conditional"},
		{" medium | Optional Crash ", crashscan.SeverityWarning, "Optional Crash"},
		{"6 | Stack Overflow", crashscan.SeverityCritical, "Stack Overflow"},
		{"2|Minor", crashscan.SeverityInfo, "Minor"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			key, err := rules.ParseRuleKey(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.severity, key.Severity)
			assert.Equal(t, tt.label, key.Label)
		})
	}
}

func TestParseRuleKey_Malformed(t *testing.T) {
	for _, raw := range []string{"NoSeparator", "High|", "|Label", "Extreme|Label", "9|Label"} {
		_, err := rules.ParseRuleKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseConflictKey(t *testing.T) {
	key, err := rules.ParseConflictKey("BetterPowerArmor | KnockoutFramework")
	require.NoError(t, err)
	assert.Equal(t, rules.ConflictKey{First: "BetterPowerArmor", Second: "KnockoutFramework"}, key)

	_, err = rules.ParseConflictKey("a | b | c")
	assert.Error(t, err)
	_, err = rules.ParseConflictKey("lonely")
	assert.Error(t, err)
}

func TestParseImportantKey(t *testing.T) {
	key, err := rules.ParseImportantKey("x-cell | X-Cell")
	require.NoError(t, err)
	assert.Equal(t, "x-cell", key.Internal)
	assert.Equal(t, "X-Cell", key.Display)
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw  string
		want rules.Condition
	}{
		{"BadFunction", rules.Condition{Kind: rules.CondContains, Text: "BadFunction"}},
		{"3|NavMesh", rules.Condition{Kind: rules.CondAtLeast, Text: "NavMesh", Count: 3}},
		{"NOT|SafeFunction", rules.Condition{Kind: rules.CondNot, Text: "SafeFunction"}},
		{"not | SafeFunction", rules.Condition{Kind: rules.CondNot, Text: "SafeFunction"}},
		{"ME-REQ|EXCEPTION_STACK_OVERFLOW", rules.Condition{Kind: rules.CondMainErrorRequired, Text: "EXCEPTION_STACK_OVERFLOW"}},
		{"ME-OPT|OPTIONAL_ERROR", rules.Condition{Kind: rules.CondMainErrorOptional, Text: "OPTIONAL_ERROR"}},
		{"Foo|Bar", rules.Condition{Kind: rules.CondContains, Text: "Foo|Bar"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := rules.ParseCondition(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCondition_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "0|Text", "NOT|", "2|"} {
		_, err := rules.ParseCondition(raw)
		assert.Error(t, err, raw)
	}
}

func TestConditionKind(t *testing.T) {
	assert.False(t, rules.CondMainErrorOptional.Gating())
	assert.True(t, rules.CondNot.Gating())
	assert.False(t, rules.CondNot.Positive())
	assert.True(t, rules.CondMainErrorRequired.Positive())
}
