package crashscan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

func sampleResults() []crashscan.AnalysisResult {
	gpu := crashscan.NewResult("gpu")
	gpu.Fragment = crashscan.NewFragment("GPU", "AMD Radeon RX 6800", crashscan.FragmentInfo)

	plugins := crashscan.NewResult("plugins")
	plugins.Fragment = crashscan.NewFragment("Plugin Suspects", "", crashscan.FragmentWarning).Append(
		crashscan.NewFragment("Late", "second by weight", crashscan.FragmentNone).WithWeight(10),
		crashscan.NewFragment("Empty", "", crashscan.FragmentNone),
		crashscan.NewFragment("Early", "first by weight", crashscan.FragmentWarning).WithWeight(-1),
	)

	quiet := crashscan.NewResult("records")
	quiet.Fragment = crashscan.NewFragment("Records", "", crashscan.FragmentNone)

	return []crashscan.AnalysisResult{
		gpu,
		plugins,
		quiet,
		crashscan.FailedResult("formid", assert.AnError),
		crashscan.SkippedResult("fcx", "analysis timed out after 1s"),
	}
}

func childTitles(f *crashscan.ReportFragment) []string {
	out := make([]string, len(f.Children))
	for i, c := range f.Children {
		out[i] = c.Title
	}
	return out
}

func TestAssemble_Full(t *testing.T) {
	report := crashscan.Assemble(sampleResults(), crashscan.ViewFull)

	assert.Equal(t, crashscan.ReportTitle, report.Title)
	assert.Equal(t, []string{"GPU", "Plugin Suspects", "Records", crashscan.StatusTitle}, childTitles(report))
	assert.Equal(t, []string{"Early", "Empty", "Late"}, childTitles(report.Children[1]))

	status := report.Children[3]
	assert.Equal(t, crashscan.FragmentInfo, status.Type)
	assert.Contains(t, status.Content, "- formid: failed")
	assert.Contains(t, status.Content, "- fcx: skipped (analysis timed out after 1s)")
}

func TestAssemble_Summary(t *testing.T) {
	report := crashscan.Assemble(sampleResults(), crashscan.ViewSummary)

	assert.Equal(t, []string{"GPU", "Plugin Suspects", crashscan.StatusTitle}, childTitles(report))
	assert.Equal(t, []string{"Early", "Late"}, childTitles(report.Children[1]))
}

func TestAssemble_DoesNotModifyInput(t *testing.T) {
	results := sampleResults()
	crashscan.Assemble(results, crashscan.ViewSummary)

	assert.Equal(t, []string{"Late", "Empty", "Early"}, childTitles(results[1].Fragment))
}

func TestAssemble_NoStatusWhenAllSucceed(t *testing.T) {
	report := crashscan.Assemble(sampleResults()[:2], crashscan.ViewFull)
	assert.NotContains(t, childTitles(report), crashscan.StatusTitle)
	assert.Equal(t, crashscan.FragmentWarning, report.HighestType())
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	first := crashscan.RenderMarkdown(crashscan.Assemble(sampleResults(), crashscan.ViewFull))
	second := crashscan.RenderMarkdown(crashscan.Assemble(sampleResults(), crashscan.ViewFull))
	assert.Equal(t, first, second)

	assert.Contains(t, first, "# Crash Log Analysis\n")
	assert.Contains(t, first, "## ℹ️ GPU\n\nAMD Radeon RX 6800\n")
	assert.Contains(t, first, "### ⚠️ Early\n\nfirst by weight\n")
}

func TestRenderMarkdown_Nil(t *testing.T) {
	assert.Empty(t, crashscan.RenderMarkdown(nil))
}

func TestRenderJSON(t *testing.T) {
	report := crashscan.Assemble(sampleResults(), crashscan.ViewSummary)
	first, err := crashscan.RenderJSON(report)
	require.NoError(t, err)
	second, err := crashscan.RenderJSON(report)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Equal(t, crashscan.ReportTitle, decoded["title"])
	assert.Equal(t, "none", decoded["type"])
}

func TestParseView(t *testing.T) {
	v, err := crashscan.ParseView("Summary")
	require.NoError(t, err)
	assert.Equal(t, crashscan.ViewSummary, v)

	v, err = crashscan.ParseView("")
	require.NoError(t, err)
	assert.Equal(t, crashscan.ViewFull, v)

	_, err = crashscan.ParseView("brief")
	assert.Error(t, err)
}
