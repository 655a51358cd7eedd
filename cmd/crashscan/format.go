package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

// headingStyles colour markdown headings by the marker the renderer puts in
// front of the title.
var headingStyles = []struct {
	marker string
	color  *color.Color
}{
	{"❌", color.New(color.FgRed, color.Bold)},
	{"⚠️", color.New(color.FgYellow, color.Bold)},
	{"ℹ️", color.New(color.FgCyan, color.Bold)},
}

var plainHeading = color.New(color.Bold)

// writeReport writes a report in the given format.
func writeReport(w io.Writer, format string, report *crashscan.ReportFragment) error {
	switch format {
	case formatMarkdown:
		_, err := io.WriteString(w, colorizeMarkdown(crashscan.RenderMarkdown(report)))
		return err
	case formatJSON:
		data, err := crashscan.RenderJSON(report)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// colorizeMarkdown colours heading lines. It returns md unchanged when
// colour output is disabled.
func colorizeMarkdown(md string) string {
	if color.NoColor {
		return md
	}
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "#") {
			continue
		}
		c := plainHeading
		for _, s := range headingStyles {
			if strings.Contains(line, s.marker) {
				c = s.color
				break
			}
		}
		lines[i] = c.Sprint(line)
	}
	return strings.Join(lines, "\n")
}

// writeStats writes a table with one row per analyzer result.
func writeStats(w io.Writer, results []crashscan.AnalysisResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Analyzer", "Outcome", "Severity", "Duration", "Notes"})

	var data [][]string
	for _, r := range results {
		data = append(data, []string{
			r.AnalyzerName,
			r.Outcome.String(),
			r.Severity.String(),
			r.Duration.Round(time.Microsecond).String(),
			resultNote(r),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// resultNote returns the first error or warning of r.
func resultNote(r crashscan.AnalysisResult) string {
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	if len(r.Warnings) > 0 {
		return r.Warnings[0]
	}
	return ""
}
