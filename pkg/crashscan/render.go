package crashscan

import (
	"encoding/json"
	"strings"
)

// maxHeadingDepth is the deepest markdown heading level.
const maxHeadingDepth = 6

var typeMarkers = map[FragmentType]string{
	FragmentError:   "❌ ",
	FragmentWarning: "⚠️ ",
	FragmentInfo:    "ℹ️ ",
}

// RenderMarkdown renders a report tree as markdown.
// The output depends only on the tree: equal trees render to identical text.
func RenderMarkdown(root *ReportFragment) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	renderMarkdown(&b, root, 1)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderMarkdown(b *strings.Builder, f *ReportFragment, depth int) {
	if f.Title != "" {
		b.WriteString(strings.Repeat("#", min(depth, maxHeadingDepth)))
		b.WriteByte(' ')
		b.WriteString(typeMarkers[f.Type])
		b.WriteString(f.Title)
		b.WriteString("\n\n")
	}
	if content := strings.TrimRight(f.Content, "\n"); content != "" {
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	for _, c := range f.Children {
		renderMarkdown(b, c, depth+1)
	}
}

// RenderJSON renders a report tree as indented JSON.
func RenderJSON(root *ReportFragment) ([]byte, error) {
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
