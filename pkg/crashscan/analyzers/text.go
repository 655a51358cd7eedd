package analyzers

import (
	"path"
	"strings"
)

// modifiedByMarker marks call stack lines that annotate a record's override
// chain rather than the crash itself.
const modifiedByMarker = "modified by:"

// isEnabled reports whether a raw setting value means "on".
func isEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// isDisabled reports whether a raw setting value means "off".
func isDisabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return true
	}
	return false
}

// matchesIgnore reports whether name is covered by an ignore list entry:
// an exact name, a glob pattern, or a substring. Matching ignores case.
func matchesIgnore(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if p == lower {
			return true
		}
		if strings.ContainsAny(p, "*?[") {
			if ok, err := path.Match(p, lower); err == nil && ok {
				return true
			}
			continue
		}
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// bulletList renders items as a markdown list.
func bulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "- " + strings.Join(items, "\n- ")
}

// containsAnyFold reports whether any of needles occurs in s, ignoring case.
func containsAnyFold(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
