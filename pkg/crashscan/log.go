package crashscan

import "strings"

// ParsedLog is the normalized representation of one crash log.
// It is created once per scan and must be treated as read-only afterwards;
// all analyzers of a run share the same instance.
type ParsedLog struct {
	// FilePath is the crash log location, informational only.
	FilePath string

	// MainError is the unhandled exception line, e.g.
	// `Unhandled exception "EXCEPTION_ACCESS_VIOLATION" at 0x7FF6...`.
	MainError string

	// CallStack holds the probable call stack, register and stack lines in log order.
	CallStack []string

	// Plugins is the plugin list from the PLUGINS section.
	Plugins PluginTable

	// SystemSpecs holds the SYSTEM SPECS section lines.
	SystemSpecs []string

	// Settings maps crash generator setting names to their raw values.
	Settings map[string]string

	// XSEModules lists script extender plugin DLLs (F4SE/SKSE PLUGINS section).
	XSEModules []string

	GameVersion     string
	CrashGenName    string
	CrashGenVersion string
}

// Setting returns the raw value of a crash generator setting.
// Lookup is case-insensitive.
func (l *ParsedLog) Setting(name string) (string, bool) {
	if v, ok := l.Settings[name]; ok {
		return v, true
	}
	for k, v := range l.Settings {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// HasModule reports whether a script extender module name appears in the
// module list. Matching is case-insensitive substring.
func (l *ParsedLog) HasModule(name string) bool {
	name = strings.ToLower(name)
	for _, m := range l.XSEModules {
		if strings.Contains(strings.ToLower(m), name) {
			return true
		}
	}
	return false
}

// PluginEntry is one plugin of the load order.
type PluginEntry struct {
	Name string `json:"name"`
	// ID is the load order id: "00".."FF", "FE:000".."FE:FFF", or empty when unresolved.
	ID string `json:"id"`
}

// PluginTable is an ordered plugin list with case-insensitive name lookup.
// The zero value is an empty table ready to use.
type PluginTable struct {
	entries []PluginEntry
	index   map[string]int
}

// NewPluginTable builds a table from entries. Later duplicates of a name
// (case-insensitive) replace the id of the first occurrence.
func NewPluginTable(entries ...PluginEntry) PluginTable {
	var t PluginTable
	for _, e := range entries {
		t.Add(e.Name, e.ID)
	}
	return t
}

// Add inserts or updates a plugin.
func (t *PluginTable) Add(name, id string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	key := strings.ToLower(name)
	if i, ok := t.index[key]; ok {
		t.entries[i].ID = NormalizePluginID(id)
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, PluginEntry{Name: name, ID: NormalizePluginID(id)})
}

// Len returns the number of plugins.
func (t PluginTable) Len() int { return len(t.entries) }

// Entries returns a copy of the plugins in load order.
func (t PluginTable) Entries() []PluginEntry {
	out := make([]PluginEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// ID returns the load order id of a plugin.
func (t PluginTable) ID(name string) (string, bool) {
	i, ok := t.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return t.entries[i].ID, true
}

// Has reports whether the plugin is in the table.
func (t PluginTable) Has(name string) bool {
	_, ok := t.ID(name)
	return ok
}

// ByID returns the first plugin carrying the given load order id.
func (t PluginTable) ByID(id string) (PluginEntry, bool) {
	id = NormalizePluginID(id)
	if id == "" {
		return PluginEntry{}, false
	}
	for _, e := range t.entries {
		if e.ID == id {
			return e, true
		}
	}
	return PluginEntry{}, false
}

// Find returns the first plugin whose name contains fragment (case-insensitive).
func (t PluginTable) Find(fragment string) (PluginEntry, bool) {
	fragment = strings.ToLower(fragment)
	if fragment == "" {
		return PluginEntry{}, false
	}
	for _, e := range t.entries {
		if strings.Contains(strings.ToLower(e.Name), fragment) {
			return e, true
		}
	}
	return PluginEntry{}, false
}
