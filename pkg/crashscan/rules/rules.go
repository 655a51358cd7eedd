// Package rules loads the curated rule documents crash log analyzers match
// against: error signatures, stack patterns, mod warnings, conflicts,
// important mods, record markers, settings checks and file manifests.
//
// Rule documents are YAML files named after a game ("fallout4.yaml").
// A [Store] loads each document at most once and serves the parsed
// [RuleSet] for the rest of the process.
package rules

// Document is the raw structure of a YAML rule document.
//
// Example YAML document:
//
//	version: 1
//	error_signatures:
//	  "High | Stack Overflow Crash": "EXCEPTION_STACK_OVERFLOW"
//	stack_patterns:
//	  "Medium | Animation Crash": ["hkbVariableBindingSet", "NOT|BSAnimationGraphManager"]
//	mod_warnings:
//	  frequent:
//	    "ScrapEverything": "Known to break precombines."
//	mod_conflicts:
//	  "BetterPowerArmor | KnockoutFramework": "These mods patch the same records."
//	important_mods:
//	  core:
//	    "f4se | Fallout 4 Script Extender": "Required by most mods."
//	ignore_plugins: ["Fallout4.esm"]
type Document struct {
	// Version is the rule document format version. Currently only version 1 is supported.
	Version int `yaml:"version"`

	ErrorSignatures OrderedMap[string]                     `yaml:"error_signatures"`
	StackPatterns   OrderedMap[StringList]                 `yaml:"stack_patterns"`
	ModWarnings     OrderedMap[OrderedMap[string]]         `yaml:"mod_warnings"`
	ModConflicts    OrderedMap[string]                     `yaml:"mod_conflicts"`
	ImportantMods   OrderedMap[OrderedMap[ImportantValue]] `yaml:"important_mods"`

	// IgnorePlugins holds exact names, glob patterns or substrings of plugins
	// never reported as suspects.
	IgnorePlugins []string `yaml:"ignore_plugins"`

	// Records and RecordsExclude select the call stack lines reported as records.
	Records        []string `yaml:"records"`
	RecordsExclude []string `yaml:"records_exclude"`

	// DLLAllowList names DLLs never reported as prime suspects.
	DLLAllowList []string `yaml:"dll_allow_list"`

	Settings SettingsRules `yaml:"settings"`

	FCXFiles []FCXEntry `yaml:"fcx_files"`
}

// SettingsRules configures the crash generator settings checks.
// Empty fields take the values of [DefaultSettingsRules].
type SettingsRules struct {
	AchievementsSetting string   `yaml:"achievements_setting"`
	AchievementsMods    []string `yaml:"achievements_mods"`

	MemoryManagerSetting string   `yaml:"memory_manager_setting"`
	XCellModules         []string `yaml:"xcell_modules"`
	BakaModules          []string `yaml:"baka_modules"`
	// XCellOverlap lists allocator settings X-Cell replaces.
	XCellOverlap []string `yaml:"xcell_overlap"`

	ArchiveLimitSetting string `yaml:"archive_limit_setting"`
	// ArchiveLimitFixedIn is the first crash generator version where the
	// archive limit check no longer applies.
	ArchiveLimitFixedIn string `yaml:"archive_limit_fixed_in"`

	LooksMenuModules []string `yaml:"looksmenu_modules"`
	LooksMenuSetting string   `yaml:"looksmenu_setting"`

	GPUFlags []GPUFlag `yaml:"gpu_flags"`

	// DisabledIgnore lists settings left out of the disabled settings listing.
	DisabledIgnore []string `yaml:"disabled_ignore"`
}

// GPUFlag is a crash generator setting that only makes sense on one GPU vendor.
type GPUFlag struct {
	Setting string `yaml:"setting"`
	Vendor  string `yaml:"vendor"`
	Advice  string `yaml:"advice"`
}

// FCXEntry is one file the FCX check expects under the game directory.
type FCXEntry struct {
	// Path is relative to the game directory, using forward slashes.
	Path string `yaml:"path"`
	// SHA256 is the expected lowercase hex digest. Empty skips the hash check.
	SHA256 string `yaml:"sha256"`
	// Advice is shown when the file is missing or modified.
	Advice string `yaml:"advice"`
}

// DefaultSettingsRules returns the settings check configuration for Buffout 4.
func DefaultSettingsRules() SettingsRules {
	return SettingsRules{
		AchievementsSetting:  "Achievements",
		AchievementsMods:     []string{"achievements.dll", "unlimitedsurvivalmode.dll"},
		MemoryManagerSetting: "MemoryManager",
		XCellModules:         []string{"x-cell-fo4.dll", "x-cell-og.dll", "x-cell-ng2.dll"},
		BakaModules:          []string{"bakascrapheap.dll"},
		XCellOverlap: []string{
			"HavokMemorySystem",
			"BSTextureStreamerLocalHeap",
			"ScaleformAllocator",
			"SmallBlockAllocator",
		},
		ArchiveLimitSetting: "ArchiveLimits",
		ArchiveLimitFixedIn: "1.31.1",
		LooksMenuModules:    []string{"f4ee.dll"},
		LooksMenuSetting:    "F4EE",
	}
}

// withDefaults fills empty fields from DefaultSettingsRules.
func (s SettingsRules) withDefaults() SettingsRules {
	d := DefaultSettingsRules()
	if s.AchievementsSetting == "" {
		s.AchievementsSetting = d.AchievementsSetting
	}
	if len(s.AchievementsMods) == 0 {
		s.AchievementsMods = d.AchievementsMods
	}
	if s.MemoryManagerSetting == "" {
		s.MemoryManagerSetting = d.MemoryManagerSetting
	}
	if len(s.XCellModules) == 0 {
		s.XCellModules = d.XCellModules
	}
	if len(s.BakaModules) == 0 {
		s.BakaModules = d.BakaModules
	}
	if len(s.XCellOverlap) == 0 {
		s.XCellOverlap = d.XCellOverlap
	}
	if s.ArchiveLimitSetting == "" {
		s.ArchiveLimitSetting = d.ArchiveLimitSetting
	}
	if s.ArchiveLimitFixedIn == "" {
		s.ArchiveLimitFixedIn = d.ArchiveLimitFixedIn
	}
	if len(s.LooksMenuModules) == 0 {
		s.LooksMenuModules = d.LooksMenuModules
	}
	if s.LooksMenuSetting == "" {
		s.LooksMenuSetting = d.LooksMenuSetting
	}
	return s
}

// Signature is an error-signature rule matched against the main error.
type Signature struct {
	Key     RuleKey
	Pattern string
}

// StackPattern is a stack-pattern rule; all gating conditions must hold.
type StackPattern struct {
	Key        RuleKey
	Conditions []Condition
}

// ModWarning is advice attached to a mod name fragment.
type ModWarning struct {
	Mod    string
	Advice string
}

// ModConflict is advice for two mods installed together.
type ModConflict struct {
	Key    ConflictKey
	Advice string
}

// ImportantMod is a mod whose presence or absence is always reported.
type ImportantMod struct {
	Key    ImportantKey
	Advice string
	// GPU is the lowercase vendor the mod requires, or empty.
	GPU string
}

// Category is a named group of rules, kept in declaration order.
type Category[T any] struct {
	Name  string
	Rules []T
}

// RuleSet is a compiled, read-only rule document.
// Every slice keeps the declaration order of the document.
type RuleSet struct {
	Name string

	Signatures    []Signature
	StackPatterns []StackPattern
	ModWarnings   []Category[ModWarning]
	ModConflicts  []ModConflict
	ImportantMods []Category[ImportantMod]

	IgnorePlugins  []string
	Records        []string
	RecordsExclude []string
	DLLAllowList   []string
	Settings       SettingsRules
	FCXFiles       []FCXEntry

	// Skipped lists rules rejected while compiling.
	Skipped []*KeyError
}

// Empty returns a rule set with no rules and default settings checks.
func Empty(name string) *RuleSet {
	return &RuleSet{Name: name, Settings: DefaultSettingsRules()}
}

// Count returns the total number of compiled rules.
func (rs *RuleSet) Count() int {
	n := len(rs.Signatures) + len(rs.StackPatterns) + len(rs.ModConflicts) + len(rs.FCXFiles)
	for _, c := range rs.ModWarnings {
		n += len(c.Rules)
	}
	for _, c := range rs.ImportantMods {
		n += len(c.Rules)
	}
	return n
}

func findCategory[T any](cats []Category[T], name string) []T {
	for _, c := range cats {
		if c.Name == name {
			return c.Rules
		}
	}
	return nil
}

func categoryNames[T any](cats []Category[T]) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names
}
