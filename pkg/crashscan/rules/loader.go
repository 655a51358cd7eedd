package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crashscan/crashscan-go/internal/safefile"
)

// sanitizePathError removes the path from os.PathError so error messages
// don't expose file system paths.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

const (
	// MaxDocumentSize is the maximum allowed size for a rule document (4MB).
	MaxDocumentSize = 4 * 1024 * 1024

	// MaxRuleCount caps the rules of a single section.
	MaxRuleCount = 10000

	// SupportedVersion is the currently supported rule document format version.
	SupportedVersion = 1
)

// Load reads and parses a rule document from path.
// Returns an error if the file cannot be read, is too large, or fails validation.
//
// Example:
//
//	doc, err := rules.Load("fallout4.yaml")
//	if err != nil {
//	    log.Fatalf("failed to load rules: %v", err)
//	}
func Load(path string) (*Document, error) {
	data, err := safefile.ReadRegular(path, MaxDocumentSize)
	if err != nil {
		if errors.Is(err, safefile.ErrNotRegularFile) {
			return nil, errors.New("rule document must be a regular file (not FIFO, device, or special file)")
		}
		return nil, fmt.Errorf("failed to read rule document: %w", sanitizePathError(err))
	}
	return LoadBytes(data)
}

// LoadBytes parses a rule document from a byte slice.
// Returns an error if the data cannot be parsed or fails validation.
func LoadBytes(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, errors.New("rule document is empty")
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("rule document too large: %d bytes (max %d)", len(data), MaxDocumentSize)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate performs schema-level validation on the document.
// It checks for:
//   - Supported version number
//   - Section sizes
//   - FCX entries with a path and a well-formed digest
//   - GPU flags naming a setting and a vendor
//
// Malformed rule keys are not validation errors; Compile skips them one by one.
func (d *Document) Validate() error {
	if d.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", d.Version, SupportedVersion),
		}
	}

	sizes := map[string]int{
		"error_signatures": len(d.ErrorSignatures),
		"stack_patterns":   len(d.StackPatterns),
		"mod_conflicts":    len(d.ModConflicts),
		"ignore_plugins":   len(d.IgnorePlugins),
		"records":          len(d.Records),
		"fcx_files":        len(d.FCXFiles),
	}
	for field, n := range sizes {
		if n > MaxRuleCount {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("too many entries (%d), maximum allowed is %d", n, MaxRuleCount),
			}
		}
	}

	for i, f := range d.FCXFiles {
		if strings.TrimSpace(f.Path) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("fcx_files[%d].path", i),
				Message: "path is required",
			}
		}
		if f.SHA256 != "" && !isSHA256(f.SHA256) {
			return &ValidationError{
				Field:   fmt.Sprintf("fcx_files[%d].sha256", i),
				Message: "sha256 must be 64 hex characters",
			}
		}
	}

	for i, g := range d.Settings.GPUFlags {
		if g.Setting == "" || g.Vendor == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("settings.gpu_flags[%d]", i),
				Message: "setting and vendor are required",
			}
		}
	}

	return nil
}

func isSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range strings.ToLower(s) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Compile parses the composite keys and conditions of a validated document.
// Rules that do not parse are left out and reported in RuleSet.Skipped.
func Compile(name string, d *Document) *RuleSet {
	rs := &RuleSet{
		Name:           name,
		IgnorePlugins:  d.IgnorePlugins,
		Records:        d.Records,
		RecordsExclude: d.RecordsExclude,
		DLLAllowList:   d.DLLAllowList,
		Settings:       d.Settings.withDefaults(),
	}
	skip := func(section, key string, err error) {
		rs.Skipped = append(rs.Skipped, &KeyError{Section: section, Key: key, Message: err.Error(), Cause: err})
	}

	for _, e := range d.ErrorSignatures {
		key, err := ParseRuleKey(e.Key)
		if err != nil {
			skip("error_signatures", e.Key, err)
			continue
		}
		if strings.TrimSpace(e.Value) == "" {
			skip("error_signatures", e.Key, errors.New("empty pattern"))
			continue
		}
		rs.Signatures = append(rs.Signatures, Signature{Key: key, Pattern: e.Value})
	}

	for _, e := range d.StackPatterns {
		key, err := ParseRuleKey(e.Key)
		if err != nil {
			skip("stack_patterns", e.Key, err)
			continue
		}
		conds, err := parseConditions(e.Value)
		if err != nil {
			skip("stack_patterns", e.Key, err)
			continue
		}
		rs.StackPatterns = append(rs.StackPatterns, StackPattern{Key: key, Conditions: conds})
	}

	for _, cat := range d.ModWarnings {
		c := Category[ModWarning]{Name: cat.Key}
		for _, e := range cat.Value {
			if strings.TrimSpace(e.Key) == "" {
				skip("mod_warnings."+cat.Key, e.Key, errors.New("empty mod name"))
				continue
			}
			c.Rules = append(c.Rules, ModWarning{Mod: strings.TrimSpace(e.Key), Advice: e.Value})
		}
		rs.ModWarnings = append(rs.ModWarnings, c)
	}

	for _, e := range d.ModConflicts {
		key, err := ParseConflictKey(e.Key)
		if err != nil {
			skip("mod_conflicts", e.Key, err)
			continue
		}
		rs.ModConflicts = append(rs.ModConflicts, ModConflict{Key: key, Advice: e.Value})
	}

	for _, cat := range d.ImportantMods {
		c := Category[ImportantMod]{Name: cat.Key}
		for _, e := range cat.Value {
			key, err := ParseImportantKey(e.Key)
			if err != nil {
				skip("important_mods."+cat.Key, e.Key, err)
				continue
			}
			c.Rules = append(c.Rules, ImportantMod{
				Key:    key,
				Advice: e.Value.Advice,
				GPU:    strings.ToLower(strings.TrimSpace(e.Value.GPU)),
			})
		}
		rs.ImportantMods = append(rs.ImportantMods, c)
	}

	for _, f := range d.FCXFiles {
		f.SHA256 = strings.ToLower(f.SHA256)
		rs.FCXFiles = append(rs.FCXFiles, f)
	}

	return rs
}

func parseConditions(raw []string) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, errors.New("no conditions")
	}
	conds := make([]Condition, 0, len(raw))
	for _, s := range raw {
		c, err := ParseCondition(s)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}
