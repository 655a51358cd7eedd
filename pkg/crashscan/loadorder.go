package crashscan

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

const lightPrefix = "FE:"

// NormalizePluginID canonicalizes a load order id: uppercase, no whitespace,
// regular ids padded to two hex digits and light ids to "FE:xxx".
// Ids that are neither are returned uppercased and sort last.
func NormalizePluginID(id string) string {
	id = strings.ToUpper(strings.Join(strings.Fields(id), ""))
	if id == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(id, lightPrefix); ok {
		if len(rest) > 0 && len(rest) <= 3 && isHex(rest) {
			return lightPrefix + strings.Repeat("0", 3-len(rest)) + rest
		}
		return id
	}
	if len(id) == 1 && isHex(id) {
		return "0" + id
	}
	return id
}

// LoadOrderKey is the sort key derived from a load order id.
// Regular ids 00-FF come first in numeric order, then light ids FE:000-FE:FFF,
// then empty, malformed or out-of-range ids.
type LoadOrderKey struct {
	Group int
	Value int
}

const (
	groupRegular = iota
	groupLight
	groupUnresolved
)

// KeyForID computes the sort key of a load order id.
func KeyForID(id string) LoadOrderKey {
	id = NormalizePluginID(id)
	if rest, ok := strings.CutPrefix(id, lightPrefix); ok {
		if len(rest) == 3 {
			if v, err := strconv.ParseUint(rest, 16, 16); err == nil {
				return LoadOrderKey{Group: groupLight, Value: int(v)}
			}
		}
		return LoadOrderKey{Group: groupUnresolved}
	}
	if len(id) == 2 {
		if v, err := strconv.ParseUint(id, 16, 8); err == nil {
			return LoadOrderKey{Group: groupRegular, Value: int(v)}
		}
	}
	return LoadOrderKey{Group: groupUnresolved}
}

// Resolved reports whether the key belongs to a regular or light plugin id.
func (k LoadOrderKey) Resolved() bool { return k.Group != groupUnresolved }

// CompareLoadOrder orders two load order ids by their sort keys.
func CompareLoadOrder(a, b string) int {
	ka, kb := KeyForID(a), KeyForID(b)
	if c := cmp.Compare(ka.Group, kb.Group); c != 0 {
		return c
	}
	return cmp.Compare(ka.Value, kb.Value)
}

// SortByLoadOrder stably sorts items by the load order id returned by id.
func SortByLoadOrder[T any](items []T, id func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return CompareLoadOrder(id(a), id(b))
	})
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
