package pagestate

import (
	"encoding/json"
	"math"
)

const (
	// LastUpdatedKey is the reserved attribute stamped on every page state.
	// Its value is milliseconds since the Unix epoch.
	LastUpdatedKey = "lastUpdated"

	// StorageKey names the single storage slot holding the encoded cache.
	StorageKey = "app_page_states"
)

// PageState is the attribute bag remembered for one page.
type PageState map[string]any

// Cache maps page keys (route-like paths such as "/mops") to their state.
// A missing key means nothing is remembered for that page, which is
// different from an empty PageState.
type Cache map[string]PageState

// LastUpdated returns the page's timestamp in Unix milliseconds.
func (p PageState) LastUpdated() (int64, bool) {
	v, ok := p[LastUpdatedKey]
	if !ok {
		return 0, false
	}
	return toMillis(v)
}

// Clone returns a shallow copy of the page state.
func (p PageState) Clone() PageState {
	if p == nil {
		return nil
	}
	out := make(PageState, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Bool reports the boolean value of name, or false when missing or not a bool.
func (p PageState) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// String returns the string value of name, or def.
func (p PageState) String(name, def string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return def
}

// Int returns the integer value of name, or def. Numbers read back from
// storage arrive as float64, so every numeric representation is accepted.
func (p PageState) Int(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	n, ok := toMillis(v)
	if !ok {
		return def
	}
	return int(n)
}

// Clone returns a copy of the cache with every page state copied.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c))
	for k, ps := range c {
		out[k] = ps.Clone()
	}
	return out
}

// Keys returns the page keys in the cache, unordered.
func (c Cache) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// shallowCopy copies the top-level map only; page states are shared.
func (c Cache) shallowCopy() Cache {
	out := make(Cache, len(c)+1)
	for k, ps := range c {
		out[k] = ps
	}
	return out
}

func toMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toMillis(f)
	default:
		return 0, false
	}
}
