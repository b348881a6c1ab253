package pagestate

import "strings"

// IsVisibilityFlag reports whether an attribute name looks like a dialog or
// panel visibility toggle ("showHelp", "filterModalOpen").
func IsVisibilityFlag(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "modal") || strings.Contains(lower, "show")
}

// openFlags returns a partial state closing every visibility flag in ps that
// is currently boolean true, or nil when nothing is open. Names in registered
// count as flags whatever they are called; non-bool values never do.
func openFlags(ps PageState, registered map[string]struct{}) map[string]any {
	var closed map[string]any
	for name, v := range ps {
		if name == LastUpdatedKey {
			continue
		}
		if open, isBool := v.(bool); !isBool || !open {
			continue
		}
		if _, ok := registered[name]; !ok && !IsVisibilityFlag(name) {
			continue
		}
		if closed == nil {
			closed = make(map[string]any)
		}
		closed[name] = false
	}
	return closed
}

// CloseVisibilityFlags closes open flags on every entry of c without
// restamping them. It returns the repaired cache and the number of pages
// that changed; c itself is left untouched.
func CloseVisibilityFlags(c Cache, registered map[string]map[string]struct{}) (Cache, int) {
	out := c.shallowCopy()
	changed := 0
	for key, ps := range c {
		closed := openFlags(ps, registered[key])
		if len(closed) == 0 {
			continue
		}
		fixed := ps.Clone()
		for name, v := range closed {
			fixed[name] = v
		}
		out[key] = fixed
		changed++
	}
	return out, changed
}
