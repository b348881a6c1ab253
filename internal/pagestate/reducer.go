package pagestate

import "time"

// Action is one of the cache transitions below. The set is closed.
type Action interface {
	action()
}

// SetPageState shallow-merges Partial into the page's state and restamps it.
type SetPageState struct {
	Key     string
	Partial map[string]any
}

// ClearPageState removes one page entry.
type ClearPageState struct {
	Key string
}

// ClearAllStates empties the cache.
type ClearAllStates struct{}

// LoadFromStorage replaces the cache wholesale.
type LoadFromStorage struct {
	Cache Cache
}

// CleanupExpired drops every entry the expiry policy considers stale.
type CleanupExpired struct{}

func (SetPageState) action()    {}
func (ClearPageState) action()  {}
func (ClearAllStates) action()  {}
func (LoadFromStorage) action() {}
func (CleanupExpired) action()  {}

// Reducer is the only way the cache changes.
type Reducer struct {
	Policy Policy
}

// Reduce returns the cache that results from applying a to c at now.
// c is never modified and no I/O happens here.
func (r Reducer) Reduce(c Cache, a Action, now time.Time) Cache {
	switch a := a.(type) {
	case SetPageState:
		prev := c[a.Key]
		merged := make(PageState, len(prev)+len(a.Partial)+1)
		for k, v := range prev {
			merged[k] = v
		}
		for k, v := range a.Partial {
			merged[k] = v
		}
		merged[LastUpdatedKey] = now.UnixMilli()

		next := c.shallowCopy()
		next[a.Key] = merged
		return next

	case ClearPageState:
		if _, ok := c[a.Key]; !ok {
			return c
		}
		next := c.shallowCopy()
		delete(next, a.Key)
		return next

	case ClearAllStates:
		return Cache{}

	case LoadFromStorage:
		if a.Cache == nil {
			return Cache{}
		}
		return a.Cache.Clone()

	case CleanupExpired:
		return r.Policy.Sweep(c, now)

	default:
		return c
	}
}

// changes reports whether applying a turned prev into a different cache.
// Only the actions that can be no-ops need checking.
func changes(prev, next Cache, a Action) bool {
	switch a := a.(type) {
	case ClearPageState:
		_, had := prev[a.Key]
		return had
	case CleanupExpired:
		return len(prev) != len(next)
	case ClearAllStates:
		return len(prev) > 0
	default:
		return true
	}
}
