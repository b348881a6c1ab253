package pagestate

import "time"

const (
	// DefaultMaxAge is how long a page state lives after its last update.
	DefaultMaxAge = 24 * time.Hour

	// DefaultCleanupInterval is the cadence of the background expiry sweep.
	DefaultCleanupInterval = time.Hour
)

// Policy decides when a page state is stale.
type Policy struct {
	MaxAge time.Duration
}

func (p Policy) maxAge() time.Duration {
	if p.MaxAge <= 0 {
		return DefaultMaxAge
	}
	return p.MaxAge
}

// Expired reports whether ps is stale at now. Entries without a usable
// lastUpdated stamp are always stale.
func (p Policy) Expired(ps PageState, now time.Time) bool {
	stamp, ok := ps.LastUpdated()
	if !ok {
		return true
	}
	return now.UnixMilli()-stamp >= p.maxAge().Milliseconds()
}

// Sweep returns a new cache holding only the live entries of c.
func (p Policy) Sweep(c Cache, now time.Time) Cache {
	out := make(Cache, len(c))
	for key, ps := range c {
		if p.Expired(ps, now) {
			continue
		}
		out[key] = ps
	}
	return out
}
