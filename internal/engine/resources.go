package engine

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

const assetsKey = "assets"

// Resources remembers when engine resources were last refreshed. It outlives sessions: a process
// creates one and hands it to every session so that short-lived sessions don't refetch.
type Resources struct {
	maxAge time.Duration
	// Entries expire after maxAge, at which point the resource counts as stale.
	fresh *cache.Cache
	// Serialises refreshes so that concurrent callers don't all hit the backend.
	// Waiters give up when their context ends.
	refresh *semaphore.Weighted
}

// NewResources returns a tracker for which refreshed resources stay fresh for maxAge.
// A non-positive maxAge means resources are always stale.
func NewResources(maxAge time.Duration) *Resources {
	return &Resources{
		maxAge:  maxAge,
		fresh:   cache.New(maxAge, 10*time.Minute),
		refresh: semaphore.NewWeighted(1),
	}
}

// IsFresh returns true if the named resource was refreshed less than maxAge ago.
func (r *Resources) IsFresh(name string) bool {
	if r.maxAge <= 0 {
		return false
	}
	_, ok := r.fresh.Get(name)
	return ok
}

// LastUpdated returns the time the named resource was last refreshed, if it is still fresh.
func (r *Resources) LastUpdated(name string) (time.Time, bool) {
	v, ok := r.fresh.Get(name)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

func (r *Resources) markFresh(name string, now time.Time) {
	if r.maxAge <= 0 {
		return
	}
	r.fresh.Set(name, now, cache.DefaultExpiration)
}

// Invalidate marks the named resource as stale.
func (r *Resources) Invalidate(name string) {
	r.fresh.Delete(name)
}
