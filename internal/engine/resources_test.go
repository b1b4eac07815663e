package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResources_FreshUntilInvalidated(t *testing.T) {
	r := NewResources(time.Hour)
	assert.False(t, r.IsFresh(assetsKey))

	now := time.Now()
	r.markFresh(assetsKey, now)
	assert.True(t, r.IsFresh(assetsKey))
	updated, ok := r.LastUpdated(assetsKey)
	assert.True(t, ok)
	assert.Equal(t, now, updated)

	r.Invalidate(assetsKey)
	assert.False(t, r.IsFresh(assetsKey))
	_, ok = r.LastUpdated(assetsKey)
	assert.False(t, ok)
}

func TestResources_Expire(t *testing.T) {
	r := NewResources(10 * time.Millisecond)
	r.markFresh(assetsKey, time.Now())
	assert.Eventually(t, func() bool { return !r.IsFresh(assetsKey) }, time.Second, 5*time.Millisecond)
}

func TestResources_NonPositiveMaxAgeIsAlwaysStale(t *testing.T) {
	r := NewResources(0)
	r.markFresh(assetsKey, time.Now())
	assert.False(t, r.IsFresh(assetsKey))
}
