package authority

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceGuard(t *testing.T) {
	g := newSurfaceGuard(10 * time.Second)

	assert.False(t, g.activeFor(appA, t0))
	assert.Nil(t, g.view())

	g.set(appA, "", t0)
	assert.True(t, g.activeFor(appA, t0.Add(10*time.Second)))
	assert.False(t, g.activeFor(appA, t0.Add(11*time.Second)))
	assert.False(t, g.activeFor(appB, t0))

	assert.False(t, g.refresh(appB, "", t0.Add(5*time.Second)))
	assert.True(t, g.refresh(appA, "", t0.Add(5*time.Second)))
	_, expired := g.expire(t0.Add(12 * time.Second))
	assert.False(t, expired, "refresh moved the deadline")

	app, expired := g.expire(t0.Add(16 * time.Second))
	assert.True(t, expired)
	assert.Equal(t, appA, app)
	assert.Nil(t, g.view())
}

func TestSurfaceGuardRelease(t *testing.T) {
	g := newSurfaceGuard(time.Second)

	g.set(appA, "", t0)
	assert.False(t, g.releaseFor(appB))
	assert.True(t, g.releaseFor(appA))
	assert.False(t, g.releaseFor(appA))

	g.set(appB, "", t0)
	assert.True(t, g.releaseFor(""))
	assert.Nil(t, g.view())
}

func TestSurfaceGuardReleasedOnlyByHolder(t *testing.T) {
	g := newSurfaceGuard(time.Second)

	g.set(appA, "", t0)
	app, ok := g.releaseHeldBy("srf_debug")
	assert.True(t, ok, "an unclaimed guard goes with any surface")
	assert.Equal(t, appA, app)

	g.set(appA, "srf_main", t0)
	_, ok = g.releaseHeldBy("srf_debug")
	assert.False(t, ok)
	require.NotNil(t, g.view())
	assert.Equal(t, "srf_main", g.view().Surface)

	g.set(appB, "", t0)
	assert.True(t, g.refresh(appB, "srf_other", t0))
	_, ok = g.releaseHeldBy("srf_main")
	assert.False(t, ok, "the heartbeat claimed the guard")
	app, ok = g.releaseHeldBy("srf_other")
	assert.True(t, ok)
	assert.Equal(t, appB, app)
	assert.Nil(t, g.view())
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	var a, b int
	counts := map[string]*int{"a": &a, "b": &b}
	for i := 0; i < 100; i++ {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock(key)
			defer unlock()
			*counts[key]++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, a)
	assert.Equal(t, 50, b)
	assert.Equal(t, 0, k.size())
}
