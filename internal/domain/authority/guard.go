package authority

import (
	"sync"
	"time"
)

// surfaceGuard records that a surface is showing a blocking session for
// one app. It is a timestamp, never a bare flag: once older than ttl it
// no longer suppresses anything. holder is the surface known to show the
// session; "" until a surface claims it.
type surfaceGuard struct {
	ttl time.Duration

	mu     sync.Mutex
	app    string
	holder string
	setAt  time.Time
}

func newSurfaceGuard(ttl time.Duration) *surfaceGuard {
	return &surfaceGuard{ttl: ttl}
}

func (g *surfaceGuard) set(app, holder string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.app, g.holder, g.setAt = app, holder, now
}

// refresh extends the guard only if it is held for app. A non-empty
// holder claims the guard.
func (g *surfaceGuard) refresh(app, holder string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.app == "" || g.app != app {
		return false
	}
	g.setAt = now
	if holder != "" {
		g.holder = holder
	}
	return true
}

// releaseHeldBy clears the guard if surfaceID holds it or nobody has
// claimed it yet. It returns the app that was guarded.
func (g *surfaceGuard) releaseHeldBy(surfaceID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.app == "" || (g.holder != "" && g.holder != surfaceID) {
		return "", false
	}
	app := g.app
	g.app, g.holder, g.setAt = "", "", time.Time{}
	return app, true
}

// releaseFor clears the guard if it is held for app; "" releases any.
func (g *surfaceGuard) releaseFor(app string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.app == "" || (app != "" && g.app != app) {
		return false
	}
	g.app, g.holder, g.setAt = "", "", time.Time{}
	return true
}

// expire clears a guard older than ttl and returns the app it held.
func (g *surfaceGuard) expire(now time.Time) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.app == "" || now.Sub(g.setAt) <= g.ttl {
		return "", false
	}
	app := g.app
	g.app, g.holder, g.setAt = "", "", time.Time{}
	return app, true
}

// activeFor reports a live guard for app at now.
func (g *surfaceGuard) activeFor(app string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.app != "" && g.app == app && now.Sub(g.setAt) <= g.ttl
}

// GuardView is the exported state of the guard.
type GuardView struct {
	AppID   string    `json:"appId"`
	Surface string    `json:"surface,omitempty"`
	SetAt   time.Time `json:"setAt"`
}

func (g *surfaceGuard) view() *GuardView {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.app == "" {
		return nil
	}
	return &GuardView{AppID: g.app, Surface: g.holder, SetAt: g.setAt}
}
