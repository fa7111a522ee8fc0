package foreground

import (
	"sync"
	"time"
)

// Observation is one foreground report.
type Observation struct {
	AppID string    `json:"appId"`
	At    time.Time `json:"at"`
}

// Tracker remembers the latest raw foreground and the latest user
// foreground, which skips infrastructure layers.
type Tracker struct {
	classifier *Classifier

	mu   sync.RWMutex
	raw  Observation
	user Observation
}

// NewTracker creates a tracker that uses c to skip infrastructure apps.
func NewTracker(c *Classifier) *Tracker {
	return &Tracker{classifier: c}
}

// Observe records appID as foreground at ts and reports whether it was
// a user destination.
func (t *Tracker) Observe(appID string, ts time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	obs := Observation{AppID: appID, At: ts}
	t.raw = obs
	if t.classifier.IsInfrastructure(appID) {
		return false
	}
	t.user = obs
	return true
}

// Raw returns the latest report, including infrastructure.
func (t *Tracker) Raw() Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.raw
}

// User returns the latest non-infrastructure report.
func (t *Tracker) User() Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.user
}

// UserApp returns the app id the user is on, or "" when unknown.
func (t *Tracker) UserApp() string {
	return t.User().AppID
}
