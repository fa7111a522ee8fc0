// Package foreground classifies foreground app ids and tracks which app
// the user is actually looking at.
package foreground

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// SurfaceAppID is the id the reference surface reports for itself.
const SurfaceAppID = "focusgate.surface"

// DefaultInfrastructure covers the surface overlay and transient system UI.
var DefaultInfrastructure = []string{
	SurfaceAppID,
	"com.android.systemui*",
	"*.notificationshade",
	"*.quicksettings",
}

// Class is the arbitration class of an app id.
type Class int

const (
	// Infrastructure apps are never arbitrated and never cancel anything.
	Infrastructure Class = iota
	// Unmonitored apps are user destinations that are not arbitrated.
	Unmonitored
	// Monitored apps are arbitrated.
	Monitored
)

func (c Class) String() string {
	switch c {
	case Infrastructure:
		return "infrastructure"
	case Unmonitored:
		return "unmonitored"
	case Monitored:
		return "monitored"
	default:
		return "unknown"
	}
}

// Classifier matches app ids against infrastructure patterns and the
// monitored set. An empty monitored set monitors every non-infrastructure app.
type Classifier struct {
	infra     []string
	monitored map[string]struct{}
	patterns  []string
}

// NewClassifier validates the patterns. Monitored entries may be globs too.
func NewClassifier(infrastructure, monitored []string) (*Classifier, error) {
	if len(infrastructure) == 0 {
		infrastructure = DefaultInfrastructure
	}
	for _, p := range infrastructure {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid infrastructure pattern %q", p)
		}
	}

	c := &Classifier{
		infra:     append([]string(nil), infrastructure...),
		monitored: make(map[string]struct{}),
	}
	for _, m := range monitored {
		if !doublestar.ValidatePattern(m) {
			return nil, fmt.Errorf("invalid monitored pattern %q", m)
		}
		c.monitored[m] = struct{}{}
		c.patterns = append(c.patterns, m)
	}
	return c, nil
}

// Classify returns the class of appID.
func (c *Classifier) Classify(appID string) Class {
	if c.IsInfrastructure(appID) {
		return Infrastructure
	}
	if len(c.monitored) == 0 {
		return Monitored
	}
	if _, ok := c.monitored[appID]; ok {
		return Monitored
	}
	for _, p := range c.patterns {
		if match(p, appID) {
			return Monitored
		}
	}
	return Unmonitored
}

// IsInfrastructure reports whether appID is an overlay or system UI layer.
func (c *Classifier) IsInfrastructure(appID string) bool {
	for _, p := range c.infra {
		if match(p, appID) {
			return true
		}
	}
	return false
}

// App ids use dots, not slashes, so doublestar's '*' spans the whole id.
func match(pattern, appID string) bool {
	ok, err := doublestar.Match(pattern, appID)
	return err == nil && ok
}
