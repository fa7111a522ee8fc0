package authority

import (
	"sort"
	"time"

	"github.com/GriffinCanCode/focusgate/internal/domain/foreground"
	"github.com/GriffinCanCode/focusgate/internal/shared/id"
)

// Snapshot is a read-only view of the authority for debugging.
type Snapshot struct {
	Entries       []Entry                `json:"entries"`
	Intentions    map[string]time.Time   `json:"intentions"`
	Quota         QuotaView              `json:"quota"`
	Guard         *GuardView             `json:"guard,omitempty"`
	Interventions []Intervention         `json:"interventions"`
	Outstanding   *Command               `json:"outstanding,omitempty"`
	Foreground    foreground.Observation `json:"foreground"`
	UserApp       foreground.Observation `json:"userForeground"`
	DirtyKeys     []string               `json:"dirtyKeys,omitempty"`
	Seq           uint64                 `json:"seq"`
	At            time.Time              `json:"at"`
}

// Snapshot returns the current state.
func (a *Authority) Snapshot() Snapshot {
	s := Snapshot{
		Intentions:    make(map[string]time.Time),
		Entries:       []Entry{},
		Interventions: []Intervention{},
		Quota:         a.quotaView(),
		Guard:         a.guard.view(),
		Foreground:    a.tracker.Raw(),
		UserApp:       a.tracker.User(),
		DirtyKeys:     a.committer.dirtyKeys(),
		At:            a.clock.Now(),
	}

	a.mu.RLock()
	for _, e := range a.entries {
		s.Entries = append(s.Entries, e)
	}
	for app, exp := range a.intentions {
		s.Intentions[app] = exp
	}
	for _, rec := range a.interventions {
		s.Interventions = append(s.Interventions, *rec)
	}
	a.mu.RUnlock()

	sort.Slice(s.Entries, func(i, j int) bool { return s.Entries[i].AppID < s.Entries[j].AppID })
	sort.Slice(s.Interventions, func(i, j int) bool { return s.Interventions[i].AppID < s.Interventions[j].AppID })

	a.emitMu.Lock()
	if a.outstanding != nil {
		c := *a.outstanding
		s.Outstanding = &c
	}
	s.Seq = a.seq
	a.emitMu.Unlock()
	return s
}

// Entry returns app's current entry; an unknown app is IDLE.
func (a *Authority) Entry(app string) Entry {
	return a.entry(app)
}

// Bootstrap answers a newly created surface: the launch it should show,
// or FinishSurface when there is nothing outstanding. surfaceID becomes
// the surface that holds guards from now on; a blocking launch re-arms
// the guard for it.
func (a *Authority) Bootstrap(surfaceID string) Command {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	now := a.clock.Now()
	a.surface = surfaceID
	if a.outstanding != nil {
		c := *a.outstanding
		if c.Reason.Blocking() {
			a.guard.set(c.AppID, surfaceID, now)
		}
		return c
	}
	return Command{
		ID:       id.NewCommandID().String(),
		Seq:      a.seq,
		Type:     CommandFinishSurface,
		IssuedAt: now,
	}
}

// Foreground returns the user foreground as a command for a surface that
// just bootstrapped. It carries the current Seq, so any later command
// still supersedes it.
func (a *Authority) Foreground() Command {
	a.fgMu.Lock()
	defer a.fgMu.Unlock()
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	return Command{
		ID:       id.NewCommandID().String(),
		Seq:      a.seq,
		Type:     CommandForeground,
		AppID:    a.userApp,
		IssuedAt: a.clock.Now(),
	}
}
