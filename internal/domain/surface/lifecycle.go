package surface

import (
	"sync"

	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
)

// Lifecycle is the surface's own tri-state. It is changed only by
// authority commands.
type Lifecycle int

const (
	Pending Lifecycle = iota
	ShowSession
	Finish
)

func (l Lifecycle) String() string {
	switch l {
	case Pending:
		return "PENDING"
	case ShowSession:
		return "SHOW_SESSION"
	case Finish:
		return "FINISH"
	default:
		return "UNKNOWN"
	}
}

// Outcome describes what Apply did with a command.
type Outcome int

const (
	Ignored Outcome = iota
	Updated
	Transitioned
)

// Surface is one UI surface instance. It is safe for concurrent use.
type Surface struct {
	id string

	mu         sync.Mutex
	state      Lifecycle
	latest     *authority.Command
	lastSeq    uint64
	lastID     string
	foreground string
	activities map[string]Activity
	remaining  *int
}

// New creates a PENDING surface.
func New(id string) *Surface {
	return &Surface{id: id, activities: make(map[string]Activity)}
}

// ID returns the surface id.
func (s *Surface) ID() string { return s.id }

// Apply feeds one authority command into the lifecycle. Commands older
// than the last one applied are ignored, as is everything after FINISH.
// A FinishSurface for another app than the one shown is ignored unless the
// surface is still PENDING.
func (s *Surface) Apply(cmd authority.Command) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Finish {
		return Ignored
	}
	if cmd.ID != "" && cmd.ID == s.lastID {
		return Ignored
	}
	if cmd.Seq < s.lastSeq {
		return Ignored
	}

	switch cmd.Type {
	case authority.CommandLaunch:
		if KindOf(cmd.Reason) == KindNone {
			return Ignored
		}
		// Activities are kept per app, so a launch for another app
		// leaves them alone. An intervention launch says whether its own
		// app has one running.
		if cmd.Reason == authority.ReasonIntervention {
			if cmd.Activity != nil {
				s.activities[cmd.AppID] = Activity{Name: cmd.Activity.Name, EndsAt: cmd.Activity.EndsAt}
			} else {
				delete(s.activities, cmd.AppID)
			}
		}
		c := cmd
		s.latest = &c
		s.mark(cmd)
		if s.state == Pending {
			s.state = ShowSession
			return Transitioned
		}
		return Updated

	case authority.CommandFinishSurface:
		if s.state == ShowSession && cmd.AppID != "" && s.latest != nil && s.latest.AppID != cmd.AppID {
			return Ignored
		}
		s.mark(cmd)
		s.state = Finish
		return Transitioned

	case authority.CommandQuotaUpdated:
		if cmd.Remaining == nil {
			return Ignored
		}
		r := *cmd.Remaining
		s.remaining = &r
		s.mark(cmd)
		return Updated

	case authority.CommandForeground:
		s.foreground = cmd.AppID
		s.mark(cmd)
		return Updated
	}
	return Ignored
}

func (s *Surface) mark(cmd authority.Command) {
	s.lastSeq = cmd.Seq
	s.lastID = cmd.ID
}

// SetForeground records the user foreground app reported to the surface.
func (s *Surface) SetForeground(app string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreground = app
}

// Foreground returns the last user foreground app the surface heard of.
func (s *Surface) Foreground() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground
}

// StartActivity records a running activity for the app of the shown
// launch.
func (s *Surface) StartActivity(a Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		s.activities[s.latest.AppID] = a
	}
}

// EndActivity forgets the running activity of the shown app.
func (s *Surface) EndActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		delete(s.activities, s.latest.AppID)
	}
}

// Activity returns the activity running for app, if any.
func (s *Surface) Activity(app string) (Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[app]
	return a, ok
}

// State returns the lifecycle state.
func (s *Surface) State() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ShouldFinish reports whether the surface must close. It is true only in
// FINISH, never because the session happens to be empty.
func (s *Surface) ShouldFinish() bool {
	return s.State() == Finish
}

// Session projects the current state. Only SHOW_SESSION renders anything.
func (s *Surface) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ShowSession {
		return Session{}
	}
	var activity *Activity
	if s.latest != nil {
		if a, ok := s.activities[s.latest.AppID]; ok {
			activity = &a
		}
	}
	return Project(s.latest, s.foreground, activity)
}

// Latest returns the launch being shown, if any.
func (s *Surface) Latest() (authority.Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return authority.Command{}, false
	}
	return *s.latest, true
}

// Remaining returns the last quota the authority reported.
func (s *Surface) Remaining() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining == nil {
		return 0, false
	}
	return *s.remaining, true
}
