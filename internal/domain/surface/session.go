package surface

import (
	"time"

	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
)

// Kind is what the surface shows.
type Kind int

const (
	KindNone Kind = iota
	KindQuickTask
	KindQuickTaskActive
	KindPostChoice
	KindIntervention
)

func (k Kind) String() string {
	switch k {
	case KindQuickTask:
		return "QUICK_TASK"
	case KindQuickTaskActive:
		return "QUICK_TASK_ACTIVE"
	case KindPostChoice:
		return "POST_CHOICE"
	case KindIntervention:
		return "INTERVENTION"
	default:
		return "NONE"
	}
}

// KindOf maps a launch reason to the session it opens.
func KindOf(r authority.Reason) Kind {
	switch r {
	case authority.ReasonShowQuickTask:
		return KindQuickTask
	case authority.ReasonQuickTaskActive:
		return KindQuickTaskActive
	case authority.ReasonPostChoice:
		return KindPostChoice
	case authority.ReasonIntervention:
		return KindIntervention
	default:
		return KindNone
	}
}

// Activity is an intervention activity the user started.
type Activity struct {
	Name   string    `json:"name"`
	EndsAt time.Time `json:"endsAt,omitempty"`
}

// Session is the renderable projection. The zero value renders nothing.
type Session struct {
	Kind     Kind      `json:"kind"`
	AppID    string    `json:"appId,omitempty"`
	Visible  bool      `json:"visible"`
	Activity *Activity `json:"activity,omitempty"`
}

// Empty reports whether there is nothing to render.
func (s Session) Empty() bool { return s.Kind == KindNone }

// Project maps the latest command, the user foreground app and the running
// activity to a Session. It has no side effects.
//
// Choice sessions are always visible. A running quick task and an
// intervention activity are only shown while their app is in the foreground.
func Project(latest *authority.Command, userForeground string, activity *Activity) Session {
	if latest == nil || latest.Type != authority.CommandLaunch {
		return Session{}
	}
	kind := KindOf(latest.Reason)
	if kind == KindNone {
		return Session{}
	}

	s := Session{Kind: kind, AppID: latest.AppID, Visible: true}
	switch {
	case kind == KindQuickTaskActive:
		s.Visible = userForeground == latest.AppID
	case kind == KindIntervention && activity != nil:
		a := *activity
		s.Activity = &a
		s.Visible = userForeground == latest.AppID
	}
	return s
}
