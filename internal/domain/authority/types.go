package authority

import (
	"fmt"
	"time"
)

// Phase is the arbitration phase of one app.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDecision
	PhaseActive
	PhasePostChoice
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseDecision:
		return "DECISION"
	case PhaseActive:
		return "ACTIVE"
	case PhasePostChoice:
		return "POST_CHOICE"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ParsePhase maps a persisted phase name to a Phase. Anything it does not
// recognise is IDLE.
func ParsePhase(s string) Phase {
	switch s {
	case "DECISION":
		return PhaseDecision
	case "ACTIVE":
		return PhaseActive
	case "POST_CHOICE":
		return PhasePostChoice
	default:
		return PhaseIdle
	}
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name; unknown names decode to IDLE.
func (p *Phase) UnmarshalText(b []byte) error {
	*p = ParsePhase(string(b))
	return nil
}

// Entry is the per-app arbitration state. A zero ExpiresAt means none.
type Entry struct {
	AppID     string    `json:"appId"`
	Phase     Phase     `json:"phase"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Reason says which session a Launch opens.
type Reason string

const (
	ReasonShowQuickTask   Reason = "SHOW_QUICK_TASK"
	ReasonQuickTaskActive Reason = "QUICK_TASK_ACTIVE"
	ReasonPostChoice      Reason = "POST_CHOICE"
	ReasonIntervention    Reason = "INTERVENTION"
)

// Blocking reports whether the session demands a user choice. Only
// blocking launches hold the surface liveness guard.
func (r Reason) Blocking() bool {
	switch r {
	case ReasonShowQuickTask, ReasonPostChoice, ReasonIntervention:
		return true
	default:
		return false
	}
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	return r.Blocking() || r == ReasonQuickTaskActive
}

// Decision is the result of evaluating one foreground entry.
type Decision struct {
	Launch bool   `json:"launch"`
	AppID  string `json:"appId,omitempty"`
	Reason Reason `json:"reason,omitempty"`
}

// None is the empty decision.
func None() Decision { return Decision{} }

// Launch is a decision to open a session for app.
func Launch(app string, reason Reason) Decision {
	return Decision{Launch: true, AppID: app, Reason: reason}
}

// Kind is "LAUNCH" or "NONE".
func (d Decision) Kind() string {
	if d.Launch {
		return "LAUNCH"
	}
	return "NONE"
}

func (d Decision) String() string {
	if !d.Launch {
		return "NONE"
	}
	return fmt.Sprintf("LAUNCH(%s, %s)", d.AppID, d.Reason)
}

// CommandType names an authority-to-surface command.
type CommandType string

const (
	CommandLaunch        CommandType = "launch"
	CommandFinishSurface CommandType = "finish_surface"
	CommandQuotaUpdated  CommandType = "quota_updated"
	// CommandForeground carries the user foreground app; "" means unknown.
	CommandForeground CommandType = "foreground"
)

// Activity describes a running intervention activity on a Launch that
// re-opens it.
type Activity struct {
	Name   string    `json:"name"`
	EndsAt time.Time `json:"endsAt,omitempty"`
}

// Command is sent to the surface. Seq increases strictly in send order.
type Command struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Type      CommandType `json:"type"`
	AppID     string      `json:"appId,omitempty"`
	Reason    Reason      `json:"reason,omitempty"`
	Remaining *int        `json:"remaining,omitempty"`
	Activity  *Activity   `json:"activity,omitempty"`
	IssuedAt  time.Time   `json:"issuedAt"`
}

// LaunchCommand builds an unsequenced Launch.
func LaunchCommand(app string, reason Reason) Command {
	return Command{Type: CommandLaunch, AppID: app, Reason: reason}
}

// FinishCommand builds an unsequenced FinishSurface. An empty app
// finishes whatever the surface shows.
func FinishCommand(app string) Command {
	return Command{Type: CommandFinishSurface, AppID: app}
}

// QuotaCommand builds an unsequenced QuotaUpdated.
func QuotaCommand(remaining int) Command {
	return Command{Type: CommandQuotaUpdated, Remaining: &remaining}
}

// ForegroundCommand builds an unsequenced foreground update.
func ForegroundCommand(app string) Command {
	return Command{Type: CommandForeground, AppID: app}
}

// Dispatcher delivers commands to the surface. Dispatch must not block.
type Dispatcher interface {
	Dispatch(cmd Command)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(cmd Command)

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(cmd Command) { f(cmd) }
