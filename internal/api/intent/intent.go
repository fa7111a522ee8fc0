// Package intent routes named user intents to the decision authority. The
// HTTP API and the surface WebSocket share it, so both accept the same
// names and payloads.
package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
	"github.com/GriffinCanCode/focusgate/internal/shared/utils"
)

// Intent names.
const (
	Accept           = "accept"
	Decline          = "decline"
	PostContinue     = "post-continue"
	PostQuit         = "post-quit"
	Intention        = "intention"
	ClearIntention   = "intention/clear"
	StartActivity    = "activity/start"
	EndActivity      = "activity/end"
	InterventionStep = "intervention/step"
)

// Names lists every intent Execute understands.
var Names = []string{
	Accept, Decline, PostContinue, PostQuit,
	Intention, ClearIntention,
	StartActivity, EndActivity, InterventionStep,
}

// Request is the payload of every intent; each intent reads the fields it needs.
type Request struct {
	AppID      string `json:"appId"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Step       string `json:"step,omitempty"`
	Name       string `json:"name,omitempty"`
	Completed  bool   `json:"completed,omitempty"`
}

// Reply is the response to an intent.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Arbiter is the part of the authority intents are applied to.
type Arbiter interface {
	Accept(ctx context.Context, app string, duration time.Duration) error
	Decline(ctx context.Context, app string) error
	PostContinue(ctx context.Context, app string) error
	PostQuit(ctx context.Context, app string) error
	SetIntention(ctx context.Context, app string, duration time.Duration) error
	ClearIntention(ctx context.Context, app string) error
	AdvanceIntervention(ctx context.Context, app, step string) error
	StartActivity(ctx context.Context, app, name string, duration time.Duration) error
	EndActivity(ctx context.Context, app string, completed bool) error
}

// ErrUnknown is returned for an intent name Execute does not know.
var ErrUnknown = fmt.Errorf("unknown intent: %w", authority.ErrInvalidArgument)

// Execute validates req and applies the named intent. Validation failures
// wrap authority.ErrInvalidArgument.
func Execute(ctx context.Context, a Arbiter, name string, req Request) error {
	if err := utils.ValidateAppID(req.AppID); err != nil {
		return invalid(err)
	}

	switch name {
	case Accept:
		d, err := utils.ValidateDurationMs(req.DurationMs, "durationMs", utils.MaxQuickTaskDuration, true)
		if err != nil {
			return invalid(err)
		}
		return a.Accept(ctx, req.AppID, d)
	case Decline:
		return a.Decline(ctx, req.AppID)
	case PostContinue:
		return a.PostContinue(ctx, req.AppID)
	case PostQuit:
		return a.PostQuit(ctx, req.AppID)
	case Intention:
		d, err := utils.ValidateDurationMs(req.DurationMs, "durationMs", utils.MaxIntentionDuration, false)
		if err != nil {
			return invalid(err)
		}
		return a.SetIntention(ctx, req.AppID, d)
	case ClearIntention:
		return a.ClearIntention(ctx, req.AppID)
	case StartActivity:
		if err := utils.ValidateName(req.Name, "name"); err != nil {
			return invalid(err)
		}
		d, err := utils.ValidateDurationMs(req.DurationMs, "durationMs", utils.MaxActivityDuration, true)
		if err != nil {
			return invalid(err)
		}
		return a.StartActivity(ctx, req.AppID, req.Name, d)
	case EndActivity:
		return a.EndActivity(ctx, req.AppID, req.Completed)
	case InterventionStep:
		if err := utils.ValidateString(req.Step, "step", 1, utils.MaxStepLength, true); err != nil {
			return invalid(err)
		}
		return a.AdvanceIntervention(ctx, req.AppID, req.Step)
	default:
		return fmt.Errorf("%q: %w", name, ErrUnknown)
	}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %s", authority.ErrInvalidArgument, err.Error())
}
