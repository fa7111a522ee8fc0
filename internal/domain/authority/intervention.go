package authority

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

// Intervention tracks an in-flight INTERVENTION session. It lives only in
// memory: a restart loses the surface too, so re-entry starts fresh.
type Intervention struct {
	AppID           string    `json:"appId"`
	Step            string    `json:"step,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	ActivityStarted bool      `json:"activityStarted"`
	Activity        string    `json:"activity,omitempty"`
	ActivityEndsAt  time.Time `json:"activityEndsAt,omitempty"`
	// LastSeen is the last sign of life for the activity: its start or a
	// surface heartbeat for the app.
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

// lapsed reports whether a started activity is over without anyone
// ending it: past its end time, or open-ended and unseen for lease.
func (rec *Intervention) lapsed(now time.Time, lease time.Duration) bool {
	if !rec.ActivityStarted {
		return false
	}
	if !rec.ActivityEndsAt.IsZero() {
		return !now.Before(rec.ActivityEndsAt)
	}
	return now.Sub(rec.LastSeen) > lease
}

// activityLaunch re-opens rec's activity on a surface.
func activityLaunch(rec *Intervention) Command {
	cmd := LaunchCommand(rec.AppID, ReasonIntervention)
	cmd.Activity = &Activity{Name: rec.Activity, EndsAt: rec.ActivityEndsAt}
	return cmd
}

func (a *Authority) startIntervention(app string, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interventions[app] = &Intervention{AppID: app, StartedAt: now}
}

func (a *Authority) intervention(app string) *Intervention {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.interventions[app]
	if !ok {
		return nil
	}
	c := *rec
	return &c
}

func (a *Authority) updateIntervention(app string, fn func(rec *Intervention)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.interventions[app]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

func (a *Authority) dropIntervention(app string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.interventions[app]
	delete(a.interventions, app)
	return ok
}

// expireActivities drops every started activity that has lapsed and
// finishes the surface showing it, so the app is arbitrated again.
func (a *Authority) expireActivities(ctx context.Context, now time.Time) {
	a.mu.RLock()
	var lapsed []string
	for app, rec := range a.interventions {
		if rec.lapsed(now, a.activityLease) {
			lapsed = append(lapsed, app)
		}
	}
	a.mu.RUnlock()

	for _, app := range lapsed {
		a.expireActivity(ctx, app, now)
	}
}

func (a *Authority) expireActivity(ctx context.Context, app string, now time.Time) {
	unlock := a.apps.lock(app)
	defer unlock()

	a.mu.Lock()
	rec, ok := a.interventions[app]
	if !ok || !rec.lapsed(now, a.activityLease) {
		a.mu.Unlock()
		return
	}
	name := rec.Activity
	delete(a.interventions, app)
	a.mu.Unlock()

	if e := a.entry(app); e.Phase == PhaseDecision {
		b := storage.NewBatch()
		a.clearEntry(&b, app)
		_ = a.committer.commit(ctx, b)
	}
	a.finishIfBound(app)
	a.guard.releaseFor(app)

	a.metrics.IncInterventionsCancelled()
	a.logger.Info("Activity lapsed", zap.String("app", app), zap.String("activity", name))
}

// replayActivity re-opens app's running activity unless the surface is
// already bound to it.
func (a *Authority) replayActivity(rec *Intervention) {
	a.emitMu.Lock()
	o := a.outstanding
	shown := o != nil && o.AppID == rec.AppID && o.Reason == ReasonIntervention
	a.emitMu.Unlock()
	if shown {
		return
	}
	a.logger.Info("Replaying running activity", zap.String("app", rec.AppID), zap.String("activity", rec.Activity))
	a.emit(activityLaunch(rec))
}

// cancelIncompleteInterventions abandons every intervention, other than
// entering's, that has neither granted an allowance nor started an
// activity. The cancelled app starts fresh on its next entry.
func (a *Authority) cancelIncompleteInterventions(ctx context.Context, entering string) {
	a.mu.RLock()
	var victims []string
	for app, rec := range a.interventions {
		if app != entering && !rec.ActivityStarted {
			victims = append(victims, app)
		}
	}
	a.mu.RUnlock()

	for _, app := range victims {
		a.cancelIntervention(ctx, app, entering)
	}
}

func (a *Authority) cancelIntervention(ctx context.Context, app, entering string) {
	unlock := a.apps.lock(app)
	defer unlock()

	a.mu.Lock()
	rec, ok := a.interventions[app]
	if !ok || rec.ActivityStarted {
		a.mu.Unlock()
		return
	}
	step := rec.Step
	delete(a.interventions, app)
	a.mu.Unlock()

	if e := a.entry(app); e.Phase == PhaseDecision || e.Phase == PhaseActive {
		b := storage.NewBatch()
		a.clearEntry(&b, app)
		_ = a.committer.commit(ctx, b)
	}
	a.finishIfBound(app)
	a.guard.releaseFor(app)

	a.metrics.IncInterventionsCancelled()
	a.logger.Info("Intervention cancelled by switch",
		zap.String("app", app),
		zap.String("step", step),
		zap.String("switched_to", entering))
}
