package authority

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

// Accept grants a quick task to an app in DECISION. A zero duration uses
// the configured default. When no quota is left the app is sent to
// INTERVENTION instead and ErrQuotaExhausted is returned.
func (a *Authority) Accept(ctx context.Context, app string, duration time.Duration) (err error) {
	defer func() { a.recordIntent("accept", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}
	if duration < 0 {
		return invalid("negative duration %s", duration)
	}
	if duration == 0 {
		duration = a.quickTaskDuration
	}

	unlock := a.apps.lock(app)
	defer unlock()

	now := a.clock.Now()
	if e := a.entry(app); e.Phase != PhaseDecision {
		return a.stale("accept", app, PhaseDecision, e.Phase)
	}

	b := storage.NewBatch()
	a.quotaMu.Lock()
	refilled := a.refillLocked(&b, now)
	if a.quota.remaining <= 0 {
		a.clearEntry(&b, app)
		_ = a.committer.commit(ctx, b)
		remaining := a.quota.remaining
		a.quotaMu.Unlock()

		if refilled {
			a.emit(QuotaCommand(remaining))
		}
		a.startIntervention(app, now)
		a.emit(LaunchCommand(app, ReasonIntervention))
		a.logger.Info("Quick task refused, quota exhausted", zap.String("app", app))
		return ErrQuotaExhausted
	}

	a.quota.remaining--
	a.stageQuotaLocked(&b)
	expiresAt := now.Add(duration)
	a.setEntry(&b, Entry{AppID: app, Phase: PhaseActive, ExpiresAt: expiresAt})
	_ = a.committer.commit(ctx, b)
	remaining := a.quota.remaining
	a.quotaMu.Unlock()

	a.scheduler.Schedule(app, expiresAt)
	a.emit(LaunchCommand(app, ReasonQuickTaskActive))
	a.emit(QuotaCommand(remaining))

	a.logger.Info("Quick task started",
		zap.String("app", app),
		zap.Time("expires_at", expiresAt),
		zap.Int("quota_remaining", remaining))
	return nil
}

// Decline ends a DECISION without using quota.
func (a *Authority) Decline(ctx context.Context, app string) (err error) {
	defer func() { a.recordIntent("decline", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}

	unlock := a.apps.lock(app)
	defer unlock()

	if e := a.entry(app); e.Phase != PhaseDecision {
		return a.stale("decline", app, PhaseDecision, e.Phase)
	}
	b := storage.NewBatch()
	a.clearEntry(&b, app)
	_ = a.committer.commit(ctx, b)
	a.emit(FinishCommand(app))
	return nil
}

// OnExpire ends the quick task armed to expire at expiresAt. The user
// foreground is read once, here; if it is app the user must make a
// post-choice, otherwise the entry is cleared without any UI. A fire for
// a superseded expiry is a no-op.
func (a *Authority) OnExpire(ctx context.Context, app string, expiresAt time.Time) error {
	if err := a.precheck(app); err != nil {
		return err
	}
	return a.expire(ctx, app, expiresAt, true)
}

func (a *Authority) expire(ctx context.Context, app string, expiresAt time.Time, foregroundKnown bool) error {
	unlock := a.apps.lock(app)
	defer unlock()

	e := a.entry(app)
	if e.Phase != PhaseActive {
		a.metrics.RecordTimerFire("stale")
		return &StalePhaseError{Op: "expire", App: app, Want: PhaseActive, Got: e.Phase}
	}
	if !e.ExpiresAt.Equal(expiresAt) {
		a.metrics.RecordTimerFire("stale")
		return fmt.Errorf("expire %s at %s: armed for %s: %w", app, expiresAt, e.ExpiresAt, ErrStalePhase)
	}

	userApp := ""
	if foregroundKnown {
		userApp = a.tracker.UserApp()
	}

	a.scheduler.Cancel(app)
	b := storage.NewBatch()
	if userApp == app {
		a.setEntry(&b, Entry{AppID: app, Phase: PhasePostChoice})
		_ = a.committer.commit(ctx, b)
		a.metrics.RecordTimerFire("post_choice")
		a.emit(LaunchCommand(app, ReasonPostChoice))
		a.logger.Info("Quick task expired in foreground", zap.String("app", app))
		return nil
	}

	a.setEntry(&b, Entry{AppID: app, Phase: PhaseIdle})
	_ = a.committer.commit(ctx, b)
	a.metrics.RecordTimerFire("cleared")
	a.finishIfBound(app)
	a.logger.Info("Quick task expired in background",
		zap.String("app", app),
		zap.String("foreground", userApp),
		zap.Bool("foreground_known", foregroundKnown))
	return nil
}

// PostContinue leaves POST_CHOICE and re-decides: a new DECISION while
// quota remains, otherwise INTERVENTION.
func (a *Authority) PostContinue(ctx context.Context, app string) (err error) {
	defer func() { a.recordIntent("post_continue", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}

	unlock := a.apps.lock(app)
	defer unlock()

	if e := a.entry(app); e.Phase != PhasePostChoice {
		return a.stale("post_continue", app, PhasePostChoice, e.Phase)
	}
	b := storage.NewBatch()
	a.clearEntry(&b, app)
	d := a.decide(ctx, app, a.clock.Now(), b)
	a.logger.Info("Post-choice continue", zap.String("app", app), zap.Stringer("decision", d))
	return nil
}

// PostQuit leaves POST_CHOICE and finishes the surface.
func (a *Authority) PostQuit(ctx context.Context, app string) (err error) {
	defer func() { a.recordIntent("post_quit", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}

	unlock := a.apps.lock(app)
	defer unlock()

	if e := a.entry(app); e.Phase != PhasePostChoice {
		return a.stale("post_quit", app, PhasePostChoice, e.Phase)
	}
	b := storage.NewBatch()
	a.clearEntry(&b, app)
	_ = a.committer.commit(ctx, b)
	a.emit(FinishCommand(app))
	return nil
}

// SetIntention suppresses arbitration for app for duration. It completes
// any in-flight intervention with the allowance granted.
func (a *Authority) SetIntention(ctx context.Context, app string, duration time.Duration) (err error) {
	defer func() { a.recordIntent("set_intention", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}
	if duration <= 0 {
		return invalid("intention duration must be positive, got %s", duration)
	}

	unlock := a.apps.lock(app)
	defer unlock()

	expiresAt := a.clock.Now().Add(duration)
	data, err := storage.Encode(storage.IntentionRecord{ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.intentions[app] = expiresAt
	a.mu.Unlock()
	a.dropIntervention(app)

	b := storage.NewBatch()
	b.Put(storage.IntentionKey(app), data)
	if e := a.entry(app); e.Phase != PhaseIdle {
		a.clearEntry(&b, app)
	}
	_ = a.committer.commit(ctx, b)
	a.finishIfBound(app)

	a.logger.Info("Intention set", zap.String("app", app), zap.Time("expires_at", expiresAt))
	return nil
}

// ClearIntention removes app's intention timer.
func (a *Authority) ClearIntention(ctx context.Context, app string) (err error) {
	defer func() { a.recordIntent("clear_intention", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}

	unlock := a.apps.lock(app)
	defer unlock()

	a.mu.Lock()
	delete(a.intentions, app)
	a.mu.Unlock()

	b := storage.NewBatch()
	b.Delete(storage.IntentionKey(app))
	_ = a.committer.commit(ctx, b)
	return nil
}

// AdvanceIntervention records the renderer's current intervention step.
func (a *Authority) AdvanceIntervention(ctx context.Context, app, step string) (err error) {
	defer func() { a.recordIntent("advance_intervention", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}

	unlock := a.apps.lock(app)
	defer unlock()

	if !a.updateIntervention(app, func(rec *Intervention) { rec.Step = step }) {
		return fmt.Errorf("advance %s: %w", app, ErrNoIntervention)
	}
	a.guard.refresh(app, "", a.clock.Now())
	return nil
}

// StartActivity marks app's intervention as having started an activity
// and re-issues the launch carrying it. From then on the activity ends
// through EndActivity, or lapses once past its end. A zero duration is
// open-ended and lapses when no heartbeat arrives for ActivityLease.
func (a *Authority) StartActivity(ctx context.Context, app, name string, duration time.Duration) (err error) {
	defer func() { a.recordIntent("start_activity", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}
	if duration < 0 {
		return invalid("negative activity duration %s", duration)
	}

	unlock := a.apps.lock(app)
	defer unlock()

	now := a.clock.Now()
	var started Intervention
	ok := a.updateIntervention(app, func(rec *Intervention) {
		rec.ActivityStarted = true
		rec.Activity = name
		rec.ActivityEndsAt = time.Time{}
		if duration > 0 {
			rec.ActivityEndsAt = now.Add(duration)
		}
		rec.LastSeen = now
		started = *rec
	})
	if !ok {
		return fmt.Errorf("start activity %s: %w", app, ErrNoIntervention)
	}
	a.emit(activityLaunch(&started))
	a.logger.Info("Activity started", zap.String("app", app), zap.String("activity", name))
	return nil
}

// EndActivity completes or cancels app's activity and finishes the surface.
func (a *Authority) EndActivity(ctx context.Context, app string, completed bool) (err error) {
	defer func() { a.recordIntent("end_activity", err) }()
	if err := a.precheck(app); err != nil {
		return err
	}

	unlock := a.apps.lock(app)
	defer unlock()

	rec := a.intervention(app)
	if rec == nil || !rec.ActivityStarted {
		return fmt.Errorf("end activity %s: %w", app, ErrNoIntervention)
	}
	a.dropIntervention(app)
	a.emit(FinishCommand(app))
	a.logger.Info("Activity ended",
		zap.String("app", app),
		zap.String("activity", rec.Activity),
		zap.Bool("completed", completed))
	return nil
}

// Heartbeat keeps the surface guard alive while surfaceID shows a
// blocking session for app, and keeps a running activity for app from
// lapsing. It re-arms an expired guard for a surface that turned out to
// be alive and reports whether the guard is held.
func (a *Authority) Heartbeat(surfaceID, app string) bool {
	now := a.clock.Now()
	a.updateIntervention(app, func(rec *Intervention) {
		if rec.ActivityStarted {
			rec.LastSeen = now
		}
	})

	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	if a.guard.refresh(app, surfaceID, now) {
		return true
	}
	if o := a.outstanding; o != nil && o.AppID == app && o.Reason.Blocking() {
		a.guard.set(app, surfaceID, now)
		return true
	}
	return false
}

// SurfaceClosed releases the guard if surfaceID held it. A guard no
// surface has claimed yet is released by any close.
func (a *Authority) SurfaceClosed(surfaceID string) {
	a.emitMu.Lock()
	if a.surface == surfaceID {
		a.surface = ""
	}
	a.emitMu.Unlock()

	if app, ok := a.guard.releaseHeldBy(surfaceID); ok {
		a.logger.Info("Surface closed, guard released",
			zap.String("surface", surfaceID),
			zap.String("app", app))
	}
}

func (a *Authority) precheck(app string) error {
	if app == "" {
		return invalid("empty app id")
	}
	if !a.recovered.Load() {
		return ErrNotRecovered
	}
	return nil
}

func (a *Authority) stale(op, app string, want, got Phase) error {
	err := &StalePhaseError{Op: op, App: app, Want: want, Got: got}
	a.logger.Warn("Intent ignored", zap.Error(err))
	return err
}

func (a *Authority) recordIntent(intent string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrStalePhase):
		outcome = "stale"
	case errors.Is(err, ErrInvalidArgument):
		outcome = "invalid"
	case errors.Is(err, ErrQuotaExhausted):
		outcome = "quota_exhausted"
	default:
		outcome = "rejected"
	}
	a.metrics.RecordIntent(intent, outcome)
}
