package authority

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/domain/foreground"
	"github.com/GriffinCanCode/focusgate/internal/domain/timer"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/focusgate/internal/shared/id"
	"github.com/GriffinCanCode/focusgate/internal/storage"
)

// Defaults used when Options leaves a setting zero.
const (
	DefaultQuotaMax          = 3
	DefaultGuardTTL          = 10 * time.Second
	DefaultQuickTaskDuration = 3 * time.Minute
	DefaultActivityLease     = 30 * time.Minute
)

// Options wires an Authority.
type Options struct {
	Store      storage.Store
	Dispatcher Dispatcher
	Scheduler  *timer.Scheduler
	Classifier *foreground.Classifier
	Tracker    *foreground.Tracker
	Breaker    *resilience.Breaker
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics

	QuotaMax          int
	QuotaWindow       time.Duration
	GuardTTL          time.Duration
	QuickTaskDuration time.Duration
	// ActivityLease bounds an open-ended activity that nobody heartbeats.
	ActivityLease time.Duration
}

// Authority is the single writer of arbitration state. All phase, quota
// and intention changes go through it and are written through to the store.
type Authority struct {
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	dispatcher Dispatcher
	scheduler  *timer.Scheduler
	classifier *foreground.Classifier
	tracker    *foreground.Tracker
	committer  *committer
	guard      *surfaceGuard
	apps       *keyedMutex

	quotaMax          int
	quotaWindow       time.Duration
	quickTaskDuration time.Duration
	activityLease     time.Duration

	// quotaMu is held across read, modify and persist of the quota.
	quotaMu sync.Mutex
	quota   quotaState

	// mu guards the maps below; per-app ordering comes from apps.
	mu            sync.RWMutex
	entries       map[string]Entry
	intentions    map[string]time.Time
	interventions map[string]*Intervention
	lastEvent     map[string]time.Time
	lastEventAt   time.Time

	// fgMu orders foreground updates; it is taken before emitMu.
	fgMu    sync.Mutex
	userApp string

	// emitMu makes Seq order equal dispatch order.
	emitMu      sync.Mutex
	seq         uint64
	outstanding *Command
	surface     string

	recovered atomic.Bool
}

// New validates opts and creates an Authority. Recover must run before
// the first event.
func New(opts Options) (*Authority, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("authority: store is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("authority: dispatcher is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Classifier == nil {
		c, err := foreground.NewClassifier(nil, nil)
		if err != nil {
			return nil, err
		}
		opts.Classifier = c
	}
	if opts.Tracker == nil {
		opts.Tracker = foreground.NewTracker(opts.Classifier)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timer.New(opts.Clock, opts.Logger.Named("timer"))
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.New("store", resilience.Settings{Clock: opts.Clock})
	}
	if opts.QuotaMax < 0 {
		return nil, fmt.Errorf("authority: quota max must be >= 0")
	}
	if opts.QuotaWindow < 0 {
		return nil, fmt.Errorf("authority: quota window must be >= 0")
	}
	if opts.GuardTTL <= 0 {
		opts.GuardTTL = DefaultGuardTTL
	}
	if opts.QuickTaskDuration <= 0 {
		opts.QuickTaskDuration = DefaultQuickTaskDuration
	}
	if opts.ActivityLease <= 0 {
		opts.ActivityLease = DefaultActivityLease
	}

	a := &Authority{
		clock:             opts.Clock,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		dispatcher:        opts.Dispatcher,
		scheduler:         opts.Scheduler,
		classifier:        opts.Classifier,
		tracker:           opts.Tracker,
		committer:         newCommitter(opts.Store, opts.Breaker, opts.Logger, opts.Metrics),
		guard:             newSurfaceGuard(opts.GuardTTL),
		apps:              newKeyedMutex(),
		quotaMax:          opts.QuotaMax,
		quotaWindow:       opts.QuotaWindow,
		quickTaskDuration: opts.QuickTaskDuration,
		activityLease:     opts.ActivityLease,
		entries:           make(map[string]Entry),
		intentions:        make(map[string]time.Time),
		interventions:     make(map[string]*Intervention),
		lastEvent:         make(map[string]time.Time),
	}
	a.scheduler.Bind(a.onTimer)
	return a, nil
}

// OnForegroundEntry evaluates one foreground report. Infrastructure and
// unmonitored apps, duplicates and reports for an app whose surface is
// live all yield NONE.
func (a *Authority) OnForegroundEntry(ctx context.Context, app string, ts time.Time) (Decision, error) {
	if app == "" {
		return None(), invalid("empty app id")
	}
	if !a.recovered.Load() {
		return None(), ErrNotRecovered
	}
	now := a.clock.Now()
	if ts.IsZero() {
		ts = now
	}

	if a.isDuplicate(app, ts) {
		a.metrics.RecordEvent("duplicate")
		a.logger.Debug("Duplicate foreground event", zap.String("app", app), zap.Time("ts", ts))
		return None(), nil
	}

	class := a.classifier.Classify(app)
	a.metrics.RecordEvent(class.String())
	a.tracker.Observe(app, ts)
	if class == foreground.Infrastructure {
		return None(), nil
	}
	a.publishForeground(app)

	a.expireActivities(ctx, now)
	a.cancelIncompleteInterventions(ctx, app)
	if class == foreground.Unmonitored {
		return None(), nil
	}

	unlock := a.apps.lock(app)
	defer unlock()

	if held, ok := a.guard.expire(now); ok {
		a.metrics.IncGuardExpiries()
		a.logger.Info("Surface guard expired", zap.String("app", held))
	}

	d := a.evaluate(ctx, app, now)
	a.metrics.RecordDecision(d.Kind(), string(d.Reason))
	a.logger.Debug("Foreground evaluated", zap.String("app", app), zap.Stringer("decision", d))
	return d, nil
}

// evaluate applies the priority order. Caller holds the app lock.
func (a *Authority) evaluate(ctx context.Context, app string, now time.Time) Decision {
	if a.intentionValid(ctx, app, now) {
		return None()
	}

	entry := a.entry(app)
	switch entry.Phase {
	case PhaseActive:
		if entry.ExpiresAt.After(now) {
			return None()
		}
	case PhasePostChoice:
		if !a.guard.activeFor(app, now) {
			a.logger.Info("Replaying post-choice obligation", zap.String("app", app))
			a.emit(LaunchCommand(app, ReasonPostChoice))
		}
		return None()
	}

	if a.guard.activeFor(app, now) {
		return None()
	}
	if rec := a.intervention(app); rec != nil && rec.ActivityStarted {
		a.replayActivity(rec)
		return None()
	}

	return a.decide(ctx, app, now, storage.NewBatch())
}

// decide runs the quota steps: INTERVENTION when no quota is left,
// otherwise a new DECISION. Caller holds the app lock.
func (a *Authority) decide(ctx context.Context, app string, now time.Time, b storage.Batch) Decision {
	a.quotaMu.Lock()
	refilled := a.refillLocked(&b, now)
	remaining := a.quota.remaining
	exhausted := remaining <= 0
	if exhausted {
		a.clearEntry(&b, app)
	} else {
		a.scheduler.Cancel(app)
		a.setEntry(&b, Entry{AppID: app, Phase: PhaseDecision})
		a.dropIntervention(app)
	}
	_ = a.committer.commit(ctx, b)
	a.quotaMu.Unlock()

	if refilled {
		a.emit(QuotaCommand(remaining))
	}
	if exhausted {
		a.startIntervention(app, now)
		a.emit(LaunchCommand(app, ReasonIntervention))
		return Launch(app, ReasonIntervention)
	}
	a.emit(LaunchCommand(app, ReasonShowQuickTask))
	return Launch(app, ReasonShowQuickTask)
}

// isDuplicate drops a repeat of the app's last event and anything older
// than the newest event seen.
func (a *Authority) isDuplicate(app string, ts time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.lastEvent[app]; ok && last.Equal(ts) {
		return true
	}
	if ts.Before(a.lastEventAt) {
		return true
	}
	a.lastEvent[app] = ts
	a.lastEventAt = ts
	return false
}

func (a *Authority) intentionValid(ctx context.Context, app string, now time.Time) bool {
	a.mu.RLock()
	exp, ok := a.intentions[app]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	if exp.After(now) {
		return true
	}

	a.mu.Lock()
	delete(a.intentions, app)
	a.mu.Unlock()
	b := storage.NewBatch()
	b.Delete(storage.IntentionKey(app))
	_ = a.committer.commit(ctx, b)
	a.logger.Debug("Intention expired", zap.String("app", app))
	return false
}

func (a *Authority) entry(app string) Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e, ok := a.entries[app]; ok {
		return e
	}
	return Entry{AppID: app, Phase: PhaseIdle}
}

// setEntry updates memory and stages the write. IDLE removes the entry.
func (a *Authority) setEntry(b *storage.Batch, e Entry) {
	a.mu.Lock()
	if e.Phase == PhaseIdle {
		delete(a.entries, e.AppID)
	} else {
		a.entries[e.AppID] = e
	}
	a.mu.Unlock()

	key := storage.AppKey(e.AppID)
	if e.Phase == PhaseIdle {
		b.Delete(key)
		return
	}
	rec := storage.EntryRecord{Phase: e.Phase.String()}
	if !e.ExpiresAt.IsZero() {
		exp := e.ExpiresAt.UTC()
		rec.ExpiresAt = &exp
	}
	data, err := storage.Encode(rec)
	if err != nil {
		a.logger.Error("Failed to encode entry", zap.String("app", e.AppID), zap.Error(err))
		return
	}
	b.Put(key, data)
}

// clearEntry resets app to IDLE and disarms its timer.
func (a *Authority) clearEntry(b *storage.Batch, app string) {
	a.scheduler.Cancel(app)
	a.setEntry(b, Entry{AppID: app, Phase: PhaseIdle})
}

// emit sequences cmd, updates the surface binding and the guard, and
// hands it to the dispatcher.
func (a *Authority) emit(cmd Command) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	now := a.clock.Now()
	a.seq++
	cmd.Seq = a.seq
	cmd.ID = id.NewCommandID().String()
	cmd.IssuedAt = now

	switch cmd.Type {
	case CommandLaunch:
		c := cmd
		a.outstanding = &c
		if cmd.Reason.Blocking() {
			a.guard.set(cmd.AppID, a.surface, now)
		} else {
			a.guard.releaseFor(cmd.AppID)
		}
	case CommandFinishSurface:
		if a.outstanding != nil && (cmd.AppID == "" || a.outstanding.AppID == cmd.AppID) {
			a.outstanding = nil
		}
		a.guard.releaseFor(cmd.AppID)
	}

	a.metrics.RecordCommand(string(cmd.Type))
	a.dispatcher.Dispatch(cmd)
	a.logger.Debug("Command dispatched",
		zap.String("type", string(cmd.Type)),
		zap.String("app", cmd.AppID),
		zap.String("reason", string(cmd.Reason)),
		zap.Uint64("seq", cmd.Seq))
}

// publishForeground tells surfaces about a new user foreground app.
func (a *Authority) publishForeground(app string) {
	a.fgMu.Lock()
	defer a.fgMu.Unlock()
	if a.userApp == app {
		return
	}
	a.userApp = app
	a.emit(ForegroundCommand(app))
}

// finishIfBound sends FinishSurface only when the surface shows app.
func (a *Authority) finishIfBound(app string) {
	a.emitMu.Lock()
	bound := a.outstanding != nil && a.outstanding.AppID == app
	a.emitMu.Unlock()
	if bound {
		a.emit(FinishCommand(app))
	}
}

// onTimer is the scheduler callback.
func (a *Authority) onTimer(app string, expiresAt time.Time) {
	if err := a.OnExpire(context.Background(), app, expiresAt); err != nil {
		a.logger.Debug("Timer fire ignored", zap.String("app", app), zap.Error(err))
	}
}

// Flush retries any state writes that failed earlier.
func (a *Authority) Flush(ctx context.Context) error {
	return a.committer.flush(ctx)
}

// Close stops the timers and flushes pending writes.
func (a *Authority) Close(ctx context.Context) error {
	a.scheduler.Stop()
	return a.Flush(ctx)
}
