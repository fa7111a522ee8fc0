package authority

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/focusgate/internal/domain/foreground"
	"github.com/GriffinCanCode/focusgate/internal/domain/timer"
	"github.com/GriffinCanCode/focusgate/internal/storage/memory"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *recordingDispatcher) Dispatch(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
}

// every returns all dispatched commands in order.
func (r *recordingDispatcher) every() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.cmds...)
}

// all returns the dispatched commands without foreground updates.
func (r *recordingDispatcher) all() []Command {
	var out []Command
	for _, c := range r.every() {
		if c.Type != CommandForeground {
			out = append(out, c)
		}
	}
	return out
}

// foregrounds returns the apps of the dispatched foreground updates.
func (r *recordingDispatcher) foregrounds() []string {
	var out []string
	for _, c := range r.every() {
		if c.Type == CommandForeground {
			out = append(out, c.AppID)
		}
	}
	return out
}

func (r *recordingDispatcher) launches(app string, reason Reason) int {
	n := 0
	for _, c := range r.all() {
		if c.Type == CommandLaunch && c.AppID == app && (reason == "" || c.Reason == reason) {
			n++
		}
	}
	return n
}

func (r *recordingDispatcher) count(t CommandType, app string) int {
	n := 0
	for _, c := range r.all() {
		if c.Type == t && c.AppID == app {
			n++
		}
	}
	return n
}

func (r *recordingDispatcher) last() Command {
	cmds := r.all()
	if len(cmds) == 0 {
		return Command{}
	}
	return cmds[len(cmds)-1]
}

type harness struct {
	a      *Authority
	clock  *clockwork.FakeClock
	store  *memory.Store
	disp   *recordingDispatcher
	sched  *timer.Scheduler
	report RecoveryReport
}

type option func(*Options)

func withQuota(n int) option { return func(o *Options) { o.QuotaMax = n } }

func withWindow(d time.Duration) option { return func(o *Options) { o.QuotaWindow = d } }

func withActivityLease(d time.Duration) option {
	return func(o *Options) { o.ActivityLease = d }
}

func withMonitored(apps ...string) option {
	return func(o *Options) {
		c, err := foreground.NewClassifier(nil, apps)
		if err != nil {
			panic(err)
		}
		o.Classifier = c
		o.Tracker = foreground.NewTracker(c)
	}
}

// newHarness builds and recovers an authority over store. A nil store
// starts empty.
func newHarness(t *testing.T, store *memory.Store, opts ...option) *harness {
	t.Helper()
	return newHarnessAt(t, t0, store, opts...)
}

func newHarnessAt(t *testing.T, now time.Time, store *memory.Store, opts ...option) *harness {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	clock := clockwork.NewFakeClockAt(now)
	logger := zaptest.NewLogger(t)
	sched := timer.New(clock, logger)
	disp := &recordingDispatcher{}

	o := Options{
		Store:      store,
		Dispatcher: disp,
		Scheduler:  sched,
		Clock:      clock,
		Logger:     logger,
		QuotaMax:   DefaultQuotaMax,
		GuardTTL:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	a, err := New(o)
	require.NoError(t, err)
	report, err := a.Recover(context.Background())
	require.NoError(t, err)
	t.Cleanup(sched.Stop)

	return &harness{a: a, clock: clock, store: store, disp: disp, sched: sched, report: report}
}

// enter reports app as foreground now, then moves the clock on a little
// so consecutive reports never share a timestamp.
func (h *harness) enter(t *testing.T, app string) Decision {
	t.Helper()
	d, err := h.a.OnForegroundEntry(context.Background(), app, h.clock.Now())
	require.NoError(t, err)
	h.clock.Advance(time.Millisecond)
	return d
}

func (h *harness) phase(app string) Phase {
	return h.a.Entry(app).Phase
}

func (h *harness) quota() int {
	r, _ := h.a.Quota()
	return r
}
