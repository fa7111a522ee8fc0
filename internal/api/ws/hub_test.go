package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/focusgate/internal/api/intent"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
	"github.com/GriffinCanCode/focusgate/internal/domain/timer"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/focusgate/internal/storage/memory"
)

const app = "com.instagram.android"

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fixture struct {
	hub     *Hub
	auth    *authority.Authority
	metrics *monitoring.Metrics
	url     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	clock := clockwork.NewFakeClockAt(t0)
	sched := timer.New(clock, logger)
	t.Cleanup(sched.Stop)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(HubOptions{Logger: logger, Metrics: metrics})

	a, err := authority.New(authority.Options{
		Store:      memory.New(),
		Dispatcher: hub,
		Scheduler:  sched,
		Clock:      clock,
		Logger:     logger,
		QuotaMax:   2,
	})
	require.NoError(t, err)
	_, err = a.Recover(context.Background())
	require.NoError(t, err)
	hub.Bind(a)

	router := gin.New()
	router.GET("/v1/surface", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &fixture{
		hub:     hub,
		auth:    a,
		metrics: metrics,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/surface",
	}
}

func (f *fixture) dial(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, f.url, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.Eventually(t, func() bool { return f.hub.Connected() > 0 }, 2*time.Second, 5*time.Millisecond)
	return c
}

func next(t *testing.T, c *Client) authority.Command {
	t.Helper()
	select {
	case cmd, ok := <-c.Commands():
		require.True(t, ok, "connection closed: %v", c.Err())
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command received")
		return authority.Command{}
	}
}

// nextNonForeground returns the next command that is not a foreground update.
func nextNonForeground(t *testing.T, c *Client) authority.Command {
	t.Helper()
	for {
		if cmd := next(t, c); cmd.Type != authority.CommandForeground {
			return cmd
		}
	}
}

func TestHelloBootstrapsIdleSurface(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	require.NoError(t, c.Hello("srf_test"))
	cmd := next(t, c)
	assert.Equal(t, authority.CommandFinishSurface, cmd.Type)
	assert.Empty(t, cmd.AppID)
	assert.NotEmpty(t, cmd.ID)

	fg := next(t, c)
	assert.Equal(t, authority.CommandForeground, fg.Type)
	assert.Empty(t, fg.AppID, "nothing reported yet")
}

func TestHelloReplaysOutstandingLaunch(t *testing.T) {
	f := newFixture(t)
	d, err := f.auth.OnForegroundEntry(context.Background(), app, t0)
	require.NoError(t, err)
	require.True(t, d.Launch)

	c := f.dial(t)
	require.NoError(t, c.Hello("srf_late"))
	cmd := next(t, c)
	assert.Equal(t, authority.CommandLaunch, cmd.Type)
	assert.Equal(t, app, cmd.AppID)
	assert.Equal(t, authority.ReasonShowQuickTask, cmd.Reason)

	fg := next(t, c)
	assert.Equal(t, authority.CommandForeground, fg.Type)
	assert.Equal(t, app, fg.AppID)
	assert.GreaterOrEqual(t, fg.Seq, cmd.Seq)
}

func TestForegroundReachesSurface(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	require.NoError(t, c.Hello("srf_test"))
	next(t, c)
	next(t, c)

	_, err := c.Foreground(ctx, app, t0)
	require.NoError(t, err)
	fg := next(t, c)
	assert.Equal(t, authority.CommandForeground, fg.Type)
	assert.Equal(t, app, fg.AppID)
	launch := next(t, c)
	assert.Equal(t, authority.CommandLaunch, launch.Type)
	assert.Less(t, fg.Seq, launch.Seq)

	// Switching apps is reported before anything is decided for the new one.
	_, err = c.Foreground(ctx, "com.android.settings", t0.Add(time.Second))
	require.NoError(t, err)
	fg = next(t, c)
	assert.Equal(t, authority.CommandForeground, fg.Type)
	assert.Equal(t, "com.android.settings", fg.AppID)
}

func TestForegroundAndIntentOverSocket(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := context.Background()

	require.NoError(t, c.Hello("srf_test"))
	next(t, c)

	d, err := c.Foreground(ctx, app, t0)
	require.NoError(t, err)
	assert.Equal(t, authority.Launch(app, authority.ReasonShowQuickTask), d)

	launch := nextNonForeground(t, c)
	assert.Equal(t, authority.CommandLaunch, launch.Type)
	assert.Equal(t, authority.ReasonShowQuickTask, launch.Reason)

	require.NoError(t, c.Intent(ctx, intent.Accept, intent.Request{AppID: app, DurationMs: 60_000}))

	active := nextNonForeground(t, c)
	assert.Equal(t, authority.CommandLaunch, active.Type)
	assert.Equal(t, authority.ReasonQuickTaskActive, active.Reason)
	quota := nextNonForeground(t, c)
	assert.Equal(t, authority.CommandQuotaUpdated, quota.Type)
	require.NotNil(t, quota.Remaining)
	assert.Equal(t, 1, *quota.Remaining)

	assert.Less(t, launch.Seq, active.Seq)
	assert.Less(t, active.Seq, quota.Seq)
	assert.Equal(t, authority.PhaseActive, f.auth.Entry(app).Phase)
}

func TestIntentRejected(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	err := c.Intent(context.Background(), intent.Decline, intent.Request{AppID: app})
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected), "got %v", err)
	assert.Contains(t, rejected.Reason, "want phase DECISION")

	err = c.Intent(context.Background(), "teleport", intent.Request{AppID: app})
	require.True(t, errors.As(err, &rejected))
	assert.Contains(t, rejected.Reason, "unknown intent")
}

func TestHeartbeatKeepsGuard(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, err := c.Foreground(context.Background(), app, t0)
	require.NoError(t, err)
	require.NoError(t, c.Heartbeat(app))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.WSMessages.WithLabelValues("in", string(MsgHeartbeat))) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, f.auth.Snapshot().Guard)
}

func TestSurfaceCloseReleasesGuard(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, err := c.Foreground(context.Background(), app, t0)
	require.NoError(t, err)
	require.NotNil(t, f.auth.Snapshot().Guard)

	require.NoError(t, c.Close())

	assert.Eventually(t, func() bool {
		return f.hub.Connected() == 0 && f.auth.Snapshot().Guard == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), f.metrics.Snapshot().ActiveConnections)
}

func TestOtherSurfaceCloseKeepsGuard(t *testing.T) {
	f := newFixture(t)
	holder := f.dial(t)
	require.NoError(t, holder.Hello("srf_main"))
	next(t, holder)

	_, err := holder.Foreground(context.Background(), app, t0)
	require.NoError(t, err)
	require.NoError(t, holder.Heartbeat(app))
	require.Eventually(t, func() bool {
		g := f.auth.Snapshot().Guard
		return g != nil && g.Surface == "srf_main"
	}, 2*time.Second, 5*time.Millisecond)

	other := f.dial(t)
	require.Eventually(t, func() bool { return f.hub.Connected() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, other.Close())
	require.Eventually(t, func() bool { return f.hub.Connected() == 1 }, 2*time.Second, 5*time.Millisecond)

	g := f.auth.Snapshot().Guard
	require.NotNil(t, g, "a surface that never held the guard cannot release it")
	assert.Equal(t, "srf_main", g.Surface)
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	f := newFixture(t)
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	defer conn.Close()

	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"not json", "{oops", "decode frame"},
		{"missing type", `{"payload":{}}`, "missing type"},
		{"unknown type", `{"type":"teleport","id":"7"}`, "unknown message type"},
		{"heartbeat without payload", `{"type":"heartbeat"}`, "missing payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()
			require.NoError(t, err)

			msg, err := decode(data)
			require.NoError(t, err)
			assert.Equal(t, MsgError, msg.Type)
			var p ErrorPayload
			require.NoError(t, payload(msg, &p))
			assert.Contains(t, p.Error, tt.want)
		})
	}
}

func TestSlowSurfaceIsDropped(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(HubOptions{Logger: zaptest.NewLogger(t), Metrics: metrics, SendBuffer: 1})
	slow := &client{send: make(chan []byte, 1), surfaceID: "srf_slow"}
	hub.add(slow)

	hub.Dispatch(authority.Command{Seq: 1, Type: authority.CommandFinishSurface})
	assert.Equal(t, 1, hub.Connected())

	hub.Dispatch(authority.Command{Seq: 2, Type: authority.CommandFinishSurface})
	assert.Equal(t, 0, hub.Connected())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CommandsDropped))

	// The queued frame is still delivered before the queue reports closed.
	_, ok := <-slow.send
	assert.True(t, ok)
	_, ok = <-slow.send
	assert.False(t, ok)

	// Removing twice is harmless.
	hub.remove(slow)
}

func TestConnectBeforeBind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(HubOptions{})
	router := gin.New()
	router.GET("/v1/surface", hub.HandleConnection)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/surface", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
