package authority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/focusgate/internal/storage"
	"github.com/GriffinCanCode/focusgate/internal/storage/memory"
)

func seeded(values map[string]string) *memory.Store {
	s := memory.New()
	raw := make(map[string][]byte, len(values))
	for k, v := range values {
		raw[k] = []byte(v)
	}
	s.Seed(raw)
	return s
}

func TestRecoverReschedulesRemainingTime(t *testing.T) {
	store := seeded(map[string]string{
		storage.AppKey(appA): `{"phase":"ACTIVE","expiresAt":"2026-05-04T09:01:00Z"}`,
		storage.QuotaKey:     `{"remaining":2}`,
	})
	h := newHarnessAt(t, t0.Add(30*time.Second), store)

	assert.Equal(t, PhaseActive, h.phase(appA))
	assert.Equal(t, 2, h.quota())
	deadline, ok := h.sched.Deadline(appA)
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), deadline)

	assert.Equal(t, None(), h.enter(t, appA), "quick task still running")

	h.clock.Advance(29 * time.Second)
	assert.Never(t, func() bool { return h.phase(appA) != PhaseActive }, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return h.disp.launches(appA, ReasonPostChoice) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, PhasePostChoice, h.phase(appA))
}

func TestRecoverClearsQuickTasksExpiredWhileDown(t *testing.T) {
	store := seeded(map[string]string{
		storage.AppKey(appA): `{"phase":"ACTIVE","expiresAt":"2026-05-04T08:59:00Z"}`,
	})
	h := newHarness(t, store)

	assert.Equal(t, PhaseIdle, h.phase(appA))
	assert.Empty(t, h.disp.all(), "no UI for an expiry nobody saw")
	_, ok := store.Get(storage.AppKey(appA))
	assert.False(t, ok)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestRecoverReport(t *testing.T) {
	store := seeded(map[string]string{
		storage.AppKey(appA):       `{"phase":"ACTIVE","expiresAt":"2026-05-04T09:05:00Z"}`,
		storage.AppKey(appB):       `{"phase":"ACTIVE","expiresAt":"2026-05-04T08:00:00Z"}`,
		storage.AppKey(appC):       `{"phase":"DECISION"}`,
		storage.AppKey("com.x"):    `{"phase":"EXPLODED"}`,
		storage.AppKey("com.y"):    `not json`,
		storage.AppKey("com.z"):    `{"phase":"ACTIVE"}`,
		storage.IntentionKey(appA): `{"expiresAt":"2026-05-04T10:00:00Z"}`,
		storage.IntentionKey(appB): `{"expiresAt":"2026-05-04T08:00:00Z"}`,
		storage.QuotaKey:           `{"remaining":1}`,
	})

	h := newHarness(t, store)
	report := h.report

	assert.Equal(t, []string{appA}, report.Rescheduled)
	assert.Equal(t, []string{appB}, report.Expired)
	assert.ElementsMatch(t, []string{
		storage.AppKey("com.x"), storage.AppKey("com.y"), storage.AppKey("com.z"),
	}, report.Discarded)
	assert.Equal(t, 1, report.Intentions)
	assert.Equal(t, 1, report.Quota)

	for _, key := range []string{storage.AppKey("com.x"), storage.AppKey("com.y"), storage.AppKey("com.z"), storage.IntentionKey(appB)} {
		_, ok := store.Get(key)
		assert.False(t, ok, key)
	}
	assert.Equal(t, PhaseDecision, h.phase(appC))
}

func TestRecoverNormalizesPostChoice(t *testing.T) {
	store := seeded(map[string]string{
		storage.AppKey(appA): `{"phase":"POST_CHOICE","expiresAt":"2026-05-04T08:00:00Z"}`,
	})
	h := newHarness(t, store)

	e := h.a.Entry(appA)
	assert.Equal(t, PhasePostChoice, e.Phase)
	assert.True(t, e.ExpiresAt.IsZero())

	raw, ok := store.Get(storage.AppKey(appA))
	require.True(t, ok)
	assert.JSONEq(t, `{"phase":"POST_CHOICE"}`, string(raw))

	// The obligation is replayed on the next entry since no surface shows it.
	assert.Equal(t, None(), h.enter(t, appA))
	assert.Equal(t, 1, h.disp.launches(appA, ReasonPostChoice))
}

func TestRecoverClampsQuota(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"missing", "", 3},
		{"negative", `{"remaining":-4}`, 0},
		{"above max", `{"remaining":12}`, 3},
		{"in range", `{"remaining":2}`, 2},
		{"corrupt", `{"remaining":"many"}`, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{}
			if tt.raw != "" {
				values[storage.QuotaKey] = tt.raw
			}
			h := newHarness(t, seeded(values), withQuota(3))
			assert.Equal(t, tt.want, h.quota())
		})
	}
}

func TestRecoverFailsWhenStoreUnreadable(t *testing.T) {
	a, err := New(Options{Store: failingLoad{}, Dispatcher: &recordingDispatcher{}})
	require.NoError(t, err)

	_, err = a.Recover(ctx)
	assert.Error(t, err)
	_, err = a.OnForegroundEntry(ctx, appA, time.Now())
	assert.ErrorIs(t, err, ErrNotRecovered)
}

type failingLoad struct{ storage.Store }

func (failingLoad) Load(context.Context) (map[string][]byte, error) {
	return nil, errors.New("disk on fire")
}
