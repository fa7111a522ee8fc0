package authority

import (
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

type quotaState struct {
	remaining   int
	windowStart time.Time
}

// QuotaView is the exported quota state.
type QuotaView struct {
	Remaining   int       `json:"remaining"`
	Max         int       `json:"max"`
	WindowStart time.Time `json:"windowStart,omitempty"`
	Window      string    `json:"window,omitempty"`
}

// refillLocked restores the full quota once the window has elapsed and
// reports whether the remaining count changed. Caller holds quotaMu.
func (a *Authority) refillLocked(b *storage.Batch, now time.Time) bool {
	if a.quotaWindow <= 0 {
		return false
	}
	if a.quota.windowStart.IsZero() {
		a.quota.windowStart = now
		a.stageQuotaLocked(b)
		return false
	}
	end := a.quota.windowStart.Add(a.quotaWindow)
	if now.Before(end) {
		return false
	}

	windows := now.Sub(a.quota.windowStart) / a.quotaWindow
	a.quota.windowStart = a.quota.windowStart.Add(windows * a.quotaWindow)
	changed := a.quota.remaining != a.quotaMax
	a.quota.remaining = a.quotaMax
	a.stageQuotaLocked(b)

	if changed {
		a.logger.Info("Quota refilled",
			zap.Int("remaining", a.quota.remaining),
			zap.Time("window_start", a.quota.windowStart))
	}
	return changed
}

// stageQuotaLocked writes the current quota into b. Caller holds quotaMu.
func (a *Authority) stageQuotaLocked(b *storage.Batch) {
	remaining := a.quota.remaining
	rec := storage.QuotaRecord{Remaining: &remaining}
	if !a.quota.windowStart.IsZero() {
		ws := a.quota.windowStart.UTC()
		rec.WindowStart = &ws
	}
	data, err := storage.Encode(rec)
	if err != nil {
		a.logger.Error("Failed to encode quota", zap.Error(err))
		return
	}
	b.Put(storage.QuotaKey, data)
	a.metrics.SetQuotaRemaining(remaining)
}

// Quota returns the remaining and maximum quick task count.
func (a *Authority) Quota() (remaining, max int) {
	a.quotaMu.Lock()
	defer a.quotaMu.Unlock()
	return a.quota.remaining, a.quotaMax
}

func (a *Authority) quotaView() QuotaView {
	a.quotaMu.Lock()
	defer a.quotaMu.Unlock()
	v := QuotaView{
		Remaining:   a.quota.remaining,
		Max:         a.quotaMax,
		WindowStart: a.quota.windowStart,
	}
	if a.quotaWindow > 0 {
		v.Window = a.quotaWindow.String()
	}
	return v
}
