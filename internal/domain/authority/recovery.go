package authority

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/storage"
)

// RecoveryReport summarises what Recover found in the store.
type RecoveryReport struct {
	Entries     int      `json:"entries"`
	Rescheduled []string `json:"rescheduled,omitempty"`
	Expired     []string `json:"expired,omitempty"`
	Discarded   []string `json:"discarded,omitempty"`
	Intentions  int      `json:"intentions"`
	Quota       int      `json:"quota"`
}

// Recover loads persisted state and re-arms timers. Unreadable or
// inconsistent entries are dropped to IDLE. Quick tasks that expired while
// the process was down are cleared without UI, since where the user was at
// that moment is unknown.
func (a *Authority) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	raw, err := a.committer.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}
	st := storage.DecodeState(raw)
	now := a.clock.Now()

	b := storage.NewBatch()
	for _, key := range st.Discarded {
		b.Delete(key)
		report.Discarded = append(report.Discarded, key)
	}

	var expired []Entry
	for app, rec := range st.Entries {
		e, ok := a.recoverEntry(app, rec, now, &b)
		if !ok {
			report.Discarded = append(report.Discarded, storage.AppKey(app))
			continue
		}
		if e.Phase == PhaseActive && !e.ExpiresAt.After(now) {
			expired = append(expired, e)
		}
		report.Entries++
	}

	a.mu.Lock()
	for app, rec := range st.Intentions {
		if rec.ExpiresAt.After(now) {
			a.intentions[app] = rec.ExpiresAt
			report.Intentions++
			continue
		}
		b.Delete(storage.IntentionKey(app))
	}
	a.mu.Unlock()

	a.quotaMu.Lock()
	a.recoverQuotaLocked(st.Quota, now, &b)
	a.refillLocked(&b, now)
	report.Quota = a.quota.remaining
	a.metrics.SetQuotaRemaining(a.quota.remaining)
	a.quotaMu.Unlock()

	if err := a.committer.commit(ctx, b); err != nil {
		a.logger.Warn("Recovery cleanup not persisted", zap.Error(err))
	}
	a.recovered.Store(true)

	// Armed last so a fire cannot race the load above.
	a.mu.RLock()
	var active []Entry
	for _, e := range a.entries {
		if e.Phase == PhaseActive && e.ExpiresAt.After(now) {
			active = append(active, e)
		}
	}
	a.mu.RUnlock()
	for _, e := range active {
		a.scheduler.Schedule(e.AppID, e.ExpiresAt)
		report.Rescheduled = append(report.Rescheduled, e.AppID)
	}

	for _, e := range expired {
		if err := a.expire(ctx, e.AppID, e.ExpiresAt, false); err != nil {
			a.logger.Warn("Expired entry cleanup failed", zap.String("app", e.AppID), zap.Error(err))
			continue
		}
		report.Expired = append(report.Expired, e.AppID)
	}

	sort.Strings(report.Rescheduled)
	sort.Strings(report.Expired)
	sort.Strings(report.Discarded)
	a.logger.Info("State recovered",
		zap.Int("entries", report.Entries),
		zap.Strings("rescheduled", report.Rescheduled),
		zap.Strings("expired", report.Expired),
		zap.Strings("discarded", report.Discarded),
		zap.Int("intentions", report.Intentions),
		zap.Int("quota", report.Quota))
	return report, nil
}

// recoverEntry validates one persisted entry and loads it into memory.
func (a *Authority) recoverEntry(app string, rec storage.EntryRecord, now time.Time, b *storage.Batch) (Entry, bool) {
	e := Entry{AppID: app, Phase: ParsePhase(rec.Phase)}
	if rec.ExpiresAt != nil {
		e.ExpiresAt = *rec.ExpiresAt
	}

	switch e.Phase {
	case PhaseIdle:
		b.Delete(storage.AppKey(app))
		return e, false
	case PhaseActive:
		if e.ExpiresAt.IsZero() {
			b.Delete(storage.AppKey(app))
			a.logger.Warn("Active entry without expiry discarded", zap.String("app", app))
			return e, false
		}
	case PhasePostChoice:
		if !e.ExpiresAt.IsZero() {
			e.ExpiresAt = time.Time{}
			a.setEntry(b, e)
			return e, true
		}
	case PhaseDecision:
		e.ExpiresAt = time.Time{}
	}

	a.mu.Lock()
	a.entries[app] = e
	a.mu.Unlock()
	return e, true
}

// recoverQuotaLocked loads the quota, treating a missing value as full and
// clamping to [0, max]. Caller holds quotaMu.
func (a *Authority) recoverQuotaLocked(rec storage.QuotaRecord, now time.Time, b *storage.Batch) {
	remaining := a.quotaMax
	if rec.Remaining != nil {
		remaining = *rec.Remaining
	}
	clamped := min(max(remaining, 0), a.quotaMax)
	a.quota.remaining = clamped
	if rec.WindowStart != nil {
		a.quota.windowStart = *rec.WindowStart
	}
	if rec.Remaining == nil || clamped != remaining {
		a.stageQuotaLocked(b)
	}
}
