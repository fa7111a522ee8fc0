package authority

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/focusgate/internal/storage"
)

const writeTimeout = 2 * time.Second

// committer writes batches through to the store. A batch that fails after
// retry is kept as dirty and folded into the next write, so the store
// converges on the in-memory state once it recovers.
type committer struct {
	store   storage.Store
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	dirty storage.Batch
}

func newCommitter(store storage.Store, breaker *resilience.Breaker, logger *zap.Logger, metrics *monitoring.Metrics) *committer {
	return &committer{
		store:   store,
		breaker: breaker,
		retry:   resilience.RetryOnce(),
		logger:  logger,
		metrics: metrics,
		dirty:   storage.NewBatch(),
	}
}

// commit writes b together with any dirty keys. The write outlives the
// caller's cancellation; a client hanging up must not leave keys behind.
func (c *committer) commit(ctx context.Context, b storage.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := storage.NewBatch()
	pending.Merge(c.dirty)
	pending.Merge(b)
	if pending.Empty() {
		return nil
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	err := resilience.Retry(wctx, c.retry, func() error {
		return c.breaker.Execute(func() error {
			timer := monitoring.NewTimer(c.metrics, "apply")
			err := c.store.Apply(wctx, pending)
			timer.Stop(err)
			return err
		})
	})
	if err != nil {
		c.dirty = pending
		c.metrics.IncStoreFailures()
		perr := &PersistenceError{Keys: pending.Keys(), Err: err}
		c.logger.Warn("State write failed, keeping in-memory state",
			zap.Strings("keys", perr.Keys),
			zap.String("breaker", c.breaker.State().String()),
			zap.Error(err))
		return perr
	}

	if !c.dirty.Empty() {
		c.logger.Info("Deferred state written", zap.Int("keys", len(c.dirty.Keys())))
	}
	c.dirty = storage.NewBatch()
	return nil
}

// flush retries any dirty keys.
func (c *committer) flush(ctx context.Context) error {
	return c.commit(ctx, storage.NewBatch())
}

func (c *committer) dirtyKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty.Keys()
}
