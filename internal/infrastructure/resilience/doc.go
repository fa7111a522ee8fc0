/*
Package resilience keeps persistence failures from stalling arbitration.

# Overview

Every mutation the authority makes is written through to the store. The
in-memory state stays authoritative, so a failing store must never block a
decision. Two primitives cover this:

  - Breaker: a three-state circuit breaker (Closed, Open, Half-Open) that
    short-circuits writes while the store keeps failing.
  - Retry: a bounded retry loop; persistence uses RetryOnce.

Both take a clockwork.Clock so tests can move time without sleeping.

# Usage

	breaker := resilience.New("store", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := resilience.Retry(ctx, resilience.RetryOnce(), func() error {
		return breaker.Execute(func() error {
			return store.Apply(ctx, batch)
		})
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
