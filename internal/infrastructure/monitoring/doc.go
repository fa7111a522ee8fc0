/*
Package monitoring provides Prometheus metrics for the arbitration service.

# Overview

Metrics are registered on an injected prometheus.Registerer, so each
server (and each test) owns its registry. Every recording method is safe
to call on a nil *Metrics.

Tracked:

- Foreground events by class and entry decisions by reason
- User intents and their outcomes
- Remaining quota, timer expiries, surface guard expiries
- Commands dispatched to and dropped before the surface
- Store operations, latency and write failures
- WebSocket connections and messages
- HTTP request counts and latency

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	timer := monitoring.NewTimer(metrics, "apply")
	err := store.Apply(ctx, batch)
	timer.Stop(err)
*/
package monitoring
