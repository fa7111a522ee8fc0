// Package http provides the REST surface of the arbitration service.
//
// Routes:
//   - GET  /                          service banner
//   - GET  /health                    liveness plus quota and surface count
//   - GET  /v1/state                  authority snapshot (debug)
//   - GET  /v1/metrics/summary        tracked metric values as JSON
//   - POST /v1/events/foreground      ForegroundEntered{appId, timestamp}
//   - POST /v1/intents/{name}         user intents (see package intent)
//   - POST /v1/logs                   log lines streamed by a surface
//
// Every intent replies {ok, error?}. Authority errors map to HTTP status
// codes in one place (errors.go).
package http
