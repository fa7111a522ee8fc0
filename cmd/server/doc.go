// Package main is the entry point for the focusgate arbitration service.
//
// The service decides, for every monitored app coming to the foreground,
// whether the UI surface should offer a quick task, run an intervention or
// stay out of the way, and drives the surface over a WebSocket.
//
// Architecture:
//
//	Foreground source → HTTP/WS ingress → Decision Authority → Surface hub
//	                                          ↓
//	                                  Store (sqlite | redis | memory)
//
// The server provides:
//   - REST API for foreground events and user intents
//   - WebSocket channel to UI surfaces
//   - Prometheus metrics and a JSON state snapshot
//   - Crash recovery of phases, intentions and quota
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Optional YAML/TOML policy file
//
// Usage:
//
//	./server -port 8000 -store sqlite -policy policy.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
