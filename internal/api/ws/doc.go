// Package ws carries the authority/surface channel over WebSocket.
//
// The Hub is the authority side: it implements authority.Dispatcher,
// broadcasting every command to connected surfaces without blocking, and
// routes inbound frames to the authority. The Client is the surface side.
//
// Frames are JSON envelopes {type, id?, payload}.
//
// Surface → authority:
//   - hello{surfaceId}: answered by bootstrap, then a foreground command
//   - intent{name, request}: answered by reply with the same id
//   - foreground{appId, timestamp}: answered by reply carrying the decision
//   - heartbeat{appId}: keeps the surface guard alive, no answer
//
// Authority → surface:
//   - bootstrap: the command a new surface should apply first
//   - command: launch, finish_surface, quota_updated or foreground
//   - reply{ok, error?, decision?}
//   - error{error}: malformed or unknown frame
//
// A client that cannot keep up with commands is disconnected. A closed
// socket is reported to the authority as SurfaceClosed, which releases the
// surface guard only if that surface held it.
package ws
