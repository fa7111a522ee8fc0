// Package surface is the UI-side half of arbitration: it turns authority
// commands into a renderable Session and owns the surface lifecycle.
//
// Components:
//   - Project: pure mapping of the latest command, the user foreground and
//     any running activity to a Session
//   - Surface: one UI surface instance and its lifecycle
//     (PENDING, SHOW_SESSION, FINISH)
//
// Lifecycle Rules:
//  1. A new surface starts PENDING and renders nothing
//  2. A Launch command moves it to SHOW_SESSION
//  3. FinishSurface (or a bootstrap with nothing outstanding) moves it to FINISH
//  4. FINISH is terminal; a later launch needs a new surface
//
// An empty Session never finishes the surface. Only FINISH does.
//
// Foreground commands update the user foreground without touching the
// lifecycle. Running activities are kept per app, so switching to another
// app's session does not forget them; an intervention launch states
// whether its app has one.
//
// Example Usage:
//
//	s := surface.New(id.NewSurfaceID().String())
//	s.Apply(bootstrapCmd)
//	if s.ShouldFinish() {
//		closeWindow()
//	}
//	render(s.Session())
package surface
