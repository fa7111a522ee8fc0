// Package renderer is the reference terminal surface. It hosts one
// surface.Surface at a time, renders its Session with Lip Gloss and turns
// key presses into intents.
//
// When a surface reaches FINISH the renderer drops it and starts a fresh
// PENDING surface, the way a platform would destroy a window and create a
// new one for the next launch.
package renderer
