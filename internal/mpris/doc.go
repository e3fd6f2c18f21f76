// Package mpris tracks the media-control endpoints on the local session
// bus and derives the single endpoint clients see as "current".
//
// A Handle wraps one org.mpris.MediaPlayer2.* bus name. The Directory
// keeps at most one live Handle per name and follows ownership changes.
// The Engine consumes the bus signal stream on a single goroutine, keeps
// Directory and selection coherent within one handling step, and fans
// out updated/changed events to subscribers.
package mpris
