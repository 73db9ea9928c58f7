// Package events implements the host event bus: a single-goroutine
// dispatch loop that forwards command, filetype, and key events to
// subscribers. The activator subscribes to drive deferred activation.
// A manifest file watcher can feed change events onto the same bus.
package events
