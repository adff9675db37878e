// Package bridge implements the broadcast dispatcher using the actor pattern.
//
// The Bridge fans classified broker events out to connected WebSocket clients:
// once to everyone, once more to the target room's members. Uses single
// goroutine + command channel (no mutexes). Per-connection write goroutines
// handle slow clients gracefully.
package bridge
