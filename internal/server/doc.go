// Package server wires the HTTP edge: health and metrics endpoints plus the
// WebSocket upgrade path that hands connections to the bridge.
package server
