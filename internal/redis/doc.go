// Package redis provides the broker client and the Pub/Sub listener that
// feeds the bridge.
package redis
