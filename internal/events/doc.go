// Package events decodes raw broker payloads, maps channels to event kinds
// and target rooms, and enriches alert payloads with defaults.
package events
