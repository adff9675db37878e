package events

import "time"

// Default values for alert fields the publisher left out.
const (
	defaultAlertType     = "count_exceeded"
	defaultAlertMessage  = "Item count exceeded the limit."
	defaultAlertSeverity = "warning"
)

// enrichAlert fills gaps in an alert payload: every incoming field is kept
// verbatim, then type, message, severity, and timestamp fall back to defaults
// when the incoming value is absent or falsy. The falsy check (not a strict
// presence check) matches the upstream publisher contract: an explicit empty
// string takes the default. current_count and threshold are never defaulted.
func (c *Classifier) enrichAlert(data map[string]any) map[string]any {
	alert := make(map[string]any, len(data)+4)
	for k, v := range data {
		alert[k] = v
	}

	if falsy(alert["type"]) {
		alert["type"] = defaultAlertType
	}
	if falsy(alert["message"]) {
		alert["message"] = defaultAlertMessage
	}
	if falsy(alert["severity"]) {
		alert["severity"] = defaultAlertSeverity
	}
	if falsy(alert["timestamp"]) {
		alert["timestamp"] = c.clock.Now().UTC().Format(time.RFC3339)
	}

	return alert
}

// falsy reports whether a decoded JSON value counts as absent for defaulting.
// Mirrors JavaScript truthiness for the value types json.Unmarshal produces.
func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	default:
		return false
	}
}
