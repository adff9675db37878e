package events

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyAlert(t *testing.T, c *Classifier, payload string) map[string]any {
	t.Helper()
	event, err := c.Classify(ChannelInventoryAlerts, []byte(payload))
	require.NoError(t, err)
	return event.Data
}

func TestEnrichAlert_DefaultsForMissingFields(t *testing.T) {
	c := testClassifier()

	alert := classifyAlert(t, c, `{"current_count":150,"threshold":100}`)

	assert.Equal(t, "count_exceeded", alert["type"])
	assert.Equal(t, "Item count exceeded the limit.", alert["message"])
	assert.Equal(t, "warning", alert["severity"])
	assert.Equal(t, "2026-03-14T09:30:00Z", alert["timestamp"])
	assert.Equal(t, float64(150), alert["current_count"])
	assert.Equal(t, float64(100), alert["threshold"])
}

func TestEnrichAlert_IncomingFieldsWin(t *testing.T) {
	c := testClassifier()

	alert := classifyAlert(t, c, `{"severity":"critical","type":"custom","message":"shelf B empty","timestamp":"2026-01-01T00:00:00Z"}`)

	// Incoming values override every default, including type
	assert.Equal(t, "custom", alert["type"])
	assert.Equal(t, "critical", alert["severity"])
	assert.Equal(t, "shelf B empty", alert["message"])
	assert.Equal(t, "2026-01-01T00:00:00Z", alert["timestamp"])
}

func TestEnrichAlert_FalsyPresentFieldsTakeDefaults(t *testing.T) {
	c := testClassifier()

	// An explicit empty string counts as absent: the default applies.
	// This is a falsy check, not a presence check.
	alert := classifyAlert(t, c, `{"severity":"","message":"","type":"","timestamp":""}`)

	assert.Equal(t, "count_exceeded", alert["type"])
	assert.Equal(t, "Item count exceeded the limit.", alert["message"])
	assert.Equal(t, "warning", alert["severity"])
	assert.Equal(t, "2026-03-14T09:30:00Z", alert["timestamp"])
}

func TestEnrichAlert_NullFieldsTakeDefaults(t *testing.T) {
	c := testClassifier()

	alert := classifyAlert(t, c, `{"severity":null,"type":null}`)

	assert.Equal(t, "count_exceeded", alert["type"])
	assert.Equal(t, "warning", alert["severity"])
}

func TestEnrichAlert_CountsNeverDefaulted(t *testing.T) {
	c := testClassifier()

	alert := classifyAlert(t, c, `{}`)

	assert.NotContains(t, alert, "current_count")
	assert.NotContains(t, alert, "threshold")
}

func TestEnrichAlert_ZeroCountsSurvive(t *testing.T) {
	c := testClassifier()

	// current_count and threshold are copied verbatim even when zero
	alert := classifyAlert(t, c, `{"current_count":0,"threshold":0}`)

	assert.Equal(t, float64(0), alert["current_count"])
	assert.Equal(t, float64(0), alert["threshold"])
}

func TestEnrichAlert_ExtraFieldsPassThrough(t *testing.T) {
	c := testClassifier()

	alert := classifyAlert(t, c, `{"warehouse":"east-2","sku":"W-1138","tags":["restock","urgent"]}`)

	assert.Equal(t, "east-2", alert["warehouse"])
	assert.Equal(t, "W-1138", alert["sku"])
	assert.Equal(t, []any{"restock", "urgent"}, alert["tags"])
}

func TestEnrichAlert_TimestampAdvancesWithClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	c := NewClassifier(clock)

	first := classifyAlert(t, c, `{}`)
	clock.Advance(90 * time.Second)
	second := classifyAlert(t, c, `{}`)

	assert.Equal(t, "2026-03-14T09:30:00Z", first["timestamp"])
	assert.Equal(t, "2026-03-14T09:31:30Z", second["timestamp"])
}

func TestFalsy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"zero number", float64(0), true},
		{"false", false, true},
		{"non-empty string", "x", false},
		{"non-zero number", float64(1), false},
		{"true", true, false},
		{"object", map[string]any{}, false},
		{"array", []any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, falsy(tt.v))
		})
	}
}
