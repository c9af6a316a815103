package tlmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent("user_1", EventInterestCreated, map[string]any{"property_id": "p1"})

	assert.Equal(t, "user_1", ev.DistinctID)
	assert.Equal(t, EventInterestCreated, ev.Name)
	assert.Equal(t, "p1", ev.Properties["property_id"])

	anon := NewEvent("", EventPropertyCreated, nil)
	assert.Equal(t, generateMachineID().id, anon.DistinctID)
	assert.NotContains(t, anon.Properties, "property_id")
}
