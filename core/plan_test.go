package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentTitle(t *testing.T) {
	assert.Equal(t, "Inventory Specialist", AgentTitle("inventory_specialist"))
	assert.Equal(t, "Policy Expert", AgentTitle("policy-expert"))
	assert.Equal(t, "Orders", AgentTitle("orders"))
	assert.Equal(t, "", AgentTitle(""))
}

func TestCoordinationPlan(t *testing.T) {
	p := CoordinationPlan{}
	assert.True(t, p.IsEmpty())

	p.Intents = []AgentIntent{{AgentName: "inventory"}, {AgentName: "inventory"}, {AgentName: "notification"}}
	assert.False(t, p.IsEmpty())
	assert.Equal(t, []string{"inventory", "inventory", "notification"}, p.AgentNames())
}

func TestDataBlock_Notice(t *testing.T) {
	b := DataBlock{AgentName: "analytics", Err: "timeout after 3 attempts"}
	assert.True(t, b.Failed())
	assert.Equal(t, "[analytics unavailable: timeout after 3 attempts]", b.Notice())
	assert.False(t, DataBlock{AgentName: "x", Content: "ok"}.Failed())
}
