package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/core"
)

func TestKeywordClassifier_Routes(t *testing.T) {
	c := NewKeywordClassifier()
	ctx := context.Background()

	tests := []struct {
		name   string
		text   string
		agents []string
		mode   core.Mode
	}{
		{"inventory", "How many pumps do we have?", []string{agent.InventorySpecialist}, core.ModeParallel},
		{"price filter goes to analytics", "Show me items under $50", []string{agent.AnalyticsSpecialist}, core.ModeParallel},
		{"quantity filter goes to analytics", "Which items are below 20 units?", []string{agent.AnalyticsSpecialist}, core.ModeParallel},
		{"policy", "What is our return policy for electronics?", []string{agent.PolicyExpert}, core.ModeParallel},
		{"supplier compliance goes to orders", "Check supplier compliance for Acme", []string{agent.OrderSpecialist}, core.ModeParallel},
		{"independent tasks", "Return policy and how many valves are in warehouse B?", []string{agent.InventorySpecialist, agent.PolicyExpert}, core.ModeParallel},
		{"data then email", "Check valve inventory and email the results to ops@acme.com", []string{agent.InventorySpecialist, agent.NotificationSpecialist}, core.ModeSequential},
		{"address does not route", "Draft an email to orders@acme.com asking for a quote", []string{agent.NotificationSpecialist}, core.ModeParallel},
		{"nothing", "good morning", nil, core.ModeParallel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := c.Classify(ctx, tt.text, "")
			require.NoError(t, err)
			assert.Equal(t, tt.agents, nilIfEmpty(plan.AgentNames()))
			assert.Equal(t, tt.mode, plan.Mode)
			for _, in := range plan.Intents {
				assert.Equal(t, tt.text, in.TargetedPrompt)
				assert.NotEmpty(t, in.Reason)
			}
		})
	}
}

func TestKeywordClassifier_FollowUpKeepsDomain(t *testing.T) {
	c := NewKeywordClassifier()
	window := "[Previous conversation context:]\nUser: What is the warranty on motors?\nAssistant: Two years.\n[End of context]"

	plan, err := c.Classify(context.Background(), "and for that one in Europe?", window)
	require.NoError(t, err)
	assert.Equal(t, []string{agent.PolicyExpert}, plan.AgentNames())
	assert.Equal(t, "and for that one in Europe?", plan.Intents[0].TargetedPrompt)
}

func TestKeywordClassifier_FollowUpIgnoresPreviousAction(t *testing.T) {
	c := NewKeywordClassifier()
	window := "User: Draft an email to bob@acme.com\nAssistant: Draft ready."

	plan, err := c.Classify(context.Background(), "thanks for that", window)
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestKeywordClassifier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeywordClassifier().Classify(ctx, "stock", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
