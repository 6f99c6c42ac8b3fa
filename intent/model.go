package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/internal/util"
	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/model"
)

// DefaultPrompt is the classification prompt. It is rendered with the keys
// agents ([]agent.Spec), user_prompt and context.
const DefaultPrompt = `You are an intent classifier for an enterprise agent orchestration system.

Available agents:
{{range .agents}}- **{{.Name}}** - {{.Description}}
{{end}}
Analyze the user's request and determine:
1. Which agent(s) need to be involved
2. What specific question or task each agent should handle
3. Whether coordination between agents is needed

Rules:
- Inventory questions by name, SKU or category go to inventory_specialist.
- Price filtering ("under $X", "over $Y", "between $A-$B") and quantity filtering ("below X units") go to analytics_specialist, never inventory_specialist.
- Policies, rules and customer compliance go to policy_expert.
- Orders, purchases, suppliers, reorders, procurement and supplier compliance go to order_specialist.
- Drafting, sending, e-mailing or notifying goes to notification_specialist.
- If one task needs another task's output (for example "analyze trends AND email the results"), set "requires_coordination": true.
- If the tasks are independent (for example "stock of X and policy for Y"), set "requires_coordination": false.
- Give each agent a targeted prompt that contains only its part of the request.
- For follow-up questions with pronouns (it, them, that, which), keep the domain of the previous context.
{{if .context}}
{{.context}}
{{end}}
USER REQUEST: {{.user_prompt}}

Respond with a JSON object following this schema:
{
  "agents_needed": [
    {"agent_name": "{{join "\" | \"" .names}}", "targeted_prompt": "Specific question for this agent", "reason": "Why this agent is needed"}
  ],
  "requires_coordination": true | false,
  "user_intent_summary": "Brief summary of what the user wants"
}

Example:

User: "Check pump inventory and draft an email to sales@company.com about it"
Response:
{
  "agents_needed": [
    {"agent_name": "inventory_specialist", "targeted_prompt": "What pumps do we have in stock? Include quantities, SKUs and prices.", "reason": "Need inventory data for the email"},
    {"agent_name": "notification_specialist", "targeted_prompt": "Draft an email to sales@company.com summarizing the pump inventory data", "reason": "User wants to email the results"}
  ],
  "requires_coordination": true,
  "user_intent_summary": "Get pump inventory and email a summary to sales"
}

Now classify this request and respond with ONLY the JSON object (no other text before or after):`

// ModelClassifierOptions configures a ModelClassifier.
type ModelClassifierOptions struct {
	// Prompt overrides DefaultPrompt.
	Prompt string
	// Agents is the catalogue rendered into the prompt.
	Agents []agent.Spec
	// Temperature for the classification request. Defaults to 0.
	Temperature float64
	Logger      logging.Logger
}

// ModelClassifier classifies intents with a language model.
type ModelClassifier struct {
	llm  model.Model
	opts ModelClassifierOptions
}

// NewModelClassifier creates a ModelClassifier.
func NewModelClassifier(llm model.Model, optFns ...func(o *ModelClassifierOptions)) *ModelClassifier {
	opts := ModelClassifierOptions{
		Prompt: DefaultPrompt,
		Agents: agent.DefaultSpecs(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &ModelClassifier{llm: llm, opts: opts}
}

// Classify implements Classifier. Intents without a targeted prompt receive
// the full user text. A context deadline maps to ErrClassificationTimeout.
func (c *ModelClassifier) Classify(ctx context.Context, userText, contextWindow string) (core.CoordinationPlan, error) {
	prompt, err := c.render(userText, contextWindow)
	if err != nil {
		return core.CoordinationPlan{}, err
	}

	temp := c.opts.Temperature
	resp, err := c.llm.Generate(ctx, model.Request{
		Messages:    []model.Message{{Role: model.RoleUser, Text: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return core.CoordinationPlan{}, fmt.Errorf("%w: %v", ErrClassificationTimeout, err)
		}
		return core.CoordinationPlan{}, fmt.Errorf("classify intent: %w", err)
	}

	plan, err := ParseClassification(resp.Text)
	if err != nil {
		c.opts.Logger.Warn("intent parse failed", "error", err, "raw", truncate(resp.Text, 500))
		return core.CoordinationPlan{}, err
	}
	for i := range plan.Intents {
		if plan.Intents[i].TargetedPrompt == "" {
			plan.Intents[i].TargetedPrompt = userText
		}
	}

	c.opts.Logger.Info("intent classified",
		"agents", plan.AgentNames(),
		"mode", plan.Mode.String(),
		"summary", plan.Summary,
	)
	return plan, nil
}

func (c *ModelClassifier) render(userText, contextWindow string) (string, error) {
	names := make([]string, len(c.opts.Agents))
	for i, a := range c.opts.Agents {
		names[i] = a.Name
	}
	return util.RenderTemplate(c.opts.Prompt, map[string]any{
		"agents":      c.opts.Agents,
		"names":       names,
		"user_prompt": strings.TrimSpace(userText),
		"context":     strings.TrimSpace(contextWindow),
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
