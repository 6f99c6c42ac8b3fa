package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/core"
)

// Rule routes messages matching any of its patterns to Agent.
type Rule struct {
	Agent    string
	Reason   string
	Patterns []*regexp.Regexp
	// Exclude suppresses the rule when any of these match.
	Exclude []*regexp.Regexp
}

func (r Rule) matches(text string) bool {
	for _, ex := range r.Exclude {
		if ex.MatchString(text) {
			return false
		}
	}
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// DefaultRules route to the built-in specialists. Data rules come first in
// the order their agents should run; the notification rule is last.
func DefaultRules() []Rule {
	return []Rule{
		{
			Agent:  agent.AnalyticsSpecialist,
			Reason: "price, quantity or trend analysis",
			Patterns: patterns(
				`\b(under|over|below|above|between|less than|more than)\s+\$\s?\d`,
				`\b(below|under|less than|fewer than)\s+\d+\s+(units?|stock|items?)`,
				`\b(trends?|forecasts?|analytics|reports?|valuation|revenue|top\s+\d+)\b`,
			),
		},
		{
			Agent:  agent.InventorySpecialist,
			Reason: "inventory lookup",
			Patterns: patterns(
				`\b(inventory|stock|in stock|sku|warehouse|how many|pumps?|valves?|products?)\b`,
			),
		},
		{
			Agent:    agent.PolicyExpert,
			Reason:   "policy lookup",
			Patterns: patterns(`\b(polic(y|ies)|returns?|refunds?|warrant(y|ies)|compliance|regulations?|hr)\b`),
			Exclude:  patterns(`\bsupplier\s+compliance\b`),
		},
		{
			Agent:  agent.OrderSpecialist,
			Reason: "order management or procurement",
			Patterns: patterns(
				`\b(orders?|purchase|suppliers?|reorder|procurement|tracking|shipments?)\b`,
			),
		},
		{
			Agent:    agent.NotificationSpecialist,
			Reason:   "user wants an e-mail drafted or sent",
			Patterns: patterns(`\b(e-?mail|draft|notify|notification|send)\b`),
		},
	}
}

// KeywordOptions configures a KeywordClassifier.
type KeywordOptions struct {
	Rules []Rule
	// ActionAgents name the agents that consume other agents' output. A plan
	// combining one of them with a data agent runs sequentially.
	ActionAgents []string
}

// KeywordClassifier routes by regular-expression rules. Every matching rule
// contributes one intent carrying the full user text.
type KeywordClassifier struct {
	rules   []Rule
	actions map[string]struct{}
}

// NewKeywordClassifier creates a KeywordClassifier.
func NewKeywordClassifier(optFns ...func(o *KeywordOptions)) *KeywordClassifier {
	opts := KeywordOptions{
		Rules:        DefaultRules(),
		ActionAgents: []string{agent.NotificationSpecialist},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	actions := make(map[string]struct{}, len(opts.ActionAgents))
	for _, a := range opts.ActionAgents {
		actions[a] = struct{}{}
	}
	return &KeywordClassifier{rules: opts.Rules, actions: actions}
}

// Classify implements Classifier. When the message matches no data rule the
// most recent user line of the context window decides the data agents, so a
// follow-up like "and what about valves?" stays in its domain.
func (k *KeywordClassifier) Classify(ctx context.Context, userText, contextWindow string) (core.CoordinationPlan, error) {
	if err := ctx.Err(); err != nil {
		return core.CoordinationPlan{}, err
	}

	text := strings.TrimSpace(userText)
	plan := core.CoordinationPlan{Mode: core.ModeParallel}
	matched := k.match(text)

	if !k.hasData(matched) && contextWindow != "" {
		if prev := lastUserLine(contextWindow); prev != "" {
			for _, r := range k.match(prev) {
				if _, action := k.actions[r.Agent]; !action {
					matched = append(matched, r)
				}
			}
		}
	}

	var data, actions []core.AgentIntent
	for _, r := range k.rules {
		if !contains(matched, r.Agent) {
			continue
		}
		in := core.AgentIntent{AgentName: r.Agent, TargetedPrompt: text, Reason: r.Reason}
		if _, ok := k.actions[r.Agent]; ok {
			actions = append(actions, in)
		} else {
			data = append(data, in)
		}
	}
	plan.Intents = append(data, actions...)
	if len(data) > 0 && len(actions) > 0 {
		plan.Mode = core.ModeSequential
	}
	if !plan.IsEmpty() {
		plan.Summary = "keyword routing to " + strings.Join(plan.AgentNames(), ", ")
	}
	return plan, nil
}

var addressRe = regexp.MustCompile(`[\w.+-]+@[\w-]+(\.[\w-]+)+`)

// match evaluates the rules with e-mail addresses removed so that
// "orders@acme.com" does not route to the order specialist.
func (k *KeywordClassifier) match(text string) []Rule {
	text = addressRe.ReplaceAllString(text, " ")
	var out []Rule
	for _, r := range k.rules {
		if r.matches(text) {
			out = append(out, r)
		}
	}
	return out
}

func (k *KeywordClassifier) hasData(rules []Rule) bool {
	for _, r := range rules {
		if _, ok := k.actions[r.Agent]; !ok {
			return true
		}
	}
	return false
}

func contains(rules []Rule, name string) bool {
	for _, r := range rules {
		if r.Agent == name {
			return true
		}
	}
	return false
}

func lastUserLine(contextWindow string) string {
	lines := strings.Split(contextWindow, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "User:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
