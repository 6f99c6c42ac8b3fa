package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/opsmesh/core"
)

// classification is the JSON shape the model is asked to produce.
type classification struct {
	AgentsNeeded         []core.AgentIntent `json:"agents_needed"`
	RequiresCoordination bool               `json:"requires_coordination"`
	UserIntentSummary    string             `json:"user_intent_summary"`
}

// ParseClassification decodes a model response into a plan. It strips
// markdown code fences, skips any prose before the first JSON object, drops
// trailing text after the object and closes strings, arrays and objects left
// open by a truncated response. Rows without an agent name are dropped.
func ParseClassification(text string) (core.CoordinationPlan, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return core.CoordinationPlan{}, err
	}

	var c classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return core.CoordinationPlan{}, fmt.Errorf("%w: %v", ErrClassificationParse, err)
	}

	plan := core.CoordinationPlan{
		Mode:    core.ModeParallel,
		Summary: strings.TrimSpace(c.UserIntentSummary),
	}
	if c.RequiresCoordination {
		plan.Mode = core.ModeSequential
	}
	for _, in := range c.AgentsNeeded {
		in.AgentName = strings.TrimSpace(in.AgentName)
		if in.AgentName == "" {
			continue
		}
		in.TargetedPrompt = strings.TrimSpace(in.TargetedPrompt)
		in.Reason = strings.TrimSpace(in.Reason)
		plan.Intents = append(plan.Intents, in)
	}
	return plan, nil
}

func extractJSONObject(text string) (string, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object in response", ErrClassificationParse)
	}
	s = s[start:]

	end, open, inString := scanJSON(s)
	if end >= 0 {
		return s[:end+1], nil
	}

	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	// The fence trim may have removed part of the scanned tail, so rescan.
	_, open, inString = scanJSON(s)

	var b strings.Builder
	b.WriteString(strings.TrimRight(s, ", \t\r\n"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), nil
}

// scanJSON walks s and returns the index of the brace closing the first
// object, or -1 when the object is unterminated together with the stack of
// still-open delimiters and whether the scan ended inside a string.
func scanJSON(s string) (end int, open []byte, inString bool) {
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			open = append(open, c)
		case '}', ']':
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
			if len(open) == 0 {
				return i, nil, false
			}
		}
	}
	return -1, open, inString
}
