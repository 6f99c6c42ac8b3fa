package approval

import (
	"regexp"
	"strings"

	"github.com/hupe1980/opsmesh/mail"
)

// Detector recognises approval requests in an action agent's output.
type Detector interface {
	Detect(agentName, text string) (Request, bool)
}

// DefaultTriggerPhrases mark text that asks the user for approval.
var DefaultTriggerPhrases = []string{
	"do you approve",
	"reply 'yes' to approve",
	"please reply 'yes' to approve",
	"approve sending",
	"approve or reject",
}

// DetectorOptions configures a PhraseDetector.
type DetectorOptions struct {
	TriggerPhrases []string
}

// PhraseDetector flags e-mail drafts that contain a trigger phrase, mention
// yes/no and carry e-mail structure ("to:" plus "subject:" or "body:").
type PhraseDetector struct {
	triggers []string
}

var yesNoRe = regexp.MustCompile(`\b(yes|no)\b`)

// NewPhraseDetector creates a PhraseDetector.
func NewPhraseDetector(optFns ...func(o *DetectorOptions)) *PhraseDetector {
	opts := DetectorOptions{TriggerPhrases: DefaultTriggerPhrases}
	for _, fn := range optFns {
		fn(&opts)
	}
	triggers := make([]string, 0, len(opts.TriggerPhrases))
	for _, p := range opts.TriggerPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			triggers = append(triggers, p)
		}
	}
	return &PhraseDetector{triggers: triggers}
}

// Detect implements Detector.
func (d *PhraseDetector) Detect(agentName, text string) (Request, bool) {
	lower := strings.ToLower(text)
	if !d.hasTrigger(lower) || !yesNoRe.MatchString(lower) {
		return Request{}, false
	}
	if !strings.Contains(lower, "to:") || !(strings.Contains(lower, "subject:") || strings.Contains(lower, "body:")) {
		return Request{}, false
	}
	msg, err := mail.ParseDraft(text)
	if err != nil {
		return Request{}, false
	}
	return Request{AgentName: agentName, ActionType: ActionEmailSend, Payload: msg, Draft: text}, true
}

func (d *PhraseDetector) hasTrigger(lower string) bool {
	for _, t := range d.triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
