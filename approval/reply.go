package approval

import "strings"

// Reply is the classification of a user message while an approval is pending.
type Reply int

const (
	// ReplyOther is neither affirmative nor negative.
	ReplyOther Reply = iota
	// ReplyAffirmative approves the pending action.
	ReplyAffirmative
	// ReplyNegative rejects the pending action.
	ReplyNegative
)

// ReplyClassifier decides whether a message answers a pending approval.
type ReplyClassifier interface {
	ClassifyReply(text string) Reply
}

// Default reply vocabularies.
var (
	DefaultAffirmativeReplies = []string{"yes", "approve", "send", "confirm"}
	DefaultNegativeReplies    = []string{"no", "reject", "cancel", "deny"}
)

// PhraseReplyClassifier matches the whole message (case-insensitive,
// surrounding whitespace and trailing punctuation ignored) against fixed sets.
type PhraseReplyClassifier struct {
	affirmative map[string]struct{}
	negative    map[string]struct{}
}

// NewPhraseReplyClassifier creates a classifier; nil slices select the defaults.
func NewPhraseReplyClassifier(affirmative, negative []string) *PhraseReplyClassifier {
	if affirmative == nil {
		affirmative = DefaultAffirmativeReplies
	}
	if negative == nil {
		negative = DefaultNegativeReplies
	}
	return &PhraseReplyClassifier{affirmative: toSet(affirmative), negative: toSet(negative)}
}

// ClassifyReply implements ReplyClassifier.
func (c *PhraseReplyClassifier) ClassifyReply(text string) Reply {
	n := normalizeReply(text)
	if _, ok := c.affirmative[n]; ok {
		return ReplyAffirmative
	}
	if _, ok := c.negative[n]; ok {
		return ReplyNegative
	}
	return ReplyOther
}

func normalizeReply(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimRight(s, ".!?,;"))
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		if n := normalizeReply(s); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}
