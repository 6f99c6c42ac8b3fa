// Package history builds the bounded conversation context block that is
// prepended to prompts sent to downstream agents.
package history

import (
	"strings"

	"github.com/hupe1980/opsmesh/core"
)

const (
	// DefaultMaxEvents is the number of most recent events kept (two turns).
	DefaultMaxEvents = 4
	// DefaultMaxChars is the per-event character budget.
	DefaultMaxChars = 2000
	// DefaultTruncationMarker is appended to event text that was cut.
	DefaultTruncationMarker = "..."
)

const (
	headerLine = "[Previous conversation context:]"
	footerLine = "[End of context]"
)

// Options configures a Builder.
type Options struct {
	MaxEvents        int
	MaxChars         int
	TruncationMarker string
	UserLabel        string
	AssistantLabel   string
}

// Builder renders the last events of a session as a labeled block.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder with the default window (4 events, 2000
// characters each).
func NewBuilder(optFns ...func(o *Options)) *Builder {
	opts := Options{
		MaxEvents:        DefaultMaxEvents,
		MaxChars:         DefaultMaxChars,
		TruncationMarker: DefaultTruncationMarker,
		UserLabel:        "User:",
		AssistantLabel:   "Assistant:",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder{opts: opts}
}

// BuildSession renders the context window for a session. A nil session
// yields an empty string.
func (b *Builder) BuildSession(s *core.Session) string {
	if s == nil {
		return ""
	}
	return b.Build(s.LastEvents(b.opts.MaxEvents))
}

// Build renders the newest MaxEvents of events, oldest first. It returns an
// empty string when events is empty.
func (b *Builder) Build(events []core.Event) string {
	if len(events) == 0 {
		return ""
	}
	if b.opts.MaxEvents > 0 && len(events) > b.opts.MaxEvents {
		events = events[len(events)-b.opts.MaxEvents:]
	}

	var sb strings.Builder
	sb.WriteString(headerLine)
	sb.WriteByte('\n')
	for _, ev := range events {
		label := b.opts.AssistantLabel
		if ev.IsUser() {
			label = b.opts.UserLabel
		}
		sb.WriteString(label)
		sb.WriteByte(' ')
		sb.WriteString(b.truncate(ev.Text))
		sb.WriteByte('\n')
	}
	sb.WriteString(footerLine)
	return sb.String()
}

// truncate cuts text to MaxChars runes, appending the marker when cut.
func (b *Builder) truncate(text string) string {
	if b.opts.MaxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= b.opts.MaxChars {
		return text
	}
	return string(runes[:b.opts.MaxChars]) + b.opts.TruncationMarker
}

// Prepend places the context block before prompt separated by a blank line.
// An empty context returns prompt unchanged.
func Prepend(contextBlock, prompt string) string {
	if contextBlock == "" {
		return prompt
	}
	return contextBlock + "\n\n" + prompt
}
