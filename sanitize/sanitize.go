// Package sanitize strips refusal boilerplate and quoting artefacts from agent
// output before it is shown to users or reused as input for another agent.
package sanitize

import "strings"

// DefaultRefusalPatterns are phrases that mark a line as model boilerplate
// rather than data.
var DefaultRefusalPatterns = []string{
	"i cannot provide information",
	"i do not have access",
	"outside of my",
	"outside my",
	"i cannot check",
	"i cannot draft",
	"i cannot send",
	"limited to my",
	"please contact",
	"please check",
	"would you like me to proceed",
	"nor can i",
}

// DefaultFollowUpKeywords mark trailing follow-up questions ("Would you like
// me to ...?") that make no sense once the text is forwarded to another agent.
var DefaultFollowUpKeywords = []string{"would you", "should i", "proceed"}

// Options configures a Sanitizer.
type Options struct {
	// RefusalPatterns removes any line containing one of the patterns
	// (case-insensitive substring match).
	RefusalPatterns []string
	// FollowUpKeywords removes lines ending in "?" that contain one of the
	// keywords (case-insensitive).
	FollowUpKeywords []string
}

// Sanitizer cleans agent responses. The zero value removes nothing but blank
// lines and wrapping quotes. Safe for concurrent use.
type Sanitizer struct {
	refusals  []string
	followUps []string
}

// New creates a Sanitizer with the default pattern sets unless overridden.
func New(optFns ...func(o *Options)) *Sanitizer {
	opts := Options{
		RefusalPatterns:  DefaultRefusalPatterns,
		FollowUpKeywords: DefaultFollowUpKeywords,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Sanitizer{
		refusals:  lowerAll(opts.RefusalPatterns),
		followUps: lowerAll(opts.FollowUpKeywords),
	}
}

// Sanitize removes matching lines and blank lines, trims the result and
// unwraps quote-delimited text. It never adds content and applying it twice
// yields the same result as applying it once.
//
// A bare quote pair such as `""` is an empty JSON string and sanitizes to
// "", which the dispatcher reports as an empty response.
func (s *Sanitizer) Sanitize(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" || s.matches(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return unquote(strings.TrimSpace(strings.Join(kept, "\n")))
}

func (s *Sanitizer) matches(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range s.refusals {
		if strings.Contains(lower, p) {
			return true
		}
	}
	// Trailing quotes are ignored so a quoted question is caught before unquote.
	if strings.HasSuffix(strings.TrimRight(lower, "\"' \t\r"), "?") {
		for _, k := range s.followUps {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}

// unquote strips wrapping quote pairs left over from JSON string escaping.
// Nested wrappers ("'x'") are removed as well so the output is stable.
func unquote(text string) string {
	for len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first != last || (first != '"' && first != '\'') {
			break
		}
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
