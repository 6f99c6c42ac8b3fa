package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Stock: 50 units", "Stock: 50 units"},
		{"trims", "  \n hello \n\n", "hello"},
		{"refusal line removed", "Valve A: 12 units\nI do not have access to pricing data.\nValve B: 3 units", "Valve A: 12 units\nValve B: 3 units"},
		{"case insensitive", "PLEASE CONTACT support\nok", "ok"},
		{"follow-up question removed", "Here is the data.\nWould you like me to email this?", "Here is the data."},
		{"question kept without keyword", "Which one is cheaper?", "Which one is cheaper?"},
		{"double quotes", `"quoted reply"`, "quoted reply"},
		{"single quotes", `'quoted reply'`, "quoted reply"},
		{"mismatched quotes", `"half quoted'`, `"half quoted'`},
		{"lone quote", `"`, `"`},
		{"nested quotes", `"'inner'"`, "inner"},
		{"quoted question", `"Should I proceed with the draft?"`, ""},
		{"blank lines dropped", "a\n\n\nb", "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}

func TestSanitize_Properties(t *testing.T) {
	s := New()
	inputs := []string{
		"",
		" ",
		`""`,
		`"x"`,
		`""x""`,
		`" 'x' "`,
		"\"\n  foo  \n\"",
		"\"first line\nI cannot check that\nlast line\"",
		"'  \n  indented'",
		"Would you like more?\"",
		"line one\r\nline two\r\n",
		"Outside of my scope\n\"\nreal data\n\"",
		"\"a\" and \"b\"",
		"Proceed?\n'ok'",
	}

	for _, in := range inputs {
		once := s.Sanitize(in)
		assert.Equal(t, once, s.Sanitize(once), "not idempotent for %q", in)
		assert.LessOrEqual(t, len(once), len(in), "lengthened %q", in)
	}
}

func TestSanitize_OnlyMatchedLinesRemoved(t *testing.T) {
	s := New()
	in := "Relief Valve RV-100: 40 units\nGate Valve GV-2: 7 units"
	assert.Equal(t, in, s.Sanitize(in))
}

func TestSanitize_EmptyQuotePair(t *testing.T) {
	s := New()
	assert.Equal(t, "", s.Sanitize(`""`))
	assert.Equal(t, "", s.Sanitize(`" '' "`))
	assert.Equal(t, `"`, s.Sanitize(`"`))
}

func TestSanitize_CustomPatterns(t *testing.T) {
	s := New(func(o *Options) {
		o.RefusalPatterns = []string{"  AS AN AI  "}
		o.FollowUpKeywords = nil
	})

	assert.Equal(t, "data", s.Sanitize("As an AI model I think\ndata"))
	assert.Equal(t, "please contact us\nWould you like more?", s.Sanitize("please contact us\nWould you like more?"))
}
