package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseDraft(t *testing.T) {
	msg := Message{
		To:      "ops@example.com",
		Subject: "Inventory Update - 62 Units",
		Body:    "Dear Team,\n\n• Relief Valve (SKU RV-1) - 50 units.\n\nBest regards\nCompany",
	}
	draft := FormatDraft(msg, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(draft, "[DRAFT EMAIL]\nGenerated: 2025-03-01 12:00:00Z\n"))
	assert.True(t, strings.HasSuffix(draft, "Reply 'yes' to approve sending or 'no' to cancel."))

	parsed, err := ParseDraft(draft)
	require.NoError(t, err)
	assert.Equal(t, msg, parsed)
}

func TestParseDraft_MarkdownHeaders(t *testing.T) {
	text := "Here is the draft:\n\n**To:** <sales@example.com>\n**Subject:** Q3 numbers\n\nRevenue is up.\n"

	msg, err := ParseDraft(text)

	require.NoError(t, err)
	assert.Equal(t, "sales@example.com", msg.To)
	assert.Equal(t, "Q3 numbers", msg.Subject)
	assert.Equal(t, "Revenue is up.", msg.Body)
}

func TestParseDraft_Invalid(t *testing.T) {
	_, err := ParseDraft("Subject: hello\n\nbody")
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = ParseDraft("To: not-an-address\nSubject: x\n\nbody")
	assert.ErrorIs(t, err, ErrInvalidDraft)

	_, err = ParseDraft("To: a@b.c\n\nno subject")
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	err := s.Send(context.Background(), Message{To: "a@b.c", Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSMTPSender_Defaults(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Username: "bot@example.com", Password: `"secret"`})
	assert.Equal(t, 587, s.cfg.Port)
	assert.Equal(t, "bot@example.com", s.cfg.From)
	assert.Equal(t, "secret", s.cfg.Password)
	assert.True(t, s.cfg.Configured())
}

func TestSenderFunc(t *testing.T) {
	var got Message
	var s Sender = SenderFunc(func(_ context.Context, m Message) error { got = m; return nil })
	require.NoError(t, s.Send(context.Background(), Message{To: "x@y.z"}))
	assert.Equal(t, "x@y.z", got.To)
}
