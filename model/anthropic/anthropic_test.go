package anthropic

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/model"
)

var _ model.Model = (*Model)(nil)

func TestBuildMessages_MergesSameRole(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleUser, Text: "context"},
		{Role: model.RoleUser, Text: "question"},
		{Role: model.RoleAssistant, Text: "answer"},
		{Role: "other", Text: "follow-up"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Len(t, msgs[0].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}

func TestBuildParams(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test-key"; o.MaxTokens = 1000 })
	params := m.buildParams(model.UserRequest("You are concise.", "hi"))

	assert.Equal(t, int64(1000), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "You are concise.", params.System[0].Text)
	assert.Equal(t, "anthropic", m.Info().Provider)
}

func TestGenerate_NoMessages(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test-key" })
	_, err := m.Generate(context.Background(), model.Request{})
	assert.ErrorIs(t, err, model.ErrNoMessages)
}
