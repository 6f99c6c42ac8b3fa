package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedAndEcho(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("ping", "pong")

	resp, err := m.Generate(context.Background(), UserRequest("be brief", "ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = m.Generate(context.Background(), UserRequest("", "other"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Text)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "be brief", reqs[0].Instructions)
	assert.Equal(t, Info{Name: "mock", Provider: "test"}, m.Info())
}

func TestMockModel_Fallback(t *testing.T) {
	m := NewMockModel("mock", "test")
	boom := errors.New("boom")
	m.SetFallback(func(req Request) (string, error) {
		if req.LastUserText() == "fail" {
			return "", boom
		}
		return "handled " + req.LastUserText(), nil
	})

	resp, err := m.Generate(context.Background(), UserRequest("", "x"))
	require.NoError(t, err)
	assert.Equal(t, "handled x", resp.Text)

	_, err = m.Generate(context.Background(), UserRequest("", "fail"))
	assert.ErrorIs(t, err, boom)
}

func TestMockModel_Errors(t *testing.T) {
	m := NewMockModel("mock", "test")
	_, err := m.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoMessages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, UserRequest("", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_LastUserText(t *testing.T) {
	req := Request{Messages: []Message{
		{Role: RoleUser, Text: "first"},
		{Role: RoleAssistant, Text: "reply"},
		{Role: RoleUser, Text: "second"},
		{Role: RoleAssistant, Text: "trailing"},
	}}
	assert.Equal(t, "second", req.LastUserText())
	assert.Equal(t, "", Request{}.LastUserText())
}
