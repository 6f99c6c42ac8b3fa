package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	instr := NewInstructionFromText("You work for {{.company_name}}.")
	assert.True(t, instr.IsStatic())

	out, err := instr.Resolve(context.Background(), map[string]any{"company_name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "You work for Acme.", out)
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "night shift")
	instr := NewInstructionFromFunc(func(ctx context.Context) (string, error) {
		return "Shift: " + ctx.Value(key{}).(string), nil
	})
	assert.False(t, instr.IsStatic())

	out, err := instr.Resolve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "Shift: night shift", out)
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	instr := NewInstructionFromProvider(mockProvider{text: "{{.agent_name | upper}}"})
	out, err := instr.Resolve(context.Background(), map[string]any{"agent_name": "policy_expert"})
	require.NoError(t, err)
	assert.Equal(t, "POLICY_EXPERT", out)
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	sentinel := errors.New("provider failed")
	_, err := NewInstructionFromProvider(mockProvider{err: sentinel}).Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, sentinel)

	_, err = NewInstructionFromText("{{.broken").Resolve(context.Background(), nil)
	assert.Error(t, err)
}
