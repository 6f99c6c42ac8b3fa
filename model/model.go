package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoMessages is returned when a request carries no messages.
var ErrNoMessages = errors.New("no messages provided")

// Conversation roles accepted in Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation sent to the model.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized model input.
type Request struct {
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
	// Temperature overrides the adapter default when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens overrides the adapter default when positive.
	MaxTokens int64 `json:"max_tokens,omitempty"`
}

// UserRequest builds a single-message request.
func UserRequest(instructions, prompt string) Request {
	return Request{Instructions: instructions, Messages: []Message{{Role: RoleUser, Text: prompt}}}
}

// LastUserText returns the text of the newest user message.
func (r Request) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Text
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final completion returned by a model.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required by agents and the classifier.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are looked up by the newest user message; unknown prompts are
// answered by the fallback function or echoed.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	fallback  func(req Request) (string, error)
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetFallback installs a function answering prompts without a canned reply.
func (m *MockModel) SetFallback(fn func(req Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// Requests returns a copy of all requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if len(req.Messages) == 0 {
		return Response{}, ErrNoMessages
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	input := req.LastUserText()
	full, ok := m.responses[input]
	fallback := m.fallback
	m.mu.Unlock()

	if !ok {
		if fallback != nil {
			text, err := fallback(req)
			if err != nil {
				return Response{}, err
			}
			full = text
		} else {
			full = fmt.Sprintf("Mock response to: %s", input)
		}
	}
	return Response{Text: full, FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
