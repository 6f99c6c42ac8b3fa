package a2a

import (
	"fmt"
	"strings"

	"github.com/hupe1980/opsmesh/core"
)

// JSONRPCVersion is the only protocol version spoken.
const JSONRPCVersion = "2.0"

// MethodMessageSend is the single supported method.
const MethodMessageSend = "message/send"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Part is a message fragment. Only text parts are produced.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// Message is an A2A message.
type Message struct {
	Kind      string `json:"kind"`
	MessageID string `json:"messageId"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role, text string) Message {
	return Message{
		Kind:      "message",
		MessageID: core.NewID(),
		Role:      role,
		Parts:     []Part{{Kind: "text", Text: text}},
	}
}

// Configuration controls delivery of the reply.
type Configuration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes"`
	Blocking            bool     `json:"blocking"`
}

// Params holds the message/send parameters.
type Params struct {
	Configuration Configuration `json:"configuration"`
	Message       Message       `json:"message"`
}

// Request is a JSON-RPC request envelope.
type Request struct {
	ID      string `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
}

// NewSendRequest wraps text into a blocking message/send request.
func NewSendRequest(text string) Request {
	return Request{
		ID:      core.NewID(),
		JSONRPC: JSONRPCVersion,
		Method:  MethodMessageSend,
		Params: Params{
			Configuration: Configuration{AcceptedOutputModes: []string{}, Blocking: true},
			Message:       NewTextMessage(RoleUser, text),
		},
	}
}

// RPCError is the JSON-RPC error object. It doubles as a Go error returned
// by Client.Send.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("a2a rpc error %d: %s", e.Code, e.Message)
}

// Response is a JSON-RPC response envelope. Exactly one of Result and Error
// is set.
type Response struct {
	ID      string    `json:"id"`
	JSONRPC string    `json:"jsonrpc"`
	Result  *Message  `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// Skill advertises one capability on the agent card.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// Capabilities lists optional protocol features.
type Capabilities struct {
	Streaming bool `json:"streaming"`
}

// AgentCard describes an agent for discovery.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	URL                string       `json:"url"`
	Version            string       `json:"version"`
	ProtocolVersion    string       `json:"protocolVersion,omitempty"`
	Capabilities       Capabilities `json:"capabilities"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Skills             []Skill      `json:"skills"`
}
