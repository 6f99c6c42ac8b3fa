package a2a

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/logging"
)

// maxRequestBytes caps the request body accepted by Handler.
const maxRequestBytes = 1 << 20

// HandlerOptions configures Handler.
type HandlerOptions struct {
	Logger logging.Logger
}

// Handler serves message/send for a single core.Agent.
type Handler struct {
	agent  core.Agent
	logger logging.Logger
}

// NewHandler creates a Handler for agent.
func NewHandler(agent core.Agent, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Handler{agent: agent, logger: opts.Logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.logger.Warn("a2a request rejected", "agent", h.agent.Name(), "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, Response{
			JSONRPC: JSONRPCVersion,
			Error:   &RPCError{Code: CodeParseError, Message: fmt.Sprintf("Parse error: %v", err)},
		})
		return
	}

	resp := Response{ID: req.ID, JSONRPC: JSONRPCVersion}
	switch {
	case req.JSONRPC != JSONRPCVersion:
		resp.Error = &RPCError{Code: CodeInvalidRequest, Message: "Invalid request: jsonrpc must be \"2.0\""}
	case req.Method != MethodMessageSend:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("Method not found: %s", req.Method)}
	default:
		text := strings.TrimSpace(req.Params.Message.Text())
		if text == "" {
			resp.Error = &RPCError{Code: CodeInvalidRequest, Message: "Invalid request: message has no text parts"}
			break
		}
		out, err := h.agent.Invoke(r.Context(), text)
		if err != nil {
			h.logger.Error("a2a agent invocation failed", "agent", h.agent.Name(), "request_id", req.ID, "error", err)
			resp.Error = &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("Internal error: %v", err)}
			break
		}
		msg := NewTextMessage(RoleAgent, out)
		msg.ContextID = req.Params.Message.ContextID
		msg.TaskID = req.Params.Message.TaskID
		resp.Result = &msg
	}

	writeJSON(w, http.StatusOK, resp)
}

// CardHandler serves a static agent card.
func CardHandler(card AgentCard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, card)
	})
}

// NewAgentCard describes agent as reachable at url.
func NewAgentCard(agent core.Agent, url, version string) AgentCard {
	return AgentCard{
		Name:               agent.Name(),
		Description:        agent.Description(),
		URL:                url,
		Version:            version,
		ProtocolVersion:    "0.3.0",
		Capabilities:       Capabilities{Streaming: false},
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []Skill{{
			ID:          agent.Name(),
			Name:        core.AgentTitle(agent.Name()),
			Description: agent.Description(),
		}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
