package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/opsmesh/a2a"
)

// InteractPath is appended to an agent's route to form its A2A endpoint.
const InteractPath = "/a2a/interact"

// CardPath is the well-known agent card location below an agent's route.
const CardPath = "/.well-known/agent-card.json"

// Endpoint builds "{base}/{route}/a2a/interact".
func Endpoint(baseURL, route string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.Trim(route, "/") + InteractPath
}

// RemoteAgent forwards prompts to an agent served over A2A.
type RemoteAgent struct {
	BaseAgent
	client   *a2a.Client
	endpoint string
}

// NewRemoteAgent creates a RemoteAgent calling endpoint through client.
func NewRemoteAgent(name, description, endpoint string, client *a2a.Client) *RemoteAgent {
	if client == nil {
		client = a2a.NewClient()
	}
	return &RemoteAgent{
		BaseAgent: NewBaseAgent(name, description),
		client:    client,
		endpoint:  endpoint,
	}
}

// Endpoint returns the URL the agent posts to.
func (r *RemoteAgent) Endpoint() string { return r.endpoint }

// Invoke implements core.Agent.
func (r *RemoteAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := r.client.Send(ctx, r.endpoint, prompt)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", r.Name(), err)
	}
	return out, nil
}
