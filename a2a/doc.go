// Package a2a implements the agent-to-agent JSON-RPC 2.0 envelope used
// between the orchestrator and specialist agents.
//
// A request carries one user message made of text parts under the
// "message/send" method; the reply carries the agent message in result or a
// JSON-RPC error object. Client sends requests, Handler serves any
// core.Agent and CardHandler publishes the agent card discovered at
// /.well-known/agent-card.json.
package a2a
