// Package core provides the foundational domain types and interfaces used by
// opsmesh. It defines the abstractions shared across the coordination engine:
//
//   - Agents (capabilities that turn a prompt into text)
//   - Sessions (append-only conversational event logs)
//   - Events (immutable user / assistant messages)
//   - Coordination plans, agent intents and data blocks
//   - Pluggable stores for session history and memory recall
//
// The package keeps implementation concerns (persistence, transport, concrete
// agents) out of scope, exposing small interfaces so backends can be swapped
// without touching the engine.
package core
