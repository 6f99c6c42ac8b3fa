// Package memory contains concrete core.MemoryStore implementations.
//
// The orchestrator saves a short summary of every completed turn through a
// MemoryStore so later turns (or operators) can recall what was asked and
// which agents answered. InMemoryStore scores snippets by the share of query
// terms they contain; swap in an embedding-backed store for semantic recall.
package memory
