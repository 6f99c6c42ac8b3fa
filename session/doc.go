// Package session houses concrete implementations of core.SessionStore.
//
// InMemoryStore keeps sessions in a process local map and suits tests and
// single-process demos. SQLiteStore persists sessions and their events in a
// SQLite database so conversations survive restarts. CachedStore decorates
// any durable store with an LRU read cache.
//
// Every store creates sessions lazily on Get and appends events in arrival
// order. Returned sessions are copies; mutating them never changes stored
// state.
package session
