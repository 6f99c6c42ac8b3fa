package session

import "context"

// Pinger is implemented by stores that can report backend health. The HTTP
// readiness probe uses it.
type Pinger interface {
	Ping(ctx context.Context) error
}
