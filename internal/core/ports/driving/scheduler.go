package driving

import "context"

// Scheduler runs periodic housekeeping, such as expiring idle chat
// sessions, for long-running commands.
type Scheduler interface {
	// Start blocks until Stop is called or ctx ends. A second concurrent
	// Start fails.
	Start(ctx context.Context) error

	// Stop ends a running Start and waits for it. It is a no-op when idle.
	Stop() error
}
