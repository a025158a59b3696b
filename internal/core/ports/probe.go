package ports

import "context"

// ProbeService checks whether a deployment's listener accepts TCP
// connections. The protocol spoken on the port is opaque: a successful
// probe means a connection was accepted, nothing more.
type ProbeService interface {
	// WaitReady blocks until addr accepts a TCP connection or the bounded
	// startup window closes. Cancelled contexts abort the wait.
	WaitReady(ctx context.Context, addr string) error
	// Check performs a single connect attempt.
	Check(ctx context.Context, addr string) error
}
