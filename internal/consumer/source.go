package consumer

import "context"

// Conn is one established stream connection.
type Conn interface {
	// Recv blocks until the next message payload arrives or the connection
	// faults.
	Recv() ([]byte, error)

	// Close tears the connection down and unblocks any pending Recv.
	Close() error
}

// Source dials stream connections on behalf of a Consumer.
type Source interface {
	Dial(ctx context.Context) (Conn, error)
}
