package wire

import "context"

// Conn is the client side of a transport. A round trip is one blocking
// send-then-receive transaction; the transport guarantees at most one reply
// per request and never overlaps transactions on one logical connection.
//
// Transport failures surface as the returned error and are distinct from
// both protocol status and application error codes.
type Conn interface {
	// RoundTrip sends req and blocks until its reply arrives, ctx is done,
	// or the connection fails. The transport stamps the reply endpoint on
	// req before sending.
	RoundTrip(ctx context.Context, req *Message) (*Message, error)

	// Post sends req without expecting a reply. Used for fire-and-forget
	// routines; the reply endpoint is left null.
	Post(ctx context.Context, req *Message) error

	// Close the connection.
	Close() error
}

// Transport is the server side: a source of inbound requests and a sink
// for replies. See the port package for implementations.
type Transport interface {
	// Recv blocks for the next request. Returns io.EOF once the transport
	// is closed and drained.
	Recv() (*Message, error)

	// Send delivers a reply to the endpoint named by its envelope.
	Send(*Message) error

	// Close the transport, unblocking Recv.
	Close() error
}
