// Package port provides mint transports. The in-memory pair models the
// kernel message-passing primitive the protocol was designed for: a
// request queue plus per-transaction reply ports. The TCP transport
// carries the same messages over a network connection.
package port

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mintfs/mint/internal/mint"
	"github.com/mintfs/mint/internal/mint/wire"

	"go.uber.org/atomic"
)

// ServicePort is the well-known destination port of the file service.
// Requests are addressed to it regardless of the transport underneath.
const ServicePort mint.Port = 1

// queueDepth is the request backlog of an in-memory pair. The client side
// is synchronous, so depth only matters when several clients share a pair.
const queueDepth = 16

// Pair returns a connected in-memory client/server transport pair. The
// client blocks on send-then-receive as a single transaction; the server
// end is a plain request source compatible with the dispatcher.
func Pair() (wire.Conn, wire.Transport) {
	p := &pairState{
		requests: make(chan *wire.Message, queueDepth),
		waiters:  make(map[mint.Port]chan *wire.Message),
		closed:   make(chan struct{}),
	}
	return &pairConn{p: p}, &pairTransport{p: p}
}

// pairState is the shared channel machinery behind both ends of a Pair.
type pairState struct {
	requests chan *wire.Message

	mut      sync.Mutex
	waiters  map[mint.Port]chan *wire.Message
	nextPort atomic.Uint32

	closeOnce sync.Once
	closed    chan struct{}
}

func (p *pairState) close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

// addWaiter allocates a fresh reply port and registers its channel.
func (p *pairState) addWaiter() (mint.Port, chan *wire.Message) {
	ch := make(chan *wire.Message, 1)
	port := mint.Port(p.nextPort.Inc())

	p.mut.Lock()
	p.waiters[port] = ch
	p.mut.Unlock()
	return port, ch
}

func (p *pairState) removeWaiter(port mint.Port) {
	p.mut.Lock()
	delete(p.waiters, port)
	p.mut.Unlock()
}

// deliver routes a reply to the waiter registered for its port. Each port
// receives at most one reply; the waiter is removed on delivery.
func (p *pairState) deliver(reply *wire.Message) error {
	p.mut.Lock()
	ch, ok := p.waiters[reply.RemotePort]
	if ok {
		delete(p.waiters, reply.RemotePort)
	}
	p.mut.Unlock()

	if !ok {
		return fmt.Errorf("port: no receiver for port %d", reply.RemotePort)
	}
	ch <- reply
	return nil
}

type pairConn struct {
	p *pairState

	// One transaction in flight per logical connection.
	mut sync.Mutex
}

var _ wire.Conn = (*pairConn)(nil)

func (c *pairConn) RoundTrip(ctx context.Context, req *wire.Message) (*wire.Message, error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	port, ch := c.p.addWaiter()
	req.LocalPort = port

	select {
	case c.p.requests <- req:
	case <-c.p.closed:
		c.p.removeWaiter(port)
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		c.p.removeWaiter(port)
		return nil, ctx.Err()
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-c.p.closed:
		c.p.removeWaiter(port)
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		c.p.removeWaiter(port)
		return nil, ctx.Err()
	}
}

func (c *pairConn) Post(ctx context.Context, req *wire.Message) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	req.LocalPort = 0
	select {
	case c.p.requests <- req:
		return nil
	case <-c.p.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pairConn) Close() error {
	c.p.close()
	return nil
}

type pairTransport struct {
	p *pairState
}

var _ wire.Transport = (*pairTransport)(nil)

func (t *pairTransport) Recv() (*wire.Message, error) {
	select {
	case req := <-t.p.requests:
		return req, nil
	case <-t.p.closed:
		// Drain anything queued before the close.
		select {
		case req := <-t.p.requests:
			return req, nil
		default:
			return nil, io.EOF
		}
	}
}

func (t *pairTransport) Send(reply *wire.Message) error {
	select {
	case <-t.p.closed:
		return io.ErrClosedPipe
	default:
	}
	return t.p.deliver(reply)
}

func (t *pairTransport) Close() error {
	t.p.close()
	return nil
}
