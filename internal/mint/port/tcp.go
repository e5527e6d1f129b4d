package port

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mintfs/mint/internal/mint/wire"

	"github.com/hashicorp/go-multierror"
)

// Messages are self-framing on a stream: the envelope's Size field covers
// the whole message, so a reader pulls one envelope and then Size-24 more
// bytes. No extra length prefix is needed.

// readMessage reads exactly one message from r.
func readMessage(r io.Reader) (*wire.Message, error) {
	var env [wire.EnvelopeLen]byte
	if _, err := io.ReadFull(r, env[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(env[4:8])
	if size < wire.EnvelopeLen || size > wire.MaxMessageLen {
		return nil, fmt.Errorf("port: frame size %d out of range", size)
	}
	buf := make([]byte, size)
	copy(buf, env[:])
	if _, err := io.ReadFull(r, buf[wire.EnvelopeLen:]); err != nil {
		return nil, err
	}
	return wire.Unmarshal(buf)
}

// Dial connects a client transport to a mint server at addr.
func Dial(addr string) (wire.Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: c}, nil
}

// tcpConn is the client side of a TCP connection. A stream carries one
// transaction at a time, so reply ports degenerate to a constant.
type tcpConn struct {
	conn net.Conn
	mut  sync.Mutex
}

var _ wire.Conn = (*tcpConn)(nil)

// streamReplyPort names the only reply endpoint a stream can have: the
// stream itself.
const streamReplyPort = 1

func (c *tcpConn) RoundTrip(ctx context.Context, req *wire.Message) (*wire.Message, error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	req.LocalPort = streamReplyPort
	if _, err := c.conn.Write(req.Marshal()); err != nil {
		return nil, err
	}
	return readMessage(c.conn)
}

func (c *tcpConn) Post(ctx context.Context, req *wire.Message) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return err
	}
	req.LocalPort = 0
	_, err := c.conn.Write(req.Marshal())
	return err
}

// applyDeadline maps a context deadline onto the connection. Timeouts are
// transport-level configuration supplied by the caller; the protocol
// defines none of its own.
func (c *tcpConn) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(deadline)
	}
	return c.conn.SetDeadline(time.Time{})
}

func (c *tcpConn) Close() error { return c.conn.Close() }

// Listen starts a TCP listener for mint traffic on addr. Each accepted
// connection is an independent server transport.
func Listen(addr string) (*TCPListener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{lis: lis}, nil
}

// TCPListener accepts connections and exposes each as a wire.Transport.
type TCPListener struct {
	lis net.Listener

	mut   sync.Mutex
	conns []net.Conn
}

// Addr returns the listener's address.
func (l *TCPListener) Addr() net.Addr { return l.lis.Addr() }

// Accept blocks for the next connection.
func (l *TCPListener) Accept() (wire.Transport, error) {
	c, err := l.lis.Accept()
	if err != nil {
		return nil, err
	}
	l.mut.Lock()
	l.conns = append(l.conns, c)
	l.mut.Unlock()
	return &tcpTransport{conn: c}, nil
}

// Close shuts the listener and every connection it accepted.
func (l *TCPListener) Close() error {
	var errs *multierror.Error
	errs = multierror.Append(errs, l.lis.Close())

	l.mut.Lock()
	defer l.mut.Unlock()
	for _, c := range l.conns {
		if err := c.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	l.conns = nil
	return errs.ErrorOrNil()
}

// tcpTransport is the server side of one accepted connection.
type tcpTransport struct {
	conn       net.Conn
	rmut, wmut sync.Mutex
}

var _ wire.Transport = (*tcpTransport)(nil)

func (t *tcpTransport) Recv() (*wire.Message, error) {
	t.rmut.Lock()
	defer t.rmut.Unlock()
	m, err := readMessage(t.conn)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return nil, io.EOF
	}
	return m, err
}

func (t *tcpTransport) Send(reply *wire.Message) error {
	t.wmut.Lock()
	defer t.wmut.Unlock()
	_, err := t.conn.Write(reply.Marshal())
	return err
}

func (t *tcpTransport) Close() error { return t.conn.Close() }
