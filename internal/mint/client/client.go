// Package client provides typed stubs for calling a mint server over a
// wire.Conn. Each call is one blocking request/reply transaction; the
// fire-and-forget close call sends without waiting.
package client

import (
	"context"
	"fmt"

	"github.com/mintfs/mint/internal/mint"
	"github.com/mintfs/mint/internal/mint/wire"
)

// Client invokes remote file routines over a Conn. Calls are safe for
// concurrent use when the underlying Conn is.
type Client struct {
	conn   wire.Conn
	remote mint.Port
}

// New creates a Client sending requests to the service port remote over
// conn. The caller keeps ownership of conn.
func New(conn wire.Conn, remote mint.Port) *Client {
	return &Client{conn: conn, remote: remote}
}

// Open opens the file at path, creating or truncating it per flags, and
// returns a handle for subsequent calls.
func (c *Client) Open(ctx context.Context, path string, flags mint.FileFlags) (mint.Handle, error) {
	resp, err := c.call(ctx, &mint.OpenRequest{Path: []byte(path), Flags: flags})
	if err != nil {
		return 0, err
	}
	return resp.(*mint.OpenResponse).Handle, nil
}

// Read reads up to maxBytes from the file at offset. A short result means
// the read reached the end of the file.
func (c *Client) Read(ctx context.Context, handle mint.Handle, offset uint64, maxBytes uint32) ([]byte, error) {
	resp, err := c.call(ctx, &mint.ReadRequest{Handle: handle, Offset: offset, MaxBytes: maxBytes})
	if err != nil {
		return nil, err
	}
	rr := resp.(*mint.ReadResponse)
	return clampCount(rr.Data, rr.Count), nil
}

// Write writes data to the file at offset, extending it as needed, and
// returns the number of bytes written.
func (c *Client) Write(ctx context.Context, handle mint.Handle, offset uint64, data []byte) (uint32, error) {
	resp, err := c.call(ctx, &mint.WriteRequest{Handle: handle, Offset: offset, Data: data})
	if err != nil {
		return 0, err
	}
	return resp.(*mint.WriteResponse).Count, nil
}

// Size returns the current size of the file in bytes.
func (c *Client) Size(ctx context.Context, handle mint.Handle) (uint64, error) {
	resp, err := c.call(ctx, &mint.SizeRequest{Handle: handle})
	if err != nil {
		return 0, err
	}
	return resp.(*mint.SizeResponse).Size, nil
}

// Close releases a handle. The call is fire-and-forget: it returns once
// the message is handed to the transport and reports no remote outcome.
func (c *Client) Close(ctx context.Context, handle mint.Handle) error {
	msg, err := wire.EncodeRequest(c.remote, &mint.CloseRequest{Handle: handle})
	if err != nil {
		return err
	}
	return c.conn.Post(ctx, msg)
}

// ReadAsync starts an asynchronous read and returns its operation id.
// The result is retrieved with PollAsync.
func (c *Client) ReadAsync(ctx context.Context, handle mint.Handle, offset uint64, maxBytes uint32) (mint.OpID, error) {
	resp, err := c.call(ctx, &mint.ReadAsyncRequest{Handle: handle, Offset: offset, MaxBytes: maxBytes})
	if err != nil {
		return 0, err
	}
	return resp.(*mint.ReadAsyncResponse).Op, nil
}

// PollAsync checks an asynchronous read. It returns done=false while the
// operation is pending; once done, data holds the result and stays
// available to repeated polls until the owning handle closes.
func (c *Client) PollAsync(ctx context.Context, op mint.OpID) (data []byte, done bool, err error) {
	resp, err := c.call(ctx, &mint.PollAsyncRequest{Op: op})
	if err != nil {
		return nil, false, err
	}
	pr := resp.(*mint.PollAsyncResponse)
	if !pr.Complete {
		return nil, false, nil
	}
	return clampCount(pr.Data, pr.Count), true, nil
}

// clampCount trims data to the reply's count field. The two agree on any
// well-behaved server; the count never extends past the data actually
// received.
func clampCount(data []byte, count uint32) []byte {
	if int(count) < len(data) {
		return data[:count]
	}
	return data
}

// call runs one request/reply transaction, separating the three failure
// axes: transport errors come back unwrapped, protocol rejections as a
// mint.Status, and handler failures as a mint.Error.
func (c *Client) call(ctx context.Context, req mint.Request) (mint.Response, error) {
	msg, err := wire.EncodeRequest(c.remote, req)
	if err != nil {
		return nil, err
	}

	reply, err := c.conn.RoundTrip(ctx, msg)
	if err != nil {
		return nil, err
	}

	routine, err := wire.RoutineOf(req)
	if err != nil {
		return nil, err
	}
	if reply.ID != routine.ReplyID() {
		return nil, fmt.Errorf("unexpected reply id %d for %s", reply.ID, routine)
	}

	hdr, resp, err := wire.DecodeReply(reply)
	if err != nil {
		return nil, err
	}
	if hdr.Status != mint.StatusOK {
		return nil, hdr.Status
	}
	if hdr.Err != 0 {
		return nil, hdr.Err
	}
	return resp, nil
}
