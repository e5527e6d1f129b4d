package client

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/mintfs/mint/internal/mint"
	"github.com/mintfs/mint/internal/mint/port"
	"github.com/mintfs/mint/internal/mint/server"
)

// newTestClient wires a Client to a dispatcher over an in-memory pair.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	conn, tr := port.Pair()
	srv, err := server.New(log.NewNopLogger(), server.Options{
		Transport: tr,
		Handler:   server.NewMemStore(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return New(conn, port.ServicePort)
}

func TestClient_FileLifecycle(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)

	handle, err := cli.Open(ctx, "/lifecycle", mint.OpenReadWrite|mint.OpenCreate)
	require.NoError(t, err)

	n, err := cli.Write(ctx, handle, 0, []byte("stored remotely"))
	require.NoError(t, err)
	require.Equal(t, uint32(15), n)

	size, err := cli.Size(ctx, handle)
	require.NoError(t, err)
	require.Equal(t, uint64(15), size)

	data, err := cli.Read(ctx, handle, 7, 64)
	require.NoError(t, err)
	require.Equal(t, []byte("remotely"), data)

	require.NoError(t, cli.Close(ctx, handle))

	// The fire-and-forget close still lands: the handle is dead by the time
	// the next transaction completes.
	require.Eventually(t, func() bool {
		_, err := cli.Size(ctx, handle)
		return err == mint.ErrBadHandle
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ApplicationErrors(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)

	_, err := cli.Open(ctx, "/missing", mint.OpenReadOnly)
	require.ErrorIs(t, err, mint.ErrNotExist)

	_, err = cli.Read(ctx, 0xbad, 0, 8)
	require.ErrorIs(t, err, mint.ErrBadHandle)
}

func TestClient_EncodeBounds(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)

	// Oversized arguments never leave the client.
	longPath := make([]byte, mint.MaxPathLen+1)
	for i := range longPath {
		longPath[i] = 'p'
	}
	_, err := cli.Open(ctx, string(longPath), mint.OpenCreate)
	require.ErrorIs(t, err, mint.StatusBadArguments)

	handle, err := cli.Open(ctx, "/bounds", mint.OpenReadWrite|mint.OpenCreate)
	require.NoError(t, err)
	_, err = cli.Write(ctx, handle, 0, make([]byte, mint.MaxDataLen+1))
	require.ErrorIs(t, err, mint.StatusBadArguments)
}

func TestClient_Async(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t)

	handle, err := cli.Open(ctx, "/async", mint.OpenReadWrite|mint.OpenCreate)
	require.NoError(t, err)
	_, err = cli.Write(ctx, handle, 0, []byte("async payload"))
	require.NoError(t, err)

	op, err := cli.ReadAsync(ctx, handle, 6, 64)
	require.NoError(t, err)

	var data []byte
	require.Eventually(t, func() bool {
		var done bool
		data, done, err = cli.PollAsync(ctx, op)
		return err == nil && done
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []byte("payload"), data)

	// Completed operations poll idempotently.
	again, done, err := cli.PollAsync(ctx, op)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, data, again)

	_, _, err = cli.PollAsync(ctx, 0xbad)
	require.ErrorIs(t, err, mint.ErrUnknownOp)
}
