package server

import (
	"bytes"
	"context"
	"testing"

	"github.com/mintfs/mint/internal/mint"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := NewMemStore()

	h := openFileHandle(t, src, "/a", mint.OpenReadWrite|mint.OpenCreate)
	_, err := src.Write(ctx, nil, &mint.WriteRequest{Handle: h, Data: []byte("first")})
	require.NoError(t, err)
	h2 := openFileHandle(t, src, "/b", mint.OpenReadWrite|mint.OpenCreate)
	_, err = src.Write(ctx, nil, &mint.WriteRequest{Handle: h2, Data: []byte("second")})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(&buf))

	dst := NewMemStore()
	require.NoError(t, dst.Restore(&buf))

	// Handles don't carry over, only file contents do.
	_, err = dst.Read(ctx, nil, &mint.ReadRequest{Handle: h, MaxBytes: 1})
	require.ErrorIs(t, err, mint.ErrBadHandle)

	got := openFileHandle(t, dst, "/b", mint.OpenReadOnly)
	resp, err := dst.Read(ctx, nil, &mint.ReadRequest{Handle: got, MaxBytes: 64})
	require.NoError(t, err)
	require.Equal(t, []byte("second"), resp.Data)
}

func TestRestore_BadInput(t *testing.T) {
	dst := NewMemStore()
	require.Error(t, dst.Restore(bytes.NewReader([]byte("not msgpack at all"))))
}
