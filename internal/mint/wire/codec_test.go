package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mintfs/mint/internal/mint"
	"github.com/stretchr/testify/require"
)

// reencode runs a message through Marshal/Unmarshal so decode tests see
// exactly what a transport would deliver.
func reencode(t *testing.T, m *Message) *Message {
	t.Helper()
	out, err := Unmarshal(m.Marshal())
	require.NoError(t, err)
	return out
}

func TestRequestRoundTrip(t *testing.T) {
	tt := []struct {
		name string
		req  mint.Request
	}{
		{"open", &mint.OpenRequest{Path: []byte("/etc/motd"), Flags: mint.OpenReadWrite | mint.OpenCreate}},
		{"read", &mint.ReadRequest{Handle: 77, Offset: 4096, MaxBytes: 512}},
		{"write", &mint.WriteRequest{Handle: 77, Offset: 9, Data: []byte("hello")}},
		{"size", &mint.SizeRequest{Handle: 77}},
		{"close", &mint.CloseRequest{Handle: 77}},
		{"read_async", &mint.ReadAsyncRequest{Handle: 77, Offset: 1, MaxBytes: 128}},
		{"poll_async", &mint.PollAsyncRequest{Op: 31}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := EncodeRequest(5, tc.req)
			require.NoError(t, err)

			routine, err := RoutineOf(tc.req)
			require.NoError(t, err)
			require.Equal(t, routine.RequestID(), msg.ID)
			require.Equal(t, mint.Port(5), msg.RemotePort)

			hdr, got, err := DecodeRequest(reencode(t, msg))
			require.NoError(t, err)
			require.Equal(t, routine, hdr.Routine)
			require.Equal(t, tc.req, got)
		})
	}
}

func TestRequestRoundTrip_EmptyPayload(t *testing.T) {
	// Zero-length variable fields are legal and must survive the trip.
	msg, err := EncodeRequest(1, &mint.WriteRequest{Handle: 1, Offset: 0, Data: nil})
	require.NoError(t, err)

	_, got, err := DecodeRequest(reencode(t, msg))
	require.NoError(t, err)
	require.Empty(t, got.(*mint.WriteRequest).Data)
}

func TestEncodeRequest_Bounds(t *testing.T) {
	t.Run("path at limit", func(t *testing.T) {
		_, err := EncodeRequest(1, &mint.OpenRequest{Path: bytes.Repeat([]byte("p"), mint.MaxPathLen)})
		require.NoError(t, err)
	})
	t.Run("path over limit", func(t *testing.T) {
		_, err := EncodeRequest(1, &mint.OpenRequest{Path: bytes.Repeat([]byte("p"), mint.MaxPathLen+1)})
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("data at limit", func(t *testing.T) {
		_, err := EncodeRequest(1, &mint.WriteRequest{Data: make([]byte, mint.MaxDataLen)})
		require.NoError(t, err)
	})
	t.Run("data over limit", func(t *testing.T) {
		_, err := EncodeRequest(1, &mint.WriteRequest{Data: make([]byte, mint.MaxDataLen+1)})
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
}

func TestDecodeRequest_Bounds(t *testing.T) {
	// A peer that ignores the client-side check still can't get an
	// oversized count past the validator. The bound is exact: the maximum
	// count decodes, one past it is rejected at the violating field.
	bumpCount := func(t *testing.T, msg *Message, descOff int, count uint32) {
		t.Helper()
		msg.Body[descOff+4] = byte(count)
		msg.Body[descOff+5] = byte(count >> 8)
		msg.Body[descOff+6] = byte(count >> 16)
		msg.Body[descOff+7] = byte(count >> 24)
	}
	requireFieldBound := func(t *testing.T, err error, field string) {
		t.Helper()
		require.ErrorIs(t, err, mint.StatusBadArguments)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		require.Equal(t, field, verr.Field)
	}

	t.Run("path count at limit", func(t *testing.T) {
		msg, err := EncodeRequest(1, &mint.OpenRequest{Path: bytes.Repeat([]byte("p"), mint.MaxPathLen)})
		require.NoError(t, err)

		_, req, err := DecodeRequest(msg)
		require.NoError(t, err)
		require.Len(t, req.(*mint.OpenRequest).Path, mint.MaxPathLen)
	})
	t.Run("path count one past limit", func(t *testing.T) {
		msg, err := EncodeRequest(1, &mint.OpenRequest{Path: bytes.Repeat([]byte("p"), mint.MaxPathLen)})
		require.NoError(t, err)
		bumpCount(t, msg, 0, mint.MaxPathLen+1)

		_, _, err = DecodeRequest(msg)
		requireFieldBound(t, err, "path")
	})
	t.Run("data count at limit", func(t *testing.T) {
		msg, err := EncodeRequest(1, &mint.WriteRequest{Handle: 1, Data: make([]byte, mint.MaxDataLen)})
		require.NoError(t, err)

		_, req, err := DecodeRequest(msg)
		require.NoError(t, err)
		require.Len(t, req.(*mint.WriteRequest).Data, mint.MaxDataLen)
	})
	t.Run("data count one past limit", func(t *testing.T) {
		msg, err := EncodeRequest(1, &mint.WriteRequest{Handle: 1, Data: make([]byte, mint.MaxDataLen)})
		require.NoError(t, err)
		bumpCount(t, msg, 32, mint.MaxDataLen+1) // data descriptor follows handle and offset

		_, _, err = DecodeRequest(msg)
		requireFieldBound(t, err, "data")
	})
	t.Run("garbage count", func(t *testing.T) {
		msg, err := EncodeRequest(1, &mint.OpenRequest{Path: []byte("/ok")})
		require.NoError(t, err)
		bumpCount(t, msg, 0, 0xffff)

		_, _, err = DecodeRequest(msg)
		requireFieldBound(t, err, "path")
	})
}

func TestDecodeRequest_UnroutableID(t *testing.T) {
	msg, err := EncodeRequest(1, &mint.SizeRequest{Handle: 1})
	require.NoError(t, err)
	msg.ID = 9999

	_, _, err = DecodeRequest(msg)
	require.ErrorIs(t, err, mint.StatusBadID)
}

func TestDecodeRequest_Malformed(t *testing.T) {
	corrupt := func(t *testing.T, f func(m *Message)) error {
		t.Helper()
		msg, err := EncodeRequest(1, &mint.WriteRequest{Handle: 3, Offset: 0, Data: []byte("abcd")})
		require.NoError(t, err)
		f(msg)
		_, _, err = DecodeRequest(msg)
		return err
	}

	t.Run("wrong type code", func(t *testing.T) {
		err := corrupt(t, func(m *Message) { m.Body[0] = uint8(TypeInteger16) })
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("wrong element size", func(t *testing.T) {
		err := corrupt(t, func(m *Message) { m.Body[1] = 32 })
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("wrong count on fixed field", func(t *testing.T) {
		err := corrupt(t, func(m *Message) { m.Body[4] = 2 })
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("out-of-line field", func(t *testing.T) {
		err := corrupt(t, func(m *Message) { m.Body[2] &^= uint8(DescInline) })
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("longform field", func(t *testing.T) {
		err := corrupt(t, func(m *Message) { m.Body[2] |= uint8(DescLongform) })
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("truncated body", func(t *testing.T) {
		err := corrupt(t, func(m *Message) {
			m.Body = m.Body[:len(m.Body)-4]
			m.Size -= 4
		})
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("trailing bytes", func(t *testing.T) {
		err := corrupt(t, func(m *Message) {
			m.Body = append(m.Body, 0, 0, 0, 0)
			m.Size += 4
		})
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
	t.Run("declared size disagrees", func(t *testing.T) {
		err := corrupt(t, func(m *Message) { m.Size++ })
		require.ErrorIs(t, err, mint.StatusBadArguments)
	})
}

func TestDecodeRequest_FixedShapeExactSize(t *testing.T) {
	// Routines without variable fields have one legal size; anything else
	// is rejected as a whole-message violation before any field is read.
	msg, err := EncodeRequest(1, &mint.SizeRequest{Handle: 7})
	require.NoError(t, err)
	msg.Body = append(msg.Body, 0, 0, 0, 0)
	msg.Size += 4

	_, req, err := DecodeRequest(msg)
	require.ErrorIs(t, err, mint.StatusBadArguments)
	require.Nil(t, req)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Empty(t, verr.Field)
}

func TestDecodeRequest_NoPartialResults(t *testing.T) {
	// Corrupting the last field must not leak the earlier, valid ones.
	msg, err := EncodeRequest(1, &mint.WriteRequest{Handle: 3, Offset: 16, Data: []byte("abcd")})
	require.NoError(t, err)
	msg.Body[len(msg.Body)-8-4] = uint8(TypeInteger32) // data descriptor code

	_, req, err := DecodeRequest(msg)
	require.Error(t, err)
	require.Nil(t, req)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "data", verr.Field)
}

func TestReplyRoundTrip(t *testing.T) {
	tt := []struct {
		name string
		resp mint.Response
	}{
		{"open", &mint.OpenResponse{Handle: 9}},
		{"read", &mint.ReadResponse{Data: []byte("payload"), Count: 7}},
		{"write", &mint.WriteResponse{Count: 42}},
		{"size", &mint.SizeResponse{Size: 1 << 30}},
		{"read_async", &mint.ReadAsyncResponse{Op: 8}},
		{"poll_async", &mint.PollAsyncResponse{Complete: true, Data: []byte("done"), Count: 4}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			routine := routineOfResponse(t, tc.resp)
			hdr := mint.RequestHeader{Routine: routine, ID: routine.RequestID(), ReplyPort: 12}

			msg, err := EncodeReply(hdr, mint.StatusOK, 0, tc.resp)
			require.NoError(t, err)
			require.Equal(t, routine.ReplyID(), msg.ID)
			require.Equal(t, mint.Port(12), msg.RemotePort)

			rhdr, got, err := DecodeReply(reencode(t, msg))
			require.NoError(t, err)
			require.Equal(t, mint.StatusOK, rhdr.Status)
			require.Zero(t, rhdr.Err)
			require.Equal(t, tc.resp, got)
		})
	}
}

func routineOfResponse(t *testing.T, resp mint.Response) mint.Routine {
	t.Helper()
	switch resp.(type) {
	case *mint.OpenResponse:
		return mint.RoutineOpen
	case *mint.ReadResponse:
		return mint.RoutineRead
	case *mint.WriteResponse:
		return mint.RoutineWrite
	case *mint.SizeResponse:
		return mint.RoutineSize
	case *mint.ReadAsyncResponse:
		return mint.RoutineReadAsync
	case *mint.PollAsyncResponse:
		return mint.RoutinePollAsync
	}
	t.Fatalf("unhandled response type %T", resp)
	return 0
}

func TestEncodeReply_HandlerError(t *testing.T) {
	// A handler failure still produces a full-shape reply: status OK, error
	// field set, outputs zeroed.
	hdr := mint.RequestHeader{Routine: mint.RoutineOpen, ID: mint.RoutineOpen.RequestID(), ReplyPort: 3}
	msg, err := EncodeReply(hdr, mint.StatusOK, mint.ErrNotExist, nil)
	require.NoError(t, err)

	rhdr, resp, err := DecodeReply(reencode(t, msg))
	require.NoError(t, err)
	require.Equal(t, mint.StatusOK, rhdr.Status)
	require.Equal(t, mint.ErrNotExist, rhdr.Err)
	require.Equal(t, &mint.OpenResponse{}, resp)
}

func TestEncodeReply_FireAndForget(t *testing.T) {
	hdr := mint.RequestHeader{Routine: mint.RoutineClose, ID: mint.RoutineClose.RequestID(), ReplyPort: 3}
	_, err := EncodeReply(hdr, mint.StatusOK, 0, nil)
	require.Error(t, err)
}

func TestStatusReplyRoundTrip(t *testing.T) {
	req, err := EncodeRequest(1, &mint.SizeRequest{Handle: 1})
	require.NoError(t, err)
	req.ID = 9999
	req.LocalPort = 44

	reply := EncodeStatusReply(req.Envelope, mint.StatusBadID)
	require.Equal(t, uint32(9999+mint.ReplyOffset), reply.ID)
	require.Equal(t, mint.Port(44), reply.RemotePort)
}

func TestDecodeReply_Status(t *testing.T) {
	req, err := EncodeRequest(1, &mint.SizeRequest{Handle: 1})
	require.NoError(t, err)
	req.LocalPort = 7

	reply := EncodeStatusReply(req.Envelope, mint.StatusBadArguments)
	rhdr, resp, err := DecodeReply(reencode(t, reply))
	require.NoError(t, err)
	require.Equal(t, mint.StatusBadArguments, rhdr.Status)
	require.Nil(t, resp)
}
