package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/mintfs/mint/internal/mint"
)

// fieldWriter queues encoded fields onto a message body. Writers never
// fail: bounds are checked by the encode entry points before any field is
// written.
type fieldWriter struct {
	buf []byte
}

// field appends f's descriptor followed by value, padded to the 4-byte
// boundary the next descriptor must start on.
func (fw *fieldWriter) field(f Field, count uint32, value []byte) {
	var desc [DescriptorLen]byte
	desc[0] = uint8(f.Code)
	desc[1] = f.Bits
	desc[2] = uint8(DescInline)
	binary.LittleEndian.PutUint32(desc[4:], count)
	fw.buf = append(fw.buf, desc[:]...)

	fw.buf = append(fw.buf, value...)
	for pad := f.valueLen(count) - len(value); pad > 0; pad-- {
		fw.buf = append(fw.buf, 0)
	}
}

func (fw *fieldWriter) u32(f Field, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	fw.field(f, 1, b[:])
}

func (fw *fieldWriter) u64(f Field, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	fw.field(f, 1, b[:])
}

func (fw *fieldWriter) bytes(f Field, value []byte) {
	fw.field(f, uint32(len(value)), value)
}

// checkBound enforces a variable field's maximum on encode. The bound caps
// message size and is a hard precondition, not best-effort.
func checkBound(routine mint.Routine, f Field, n int) error {
	if uint32(n) > f.Max {
		return &ValidationError{
			Routine: routine,
			Field:   f.Name,
			Reason:  fmt.Sprintf("count %d exceeds maximum %d", n, f.Max),
		}
	}
	return nil
}

// RoutineOf returns the routine a typed request body belongs to.
func RoutineOf(req mint.Request) (mint.Routine, error) {
	switch req.(type) {
	case *mint.OpenRequest:
		return mint.RoutineOpen, nil
	case *mint.ReadRequest:
		return mint.RoutineRead, nil
	case *mint.WriteRequest:
		return mint.RoutineWrite, nil
	case *mint.SizeRequest:
		return mint.RoutineSize, nil
	case *mint.CloseRequest:
		return mint.RoutineClose, nil
	case *mint.ReadAsyncRequest:
		return mint.RoutineReadAsync, nil
	case *mint.PollAsyncRequest:
		return mint.RoutinePollAsync, nil
	}
	return 0, fmt.Errorf("wire: unknown request type %T", req)
}

// EncodeRequest packs a typed request into a message addressed to remote.
// The reply endpoint is left null; the transport stamps it when it expects
// a reply. Variable fields are bounds-checked before anything is written.
func EncodeRequest(remote mint.Port, req mint.Request) (*Message, error) {
	routine, err := RoutineOf(req)
	if err != nil {
		return nil, err
	}
	s := RequestSchema(routine)

	var fw fieldWriter
	switch req := req.(type) {
	case *mint.OpenRequest:
		if err := checkBound(routine, s[0], len(req.Path)); err != nil {
			return nil, err
		}
		fw.bytes(s[0], req.Path)
		fw.u32(s[1], uint32(req.Flags))

	case *mint.ReadRequest:
		fw.u64(s[0], uint64(req.Handle))
		fw.u64(s[1], req.Offset)
		fw.u32(s[2], req.MaxBytes)

	case *mint.WriteRequest:
		if err := checkBound(routine, s[2], len(req.Data)); err != nil {
			return nil, err
		}
		fw.u64(s[0], uint64(req.Handle))
		fw.u64(s[1], req.Offset)
		fw.bytes(s[2], req.Data)

	case *mint.SizeRequest:
		fw.u64(s[0], uint64(req.Handle))

	case *mint.CloseRequest:
		fw.u64(s[0], uint64(req.Handle))

	case *mint.ReadAsyncRequest:
		fw.u64(s[0], uint64(req.Handle))
		fw.u64(s[1], req.Offset)
		fw.u32(s[2], req.MaxBytes)

	case *mint.PollAsyncRequest:
		fw.u64(s[0], uint64(req.Op))
	}

	localDisp := DispMakeSendOnce
	if routine.OneWay() {
		localDisp = DispNone
	}
	return &Message{
		Envelope: Envelope{
			Bits:       ComposeBits(DispCopySend, localDisp),
			Size:       uint32(EnvelopeLen + len(fw.buf)),
			RemotePort: remote,
			ID:         routine.RequestID(),
		},
		Body: fw.buf,
	}, nil
}

// DecodeRequest validates an inbound request against its routine's schema
// and unpacks it. Field checks run in schema order and the first violation
// fails the whole request: no partial decoding, no best-effort recovery.
func DecodeRequest(m *Message) (mint.RequestHeader, mint.Request, error) {
	routine, ok := mint.RoutineForID(m.ID)
	if !ok {
		return mint.RequestHeader{ID: m.ID}, nil,
			fmt.Errorf("wire: unroutable message id %d: %w", m.ID, mint.StatusBadID)
	}
	hdr := mint.RequestHeader{
		Routine:   routine,
		ID:        m.ID,
		ReplyPort: m.LocalPort,
	}

	s := RequestSchema(routine)
	if err := checkEnvelope(routine, m, s, true); err != nil {
		return hdr, nil, err
	}
	req, err := decodeRequestBody(routine, s, m.Body)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, req, nil
}

func decodeRequestBody(routine mint.Routine, s Schema, body []byte) (req mint.Request, err error) {
	defer recoverValidation(&err)
	fr := &fieldReader{routine: routine, body: body}

	switch routine {
	case mint.RoutineOpen:
		var (
			path  = fr.field(s[0])
			flags = fr.u32(s[1])
		)
		fr.done()
		return &mint.OpenRequest{Path: path, Flags: mint.FileFlags(flags)}, nil

	case mint.RoutineRead:
		var (
			handle = fr.u64(s[0])
			offset = fr.u64(s[1])
			max    = fr.u32(s[2])
		)
		fr.done()
		return &mint.ReadRequest{Handle: mint.Handle(handle), Offset: offset, MaxBytes: max}, nil

	case mint.RoutineWrite:
		var (
			handle = fr.u64(s[0])
			offset = fr.u64(s[1])
			data   = fr.field(s[2])
		)
		fr.done()
		return &mint.WriteRequest{Handle: mint.Handle(handle), Offset: offset, Data: data}, nil

	case mint.RoutineSize:
		var (
			handle = fr.u64(s[0])
		)
		fr.done()
		return &mint.SizeRequest{Handle: mint.Handle(handle)}, nil

	case mint.RoutineClose:
		var (
			handle = fr.u64(s[0])
		)
		fr.done()
		return &mint.CloseRequest{Handle: mint.Handle(handle)}, nil

	case mint.RoutineReadAsync:
		var (
			handle = fr.u64(s[0])
			offset = fr.u64(s[1])
			max    = fr.u32(s[2])
		)
		fr.done()
		return &mint.ReadAsyncRequest{Handle: mint.Handle(handle), Offset: offset, MaxBytes: max}, nil

	case mint.RoutinePollAsync:
		var (
			op = fr.u64(s[0])
		)
		fr.done()
		return &mint.PollAsyncRequest{Op: mint.OpID(op)}, nil
	}
	return nil, fmt.Errorf("wire: no request body for %s", routine)
}

// EncodeReply packs a reply for the request described by hdr. When status
// is OK the body carries the routine's reply fields plus the explicit
// application error field; otherwise it carries the status field alone.
// Fire-and-forget routines have no reply shape and cannot be encoded.
func EncodeReply(hdr mint.RequestHeader, status mint.Status, appErr mint.Error, resp mint.Response) (*Message, error) {
	s, ok := ReplySchema(hdr.Routine)
	if !ok {
		return nil, fmt.Errorf("wire: %s has no reply shape", hdr.Routine)
	}

	var fw fieldWriter
	fw.u32(statusField, uint32(status))

	if status == mint.StatusOK {
		if resp == nil {
			// A handler failure may leave no output values; the reply still
			// carries the shape with zeroed fields and the error code set.
			resp, _ = mint.NewEmptyResponse(hdr.Routine)
		}
		if err := encodeReplyBody(&fw, hdr.Routine, s, appErr, resp); err != nil {
			return nil, err
		}
	}

	return &Message{
		Envelope: Envelope{
			Bits:       ComposeBits(DispMoveSendOnce, DispNone),
			Size:       uint32(EnvelopeLen + len(fw.buf)),
			RemotePort: hdr.ReplyPort,
			ID:         hdr.Routine.ReplyID(),
		},
		Body: fw.buf,
	}, nil
}

func encodeReplyBody(fw *fieldWriter, routine mint.Routine, s Schema, appErr mint.Error, resp mint.Response) error {
	switch resp := resp.(type) {
	case *mint.OpenResponse:
		fw.u64(s[0], uint64(resp.Handle))

	case *mint.ReadResponse:
		if err := checkBound(routine, s[0], len(resp.Data)); err != nil {
			return err
		}
		fw.bytes(s[0], resp.Data)
		fw.u32(s[1], resp.Count)

	case *mint.WriteResponse:
		fw.u32(s[0], resp.Count)

	case *mint.SizeResponse:
		fw.u64(s[0], resp.Size)

	case *mint.ReadAsyncResponse:
		fw.u64(s[0], uint64(resp.Op))

	case *mint.PollAsyncResponse:
		var complete uint32
		if resp.Complete {
			complete = 1
		}
		if err := checkBound(routine, s[1], len(resp.Data)); err != nil {
			return err
		}
		fw.u32(s[0], complete)
		fw.bytes(s[1], resp.Data)
		fw.u32(s[2], resp.Count)

	default:
		return fmt.Errorf("wire: response type %T doesn't match %s", resp, routine)
	}
	fw.u32(errorField, uint32(appErr))
	return nil
}

// EncodeStatusReply builds the generic rejection reply sent when a request
// can't reach a handler: BadId for unroutable identifiers, BadArguments for
// schema violations. The body carries the status field alone.
func EncodeStatusReply(req Envelope, status mint.Status) *Message {
	var fw fieldWriter
	fw.u32(statusField, uint32(status))
	return &Message{
		Envelope: Envelope{
			Bits:       ComposeBits(DispMoveSendOnce, DispNone),
			Size:       uint32(EnvelopeLen + len(fw.buf)),
			RemotePort: req.LocalPort,
			ID:         req.ID + mint.ReplyOffset,
		},
		Body: fw.buf,
	}
}

// DecodeReply validates an inbound reply and unpacks it. A reply whose
// status is not OK carries no body fields; hdr.Status reports the protocol
// outcome and hdr.Err the application error field.
func DecodeReply(m *Message) (mint.ResponseHeader, mint.Response, error) {
	routine, ok := mint.RoutineForID(m.ID - mint.ReplyOffset)
	if !ok {
		return mint.ResponseHeader{ID: m.ID}, nil,
			fmt.Errorf("wire: unroutable reply id %d: %w", m.ID, mint.StatusBadID)
	}
	hdr := mint.ResponseHeader{Routine: routine, ID: m.ID}

	if err := checkEnvelope(routine, m, Schema{statusField}, false); err != nil {
		return hdr, nil, err
	}
	resp, err := decodeReplyBody(routine, &hdr, m.Body)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, resp, nil
}

func decodeReplyBody(routine mint.Routine, hdr *mint.ResponseHeader, body []byte) (resp mint.Response, err error) {
	defer recoverValidation(&err)
	fr := &fieldReader{routine: routine, body: body}

	hdr.Status = mint.Status(fr.u32(statusField))
	if hdr.Status != mint.StatusOK {
		fr.done()
		return nil, nil
	}

	s, ok := ReplySchema(routine)
	if !ok {
		fr.fail("", "unexpected reply for fire-and-forget routine")
	}

	switch routine {
	case mint.RoutineOpen:
		var (
			handle = fr.u64(s[0])
			code   = fr.u32(s[1])
		)
		fr.done()
		hdr.Err = mint.Error(code)
		return &mint.OpenResponse{Handle: mint.Handle(handle)}, nil

	case mint.RoutineRead:
		var (
			data  = fr.field(s[0])
			count = fr.u32(s[1])
			code  = fr.u32(s[2])
		)
		fr.done()
		hdr.Err = mint.Error(code)
		return &mint.ReadResponse{Data: data, Count: count}, nil

	case mint.RoutineWrite:
		var (
			count = fr.u32(s[0])
			code  = fr.u32(s[1])
		)
		fr.done()
		hdr.Err = mint.Error(code)
		return &mint.WriteResponse{Count: count}, nil

	case mint.RoutineSize:
		var (
			size = fr.u64(s[0])
			code = fr.u32(s[1])
		)
		fr.done()
		hdr.Err = mint.Error(code)
		return &mint.SizeResponse{Size: size}, nil

	case mint.RoutineReadAsync:
		var (
			op   = fr.u64(s[0])
			code = fr.u32(s[1])
		)
		fr.done()
		hdr.Err = mint.Error(code)
		return &mint.ReadAsyncResponse{Op: mint.OpID(op)}, nil

	case mint.RoutinePollAsync:
		var (
			complete = fr.u32(s[0])
			data     = fr.field(s[1])
			count    = fr.u32(s[2])
			code     = fr.u32(s[3])
		)
		fr.done()
		hdr.Err = mint.Error(code)
		return &mint.PollAsyncResponse{Complete: complete != 0, Data: data, Count: count}, nil
	}
	return nil, fmt.Errorf("wire: no reply body for %s", routine)
}
