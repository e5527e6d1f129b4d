// Package wire implements the mint wire format: a fixed envelope followed
// by an ordered sequence of (type descriptor, value) pairs whose layout is
// declared per routine by a Schema. Values are decoded into owned,
// length-checked buffers; raw message memory is never aliased as a typed
// value.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/mintfs/mint/internal/mint"
)

// Sizes of the fixed wire structures, in bytes.
const (
	EnvelopeLen   = 24
	DescriptorLen = 8
)

// MaxMessageLen bounds a whole message: envelope, descriptors for every
// field, the largest variable payload, and padding. Transports reject
// anything larger before parsing.
const MaxMessageLen = EnvelopeLen + 16*DescriptorLen + mint.MaxDataLen + 64

// TypeCode describes the kind of one marshaled value.
type TypeCode uint8

const (
	TypeInteger16        TypeCode = 1
	TypeInteger32        TypeCode = 2
	TypeByte             TypeCode = 9
	TypeInteger64        TypeCode = 11
	TypePortCopySend     TypeCode = 19
	TypePortMakeSendOnce TypeCode = 21
)

// ElemBits returns the element size in bits that c's values must declare.
// ok is false for unknown codes.
func (c TypeCode) ElemBits() (bits uint8, ok bool) {
	switch c {
	case TypeInteger16:
		return 16, true
	case TypeInteger32:
		return 32, true
	case TypeByte:
		return 8, true
	case TypeInteger64:
		return 64, true
	case TypePortCopySend, TypePortMakeSendOnce:
		return 32, true
	}
	return 0, false
}

// String implements fmt.Stringer.
func (c TypeCode) String() string {
	switch c {
	case TypeInteger16:
		return "int16"
	case TypeInteger32:
		return "int32"
	case TypeByte:
		return "byte"
	case TypeInteger64:
		return "int64"
	case TypePortCopySend:
		return "port(copy-send)"
	case TypePortMakeSendOnce:
		return "port(make-send-once)"
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// DescFlags is a bitmask of per-field locality and ownership flags.
type DescFlags uint8

const (
	// DescInline marks the value as embedded directly in the message. Every
	// supported field is inline; clear means out-of-line, which is part of
	// the format but rejected by the validator.
	DescInline DescFlags = 1 << 0
	// DescLongform marks an extended descriptor form. Unsupported.
	DescLongform DescFlags = 1 << 1
	// DescDeallocate transfers ownership of out-of-line memory. Unsupported.
	DescDeallocate DescFlags = 1 << 2
)

// Descriptor is the compact tag preceding every field value, describing
// its wire encoding.
type Descriptor struct {
	Code     TypeCode  // Kind of the value.
	Bits     uint8     // Element size in bits; must agree with Code.
	Flags    DescFlags // Locality and ownership flags.
	Reserved uint8     // Reserved; must be zero on encode, ignored on decode.
	Count    uint32    // Element count.
}

// Inline reports whether the descriptor declares inline locality.
func (d Descriptor) Inline() bool { return d.Flags&DescInline != 0 }

// Port dispositions, carried in the envelope Bits field. The low byte of
// Bits describes the destination endpoint reference, the second byte the
// reply endpoint reference.
const (
	DispNone         uint8 = 0
	DispMoveReceive  uint8 = 16
	DispMoveSend     uint8 = 17
	DispMoveSendOnce uint8 = 18
	DispCopySend     uint8 = 19
	DispMakeSend     uint8 = 20
	DispMakeSendOnce uint8 = 21
)

// ComposeBits builds an envelope Bits value from the remote and local
// endpoint dispositions.
func ComposeBits(remote, local uint8) uint32 {
	return uint32(remote) | uint32(local)<<8
}

// Envelope is the fixed header that starts every message.
type Envelope struct {
	Bits       uint32    // Endpoint-reference semantics; see ComposeBits.
	Size       uint32    // Total message length including the envelope.
	RemotePort mint.Port // Destination endpoint.
	LocalPort  mint.Port // Reply endpoint; 0 when no reply is expected.
	Reserved   uint32    // Reserved; must round-trip untouched.
	ID         uint32    // Message identifier selecting the routine.
}

// RemoteDisposition returns the destination endpoint reference kind.
func (e Envelope) RemoteDisposition() uint8 { return uint8(e.Bits & 0xff) }

// LocalDisposition returns the reply endpoint reference kind.
func (e Envelope) LocalDisposition() uint8 { return uint8(e.Bits >> 8 & 0xff) }

// Message is one request or reply: an envelope plus the encoded field
// sequence. Body holds raw (descriptor, value) pairs; use the codec to
// interpret them.
type Message struct {
	Envelope
	Body []byte
}

// Marshal renders the message in wire order. The envelope Size field is
// written as-is; EncodeRequest and EncodeReply keep it consistent.
func (m *Message) Marshal() []byte {
	buf := make([]byte, EnvelopeLen+len(m.Body))
	le := binary.LittleEndian
	le.PutUint32(buf[0:], m.Bits)
	le.PutUint32(buf[4:], m.Size)
	le.PutUint32(buf[8:], uint32(m.RemotePort))
	le.PutUint32(buf[12:], uint32(m.LocalPort))
	le.PutUint32(buf[16:], m.Reserved)
	le.PutUint32(buf[20:], m.ID)
	copy(buf[EnvelopeLen:], m.Body)
	return buf
}

// Unmarshal parses one message from buf. The declared size must match
// len(buf) exactly; a frame that disagrees with its own envelope is a
// transport error, not a protocol one.
func Unmarshal(buf []byte) (*Message, error) {
	if len(buf) < EnvelopeLen {
		return nil, fmt.Errorf("wire: short message: %d bytes", len(buf))
	}
	le := binary.LittleEndian
	m := &Message{
		Envelope: Envelope{
			Bits:       le.Uint32(buf[0:]),
			Size:       le.Uint32(buf[4:]),
			RemotePort: mint.Port(le.Uint32(buf[8:])),
			LocalPort:  mint.Port(le.Uint32(buf[12:])),
			Reserved:   le.Uint32(buf[16:]),
			ID:         le.Uint32(buf[20:]),
		},
	}
	if m.Size != uint32(len(buf)) {
		return nil, fmt.Errorf("wire: envelope size %d doesn't match frame %d", m.Size, len(buf))
	}
	m.Body = make([]byte, len(buf)-EnvelopeLen)
	copy(m.Body, buf[EnvelopeLen:])
	return m, nil
}

// align4 rounds n up to the next 4-byte boundary. Variable byte arrays are
// padded so the following descriptor stays aligned.
func align4(n int) int { return (n + 3) &^ 3 }
