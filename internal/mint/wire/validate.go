package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/mintfs/mint/internal/mint"
)

// ValidationError describes the first schema violation found in an inbound
// message. Validation is all-or-nothing: nothing past the violating field
// was interpreted. It unwraps to mint.StatusBadArguments so dispatchers can
// classify it without inspecting the message.
type ValidationError struct {
	Routine mint.Routine
	Field   string // Violating field name; empty for whole-message checks.
	Reason  string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("wire: %s: %s", e.Routine, e.Reason)
	}
	return fmt.Sprintf("wire: %s.%s: %s", e.Routine, e.Field, e.Reason)
}

// Unwrap classifies every validation failure as a BadArguments outcome.
func (e *ValidationError) Unwrap() error { return mint.StatusBadArguments }

// fieldReader pops validated fields off a message body in schema order.
// Any violation panics with a *ValidationError, which the codec entry
// points recover into an error return.
type fieldReader struct {
	routine mint.Routine
	body    []byte
	off     int
}

func (fr *fieldReader) fail(field, format string, args ...interface{}) {
	panic(&ValidationError{
		Routine: fr.routine,
		Field:   field,
		Reason:  fmt.Sprintf(format, args...),
	})
}

// field validates f's descriptor and returns the value bytes, unpadded.
// The returned slice is owned by the caller; it never aliases the body.
func (fr *fieldReader) field(f Field) []byte {
	d := fr.descriptor(f.Name)

	// Descriptor checks run in a fixed order: type code, element size,
	// element count, locality. The first violation fails the whole request.
	if d.Code != f.Code {
		fr.fail(f.Name, "type code %s, want %s", d.Code, f.Code)
	}
	want, ok := d.Code.ElemBits()
	if !ok || d.Bits != want || d.Bits != f.Bits {
		fr.fail(f.Name, "element size %d bits, want %d", d.Bits, f.Bits)
	}
	switch {
	case f.Variable && d.Count > f.Max:
		fr.fail(f.Name, "count %d exceeds maximum %d", d.Count, f.Max)
	case !f.Variable && d.Count != f.Count:
		fr.fail(f.Name, "count %d, want %d", d.Count, f.Count)
	}
	if !d.Inline() {
		fr.fail(f.Name, "out-of-line fields are unsupported")
	}
	if d.Flags&(DescLongform|DescDeallocate) != 0 {
		fr.fail(f.Name, "longform/deallocate fields are unsupported")
	}

	padded := f.valueLen(d.Count)
	if fr.off+padded > len(fr.body) {
		fr.fail(f.Name, "truncated value: %d bytes declared, %d remain", padded, len(fr.body)-fr.off)
	}
	n := int(d.Count) * int(f.Bits) / 8
	if n == 0 {
		fr.off += padded
		return nil
	}
	value := make([]byte, n)
	copy(value, fr.body[fr.off:fr.off+n])
	fr.off += padded
	return value
}

// descriptor pops the raw 8-byte descriptor for the named field.
func (fr *fieldReader) descriptor(name string) Descriptor {
	if fr.off+DescriptorLen > len(fr.body) {
		fr.fail(name, "truncated descriptor")
	}
	buf := fr.body[fr.off:]
	fr.off += DescriptorLen
	return Descriptor{
		Code:     TypeCode(buf[0]),
		Bits:     buf[1],
		Flags:    DescFlags(buf[2]),
		Reserved: buf[3],
		Count:    binary.LittleEndian.Uint32(buf[4:]),
	}
}

func (fr *fieldReader) u32(f Field) uint32 {
	return binary.LittleEndian.Uint32(fr.field(f))
}

func (fr *fieldReader) u64(f Field) uint64 {
	return binary.LittleEndian.Uint64(fr.field(f))
}

// done asserts the body was consumed exactly. Trailing bytes mean the
// declared total size disagrees with the routine's shape.
func (fr *fieldReader) done() {
	if fr.off != len(fr.body) {
		fr.fail("", "message size %d doesn't match expected %d",
			EnvelopeLen+len(fr.body), EnvelopeLen+fr.off)
	}
}

// checkEnvelope runs the whole-message size checks that must pass before
// any field is interpreted. whole marks s as the complete shape of the
// body: schemas with no variable fields then get an exact size check up
// front, everything else a minimum; the reader's done() settles the exact
// size once variable counts are known. DecodeReply passes whole=false
// since the body past the status field depends on the status value.
func checkEnvelope(routine mint.Routine, m *Message, s Schema, whole bool) error {
	if m.Size != uint32(EnvelopeLen+len(m.Body)) {
		return &ValidationError{
			Routine: routine,
			Reason:  fmt.Sprintf("declared size %d doesn't match message %d", m.Size, EnvelopeLen+len(m.Body)),
		}
	}
	if whole {
		if n, ok := s.FixedLen(); ok && len(m.Body) != n {
			return &ValidationError{
				Routine: routine,
				Reason:  fmt.Sprintf("message size %d, shape requires exactly %d", m.Size, EnvelopeLen+n),
			}
		}
	}
	if len(m.Body) < s.MinLen() {
		return &ValidationError{
			Routine: routine,
			Reason:  fmt.Sprintf("message size %d below minimum %d for shape", m.Size, EnvelopeLen+s.MinLen()),
		}
	}
	return nil
}

// recoverValidation converts a fieldReader panic back into an error. Other
// panics are re-thrown.
func recoverValidation(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if verr, ok := r.(*ValidationError); ok {
		*err = verr
		return
	}
	panic(r)
}
