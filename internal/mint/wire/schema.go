package wire

import "github.com/mintfs/mint/internal/mint"

// Field declares the expected wire encoding of one message field. The
// validator checks every inbound descriptor against its Field before the
// payload is trusted.
type Field struct {
	Name     string   // Field name, used in validation errors.
	Code     TypeCode // Expected type code.
	Bits     uint8    // Expected element size in bits.
	Count    uint32   // Exact element count for fixed-size fields.
	Variable bool     // Variable-length field: count may be in [0, Max].
	Max      uint32   // Maximum element count for variable fields.
}

// valueLen returns the padded byte length of a field value holding count
// elements.
func (f Field) valueLen(count uint32) int {
	return align4(int(count) * int(f.Bits) / 8)
}

// Schema is the ordered field layout of one message body.
type Schema []Field

// MinLen returns the smallest possible encoded length of the schema: all
// descriptors plus fixed values, with variable fields empty.
func (s Schema) MinLen() int {
	n := 0
	for _, f := range s {
		n += DescriptorLen
		if !f.Variable {
			n += f.valueLen(f.Count)
		}
	}
	return n
}

// FixedLen returns the exact encoded length of the schema and true when
// every field is fixed-size; variable fields make the total depend on
// their counts, so ok is false.
func (s Schema) FixedLen() (n int, ok bool) {
	for _, f := range s {
		if f.Variable {
			return 0, false
		}
	}
	return s.MinLen(), true
}

// Schema building helpers. Routine layouts are declared once, below, and
// never mutated.
func i32Field(name string) Field {
	return Field{Name: name, Code: TypeInteger32, Bits: 32, Count: 1}
}

func i64Field(name string) Field {
	return Field{Name: name, Code: TypeInteger64, Bits: 64, Count: 1}
}

func bytesField(name string, max uint32) Field {
	return Field{Name: name, Code: TypeByte, Bits: 8, Variable: true, Max: max}
}

// statusField precedes the reply schema in every reply body. It carries the
// protocol status, distinct from the application error field.
var statusField = i32Field("status")

// errorField is the explicit application-error reply field. It terminates
// every reply schema.
var errorField = i32Field("error")

// Request field layouts, indexed by routine.
var requestSchemas = [mint.RoutineCount]Schema{
	mint.RoutineOpen: {
		bytesField("path", mint.MaxPathLen),
		i32Field("flags"),
	},
	mint.RoutineRead: {
		i64Field("handle"),
		i64Field("offset"),
		i32Field("max_bytes"),
	},
	mint.RoutineWrite: {
		i64Field("handle"),
		i64Field("offset"),
		bytesField("data", mint.MaxDataLen),
	},
	mint.RoutineSize: {
		i64Field("handle"),
	},
	mint.RoutineClose: {
		i64Field("handle"),
	},
	mint.RoutineReadAsync: {
		i64Field("handle"),
		i64Field("offset"),
		i32Field("max_bytes"),
	},
	mint.RoutinePollAsync: {
		i64Field("operation"),
	},
}

// Reply field layouts, indexed by routine. The status field is not listed;
// it always precedes these. close is fire-and-forget and has no reply
// layout at all.
var replySchemas = [mint.RoutineCount]Schema{
	mint.RoutineOpen: {
		i64Field("handle"),
		errorField,
	},
	mint.RoutineRead: {
		bytesField("data", mint.MaxDataLen),
		i32Field("count"),
		errorField,
	},
	mint.RoutineWrite: {
		i32Field("count"),
		errorField,
	},
	mint.RoutineSize: {
		i64Field("size"),
		errorField,
	},
	mint.RoutineClose: nil,
	mint.RoutineReadAsync: {
		i64Field("operation"),
		errorField,
	},
	mint.RoutinePollAsync: {
		i32Field("complete"),
		bytesField("data", mint.MaxDataLen),
		i32Field("count"),
		errorField,
	},
}

// RequestSchema returns the request field layout for r.
func RequestSchema(r mint.Routine) Schema {
	if int(r) >= len(requestSchemas) {
		return nil
	}
	return requestSchemas[r]
}

// ReplySchema returns the reply field layout for r. ok is false for
// fire-and-forget routines, which have no reply shape.
func ReplySchema(r mint.Routine) (s Schema, ok bool) {
	if int(r) >= len(replySchemas) || replySchemas[r] == nil {
		return nil, false
	}
	return replySchemas[r], true
}
