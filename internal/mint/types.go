package mint

import "fmt"

// ID types. mint has a pair of opaque tokens that name server-side state
// for the lifetime of a connection.
type (
	// Handle is an opaque value naming an open file on the server. 0 is
	// never a valid handle. Handles are created by open, consumed by
	// read/write/size/close, and owned by the server-side handler.
	Handle uint64

	// OpID is an opaque value naming a pending or completed asynchronous
	// read. Created by read_async, observed through poll_async. Its
	// lifecycle is owned by the handler; this layer only carries it.
	OpID uint64

	// Port names a transport endpoint. 0 is the null port: a message whose
	// reply port is null expects no reply.
	Port uint32
)

// Routine identifies one of the seven file-service routines by its offset
// from RequestBase.
type Routine uint32

const (
	RoutineOpen Routine = iota
	RoutineRead
	RoutineWrite
	RoutineSize
	RoutineClose
	RoutineReadAsync
	RoutinePollAsync

	// RoutineCount is the number of routines in the subsystem.
	RoutineCount = iota
)

const (
	// RequestBase is the message identifier of the first routine. The
	// identifier of routine r is RequestBase + uint32(r).
	RequestBase uint32 = 5000

	// ReplyOffset is added to a request identifier to form its reply
	// identifier. This is a fixed convention, not configurable per routine.
	ReplyOffset uint32 = 100
)

// RequestID returns the wire identifier for r's request message.
func (r Routine) RequestID() uint32 { return RequestBase + uint32(r) }

// ReplyID returns the wire identifier for r's reply message.
func (r Routine) ReplyID() uint32 { return r.RequestID() + ReplyOffset }

// OneWay reports whether r is fire-and-forget: its requests never produce
// a reply message, regardless of handler outcome.
func (r Routine) OneWay() bool { return r == RoutineClose }

// RoutineForID maps a wire identifier back to its routine. ok is false for
// identifiers outside [RequestBase, RequestBase+RoutineCount).
func RoutineForID(id uint32) (r Routine, ok bool) {
	if id < RequestBase || id >= RequestBase+RoutineCount {
		return 0, false
	}
	return Routine(id - RequestBase), true
}

var routineNames = [RoutineCount]string{
	"open", "read", "write", "size", "close", "read_async", "poll_async",
}

// String implements fmt.Stringer.
func (r Routine) String() string {
	if int(r) < len(routineNames) {
		return routineNames[r]
	}
	return fmt.Sprintf("routine(%d)", uint32(r))
}

// Per-field maxima for variable-length arrays. These bounds cap message
// size and are hard preconditions on both encode and decode.
const (
	// MaxPathLen is the maximum element count of open's path field.
	MaxPathLen = 4096

	// MaxDataLen is the maximum element count of the data field in write
	// requests and read/poll_async replies.
	MaxDataLen = 1 << 20
)

// FileFlags is a bitmask of options for opening a file. It travels as a
// 32-bit integer field and is interpreted by the server-side handler.
type FileFlags uint32

const (
	OpenReadOnly  FileFlags = 0x0   // Open the file for reading.
	OpenWriteOnly FileFlags = 0x1   // Open the file for writing.
	OpenReadWrite FileFlags = 0x2   // Open the file for reading and writing.
	OpenCreate    FileFlags = 0x40  // Create the file if it doesn't exist.
	OpenTruncate  FileFlags = 0x200 // Truncate contents before writing.
)

// RequestHeader accompanies every decoded request delivered to a handler.
type RequestHeader struct {
	Routine   Routine // Routine the request is for.
	ID        uint32  // Wire identifier of the request message.
	ReplyPort Port    // Port the reply must be sent to; 0 for one-way calls.
}

// ResponseHeader accompanies every decoded reply.
type ResponseHeader struct {
	Routine Routine // Routine the reply is for.
	ID      uint32  // Wire identifier of the reply message.
	Status  Status  // Protocol status. Body fields are only present when OK.
	Err     Error   // Application error field from the reply body.
}
