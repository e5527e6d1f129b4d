package mint

import "strconv"

// Status is the protocol-level outcome of routing and validating a message.
// It is the first field of every reply body and is independent of both
// transport failures and the application error field.
type Status int32

const (
	// StatusOK means the request was well-formed and routed; the reply body
	// carries the routine's fields.
	StatusOK Status = 0

	// StatusBadID means the request identifier did not name any routine. No
	// handler ran.
	StatusBadID Status = -303

	// StatusBadArguments means a field failed schema validation. Nothing
	// past the first violation was decoded and no handler ran.
	StatusBadArguments Status = -304

	// StatusNoReply is an internal sentinel for fire-and-forget routines.
	// It never appears on the wire.
	StatusNoReply Status = -305
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadID:
		return "bad id"
	case StatusBadArguments:
		return "bad arguments"
	case StatusNoReply:
		return "no reply"
	}
	return "status " + strconv.Itoa(int(s))
}

// Error implements error so protocol failures can travel through regular
// error returns. StatusOK should never be used as an error.
func (s Status) Error() string { return "mint: " + s.String() }

// Error is an application-domain error code set by the server-side handler.
// It is carried as an explicit reply field and is meaningful only when the
// exchange succeeded and the protocol status is OK. Codes are negated
// POSIX errno values, matching what file-service handlers report.
type Error int32

const (
	ErrNotExist      = Error(-0x02) // ENOENT
	ErrIO            = Error(-0x05) // EIO
	ErrUnknownOp     = Error(-0x06) // ENXIO: no such async operation
	ErrBadHandle     = Error(-0x09) // EBADF
	ErrInvalid       = Error(-0x16) // EINVAL
	ErrNoSpace       = Error(-0x1c) // ENOSPC
	ErrUnimplemented = Error(-0x26) // ENOSYS
)

// Error description table
var errorDescriptions = map[Error]string{
	ErrNotExist:      "no such file",
	ErrIO:            "input/output error",
	ErrUnknownOp:     "no such async operation",
	ErrBadHandle:     "bad file handle",
	ErrInvalid:       "invalid argument",
	ErrNoSpace:       "no space available",
	ErrUnimplemented: "routine not implemented",
}

// Error prints the description of the error.
func (e Error) Error() string {
	desc := errorDescriptions[e]
	if desc != "" {
		return desc
	}
	return "mint errno " + strconv.Itoa(int(e))
}
