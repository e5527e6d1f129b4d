// Package mint implements a typed request/reply protocol for remote file
// access. MINT stands for "Messages with INline Types." Every value in a
// message is preceded by a compact type descriptor, and a server validates
// each descriptor against the routine's schema before trusting the payload.
//
// mint can be used with any kind of transport that delivers at most one
// reply per request. Supported transports are an in-memory port pair and
// TCP. See the port package for both.
//
// mint carries seven routines: open, read, write, size, close, read_async
// and poll_async. close is fire-and-forget and never produces a reply.
package mint

// Request is a typed request body for one routine, sent from a client to
// the file server.
type Request interface {
	mintRequest()
}

// Response is a typed reply body for one routine, sent from the file server
// after processing a request.
type Response interface {
	mintResponse()
}

// NewEmptyRequest returns a zero request body for the given routine.
// Returns ErrUnimplemented if the routine is unknown.
func NewEmptyRequest(r Routine) (Request, error) {
	switch r {
	case RoutineOpen:
		return &OpenRequest{}, nil
	case RoutineRead:
		return &ReadRequest{}, nil
	case RoutineWrite:
		return &WriteRequest{}, nil
	case RoutineSize:
		return &SizeRequest{}, nil
	case RoutineClose:
		return &CloseRequest{}, nil
	case RoutineReadAsync:
		return &ReadAsyncRequest{}, nil
	case RoutinePollAsync:
		return &PollAsyncRequest{}, nil
	}
	return nil, ErrUnimplemented
}

// NewEmptyResponse returns a zero response body for the given routine.
// Returns ErrUnimplemented if the routine is unknown or fire-and-forget.
func NewEmptyResponse(r Routine) (Response, error) {
	switch r {
	case RoutineOpen:
		return &OpenResponse{}, nil
	case RoutineRead:
		return &ReadResponse{}, nil
	case RoutineWrite:
		return &WriteResponse{}, nil
	case RoutineSize:
		return &SizeResponse{}, nil
	case RoutineReadAsync:
		return &ReadAsyncResponse{}, nil
	case RoutinePollAsync:
		return &PollAsyncResponse{}, nil
	}
	return nil, ErrUnimplemented
}
