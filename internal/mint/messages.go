package mint

// Protocol types. Each type here is the request or reply body for one
// routine. The wire package maps them to and from their fixed field
// layouts; see wire.Schema for the layouts themselves.
type (
	OpenRequest struct {
		Path  []byte    // File path, up to MaxPathLen bytes.
		Flags FileFlags // Open flags, interpreted by the handler.
	}
	OpenResponse struct {
		Handle Handle
	}

	ReadRequest struct {
		Handle   Handle
		Offset   uint64
		MaxBytes uint32
	}
	ReadResponse struct {
		Data  []byte // Up to MaxDataLen bytes.
		Count uint32 // Number of bytes read. Mirrors len(Data) on the wire.
	}

	WriteRequest struct {
		Handle Handle
		Offset uint64
		Data   []byte // Up to MaxDataLen bytes.
	}
	WriteResponse struct {
		Count uint32 // Number of bytes written.
	}

	SizeRequest struct {
		Handle Handle
	}
	SizeResponse struct {
		Size uint64
	}

	// CloseRequest is fire-and-forget: no reply is ever produced for it.
	CloseRequest struct {
		Handle Handle
	}

	ReadAsyncRequest struct {
		Handle   Handle
		Offset   uint64
		MaxBytes uint32
	}
	ReadAsyncResponse struct {
		Op OpID
	}

	PollAsyncRequest struct {
		Op OpID
	}
	PollAsyncResponse struct {
		Complete bool   // false while the operation is pending.
		Data     []byte // Result bytes; empty while pending.
		Count    uint32 // Number of result bytes.
	}
)

//
// Request / Response type implementations
//

func (*OpenRequest) mintRequest()        {}
func (*OpenResponse) mintResponse()      {}
func (*ReadRequest) mintRequest()        {}
func (*ReadResponse) mintResponse()      {}
func (*WriteRequest) mintRequest()       {}
func (*WriteResponse) mintResponse()     {}
func (*SizeRequest) mintRequest()        {}
func (*SizeResponse) mintResponse()      {}
func (*CloseRequest) mintRequest()       {}
func (*ReadAsyncRequest) mintRequest()   {}
func (*ReadAsyncResponse) mintResponse() {}
func (*PollAsyncRequest) mintRequest()   {}
func (*PollAsyncResponse) mintResponse() {}
