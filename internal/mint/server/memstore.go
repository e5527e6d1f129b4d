package server

import (
	"context"
	"sync"

	"github.com/mintfs/mint/internal/mint"
	"go.uber.org/atomic"
)

// MemStore is a Handler backed by in-process memory. It is safe for use
// from multiple dispatchers at once, and keeps state across Init calls so
// one store can serve a sequence of connections.
type MemStore struct {
	mut     sync.RWMutex
	files   map[string]*memFile
	handles map[mint.Handle]*openFile
	ops     map[mint.OpID]*asyncOp

	nextHandle atomic.Uint64
	nextOp     atomic.Uint64

	// asyncGate, when set, delays asynchronous reads until the gate is
	// closed. Tests use it to observe operations mid-flight.
	asyncGate chan struct{}
}

var _ Handler = (*MemStore)(nil)

// maxFileSize caps how far a write may extend a file. Offsets are 64-bit
// on the wire, so without a cap a single write could demand an absurd
// allocation.
const maxFileSize = 1 << 30

type memFile struct {
	data []byte
}

type openFile struct {
	path  string
	file  *memFile
	flags mint.FileFlags
}

// asyncOp is a registered asynchronous read. Completion is recorded under
// the store mutex; once complete, the result is held until the owning
// handle closes so polls can repeat it.
type asyncOp struct {
	handle   mint.Handle
	complete bool
	data     []byte
	count    uint32
	err      error
}

// NewMemStore creates an in-memory store holding only the root entry.
func NewMemStore() *MemStore {
	return &MemStore{
		files: map[string]*memFile{
			"/": {},
		},
		handles: make(map[mint.Handle]*openFile),
		ops:     make(map[mint.OpID]*asyncOp),
	}
}

func (s *MemStore) Init(context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }

func (s *MemStore) Open(ctx context.Context, hdr *mint.RequestHeader, req *mint.OpenRequest) (*mint.OpenResponse, error) {
	path := string(req.Path)
	if path == "" {
		return nil, mint.ErrInvalid
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	f, ok := s.files[path]
	switch {
	case !ok && req.Flags&mint.OpenCreate == 0:
		return nil, mint.ErrNotExist
	case !ok:
		f = &memFile{}
		s.files[path] = f
	}
	if req.Flags&mint.OpenTruncate != 0 {
		f.data = nil
	}

	handle := mint.Handle(s.nextHandle.Inc())
	s.handles[handle] = &openFile{path: path, file: f, flags: req.Flags}
	return &mint.OpenResponse{Handle: handle}, nil
}

func (s *MemStore) Read(ctx context.Context, hdr *mint.RequestHeader, req *mint.ReadRequest) (*mint.ReadResponse, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	of, ok := s.handles[req.Handle]
	if !ok {
		return nil, mint.ErrBadHandle
	}
	data := readAt(of.file.data, req.Offset, req.MaxBytes)
	return &mint.ReadResponse{Data: data, Count: uint32(len(data))}, nil
}

func (s *MemStore) Write(ctx context.Context, hdr *mint.RequestHeader, req *mint.WriteRequest) (*mint.WriteResponse, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	of, ok := s.handles[req.Handle]
	if !ok {
		return nil, mint.ErrBadHandle
	}
	if !writable(of.flags) {
		return nil, mint.ErrInvalid
	}

	// The wire offset is an arbitrary 64-bit value; reject anything that
	// would wrap or grow the file past the cap before touching the slice.
	end := req.Offset + uint64(len(req.Data))
	if end < req.Offset || end > maxFileSize {
		return nil, mint.ErrNoSpace
	}
	if end > uint64(len(of.file.data)) {
		grown := make([]byte, end)
		copy(grown, of.file.data)
		of.file.data = grown
	}
	copy(of.file.data[req.Offset:end], req.Data)
	return &mint.WriteResponse{Count: uint32(len(req.Data))}, nil
}

func (s *MemStore) Size(ctx context.Context, hdr *mint.RequestHeader, req *mint.SizeRequest) (*mint.SizeResponse, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	of, ok := s.handles[req.Handle]
	if !ok {
		return nil, mint.ErrBadHandle
	}
	return &mint.SizeResponse{Size: uint64(len(of.file.data))}, nil
}

func (s *MemStore) CloseFile(ctx context.Context, hdr *mint.RequestHeader, req *mint.CloseRequest) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if _, ok := s.handles[req.Handle]; !ok {
		return
	}
	delete(s.handles, req.Handle)

	// Results of asynchronous reads live as long as the handle that
	// started them.
	for id, op := range s.ops {
		if op.handle == req.Handle {
			delete(s.ops, id)
		}
	}
}

func (s *MemStore) ReadAsync(ctx context.Context, hdr *mint.RequestHeader, req *mint.ReadAsyncRequest) (*mint.ReadAsyncResponse, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if _, ok := s.handles[req.Handle]; !ok {
		return nil, mint.ErrBadHandle
	}

	id := mint.OpID(s.nextOp.Inc())
	op := &asyncOp{handle: req.Handle}
	s.ops[id] = op

	gate := s.asyncGate
	go s.completeAsync(id, op, req.Offset, req.MaxBytes, gate)
	return &mint.ReadAsyncResponse{Op: id}, nil
}

func (s *MemStore) completeAsync(id mint.OpID, op *asyncOp, offset uint64, maxBytes uint32, gate chan struct{}) {
	if gate != nil {
		<-gate
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	// The owning handle may have closed while the read was pending; its
	// op entry is gone and the result is discarded.
	if _, ok := s.ops[id]; !ok {
		return
	}

	of, ok := s.handles[op.handle]
	if !ok {
		op.complete, op.err = true, mint.ErrBadHandle
		return
	}
	op.data = readAt(of.file.data, offset, maxBytes)
	op.count = uint32(len(op.data))
	op.complete = true
}

func (s *MemStore) PollAsync(ctx context.Context, hdr *mint.RequestHeader, req *mint.PollAsyncRequest) (*mint.PollAsyncResponse, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	op, ok := s.ops[req.Op]
	if !ok {
		return nil, mint.ErrUnknownOp
	}
	if !op.complete {
		return &mint.PollAsyncResponse{Complete: false}, nil
	}
	if op.err != nil {
		// A failed read still resolves: complete, zero bytes, error code.
		return &mint.PollAsyncResponse{Complete: true}, op.err
	}

	// Completed results are stable: polling again returns the same data.
	data := make([]byte, len(op.data))
	copy(data, op.data)
	return &mint.PollAsyncResponse{Complete: true, Data: data, Count: op.count}, nil
}

// readAt copies up to maxBytes of data starting at offset. Reads beyond
// the end of the file return an empty slice.
func readAt(data []byte, offset uint64, maxBytes uint32) []byte {
	if offset >= uint64(len(data)) {
		return nil
	}
	avail := uint64(len(data)) - offset
	n := uint64(maxBytes)
	if n > avail {
		n = avail
	}
	if n > mint.MaxDataLen {
		n = mint.MaxDataLen
	}
	out := make([]byte, n)
	copy(out, data[offset:offset+n])
	return out
}

func writable(flags mint.FileFlags) bool {
	mode := flags & 0x3
	return mode == mint.OpenWriteOnly || mode == mint.OpenReadWrite
}
