// Package server implements the mint dispatcher: it routes inbound
// messages to a Handler by numeric identifier, validating every field
// against the routine's schema before the handler runs.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mintfs/mint/internal/mint"
	"github.com/mintfs/mint/internal/mint/wire"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Handler processes requests from a transport. Handler is passed to Serve,
// which invokes methods as requests come in.
//
// A returned error becomes the explicit application-error field of the
// reply; the protocol status stays OK and output fields are zeroed. This
// deliberately corrects the inherited contract of suppressing the reply on
// handler failure, which silently dropped caller-visible errors.
type Handler interface {
	// Init is called at the start of serving a handler. Handlers shared
	// between several dispatchers must make Init idempotent.
	Init(context.Context) error

	// Close is called when closing a handler.
	Close() error

	Open(context.Context, *mint.RequestHeader, *mint.OpenRequest) (*mint.OpenResponse, error)
	Read(context.Context, *mint.RequestHeader, *mint.ReadRequest) (*mint.ReadResponse, error)
	Write(context.Context, *mint.RequestHeader, *mint.WriteRequest) (*mint.WriteResponse, error)
	Size(context.Context, *mint.RequestHeader, *mint.SizeRequest) (*mint.SizeResponse, error)

	// CloseFile is fire-and-forget: its outcome is never reported to the
	// caller and no reply is sent regardless of what it does.
	CloseFile(context.Context, *mint.RequestHeader, *mint.CloseRequest)

	// ReadAsync registers an asynchronous read and must return its
	// operation id immediately, without waiting for completion.
	ReadAsync(context.Context, *mint.RequestHeader, *mint.ReadAsyncRequest) (*mint.ReadAsyncResponse, error)

	// PollAsync reports the current state of an asynchronous read. It must
	// never block, whatever state the operation is in.
	PollAsync(context.Context, *mint.RequestHeader, *mint.PollAsyncRequest) (*mint.PollAsyncResponse, error)
}

type Options struct {
	// Transport is the source of requests and sink for replies. Serve takes
	// ownership and closes it on exit.
	Transport wire.Transport

	// Handler handles individual requests. The caller keeps ownership:
	// Serve never closes it, so one handler can back several dispatchers.
	Handler Handler

	// Optional middleware to preprocess requests with.
	Middleware []Middleware
}

// Server dispatches requests from a transport to a Handler, one message at
// a time: each inbound message is validated, handled and replied to before
// the next is received. The routine table is fixed at construction and
// safe to share.
type Server struct {
	log log.Logger
	o   Options

	mw      Middleware
	handler Invoker
}

// New creates a new Server. Call Serve to start it.
func New(l log.Logger, o Options) (*Server, error) {
	if o.Handler == nil {
		return nil, fmt.Errorf("Handler must be set")
	}
	if o.Transport == nil {
		return nil, fmt.Errorf("Transport must be set")
	}
	if l == nil {
		l = log.NewNopLogger()
	}
	return &Server{
		log:     l,
		o:       o,
		mw:      chainMiddleware(o.Middleware),
		handler: handlerInvoker(o.Handler),
	}, nil
}

// Serve reads and dispatches requests until the transport is drained or
// ctx is canceled. Serve should not be called again after it has exited.
func (s *Server) Serve(ctx context.Context) error {
	// Receiving is a non-cancelable call into the transport; a dedicated
	// goroutine closes it when ctx ends so Recv unblocks.
	exited := make(chan struct{})
	defer func() { <-exited }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer close(exited)
		<-ctx.Done()

		level.Info(s.log).Log("msg", "mint server exiting")
		if err := s.o.Transport.Close(); err != nil {
			level.Error(s.log).Log("msg", "error when closing transport", "err", err)
		}
	}()

	if err := s.o.Handler.Init(ctx); err != nil {
		return fmt.Errorf("handler init: %w", err)
	}

	for {
		if ctx.Err() != nil {
			level.Debug(s.log).Log("msg", "context canceled, breaking out of server read loop")
			return nil
		}

		msg, err := s.o.Transport.Recv()
		if errors.Is(err, io.EOF) {
			level.Debug(s.log).Log("msg", "got EOF from transport; exiting")
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			level.Error(s.log).Log("msg", "got error from transport; exiting", "err", err)
			return err
		}

		s.handleMessage(ctx, msg)
	}
}

// handleMessage runs one request end to end: route, validate, invoke,
// reply. Protocol failures never reach the handler.
func (s *Server) handleMessage(ctx context.Context, msg *wire.Message) {
	routine, ok := mint.RoutineForID(msg.ID)
	if !ok {
		level.Debug(s.log).Log("msg", "rejecting unroutable message", "id", msg.ID)
		s.sendReply(msg.LocalPort, wire.EncodeStatusReply(msg.Envelope, mint.StatusBadID))
		return
	}

	hdr, req, err := wire.DecodeRequest(msg)
	if err != nil {
		level.Debug(s.log).Log("msg", "rejecting malformed message", "routine", routine, "err", err)
		if !routine.OneWay() {
			s.sendReply(msg.LocalPort, wire.EncodeStatusReply(msg.Envelope, mint.StatusBadArguments))
		}
		return
	}

	resp, herr := s.mw.HandleRequest(ctx, &hdr, req, s.handler)
	if routine.OneWay() {
		// Fire-and-forget: no reply frame, whatever the handler did.
		return
	}

	reply, err := wire.EncodeReply(hdr, mint.StatusOK, errorForReply(herr), resp)
	if err != nil {
		level.Error(s.log).Log("msg", "failed to encode reply", "routine", routine, "err", err)
		return
	}
	s.sendReply(hdr.ReplyPort, reply)
}

// sendReply delivers a reply unless the request named no reply endpoint.
func (s *Server) sendReply(replyPort mint.Port, reply *wire.Message) {
	if replyPort == 0 {
		return
	}
	if err := s.o.Transport.Send(reply); err != nil {
		level.Error(s.log).Log("msg", "failed to write reply to transport", "err", err)
	}
}

// errorForReply maps a handler error onto the application error field.
func errorForReply(err error) mint.Error {
	if err == nil {
		return 0
	}

	// Check for common system-level errors.
	switch {
	case errors.Is(err, os.ErrNotExist):
		return mint.ErrNotExist
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return mint.ErrIO
	}

	var me mint.Error
	if errors.As(err, &me) {
		return me
	}
	return mint.ErrIO
}
