package server

import (
	"context"
	"fmt"

	"github.com/mintfs/mint/internal/mint"
)

// Middleware preprocesses requests before they are given to a Handler.
type Middleware interface {
	// HandleRequest processes an individual request. Implementations should
	// call next.Invoke to continue handling the request.
	HandleRequest(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error)
}

// Invoker invokes the next stage of request handling, terminating at the
// Handler the dispatcher was built with.
type Invoker interface {
	Invoke(ctx context.Context, hdr *mint.RequestHeader, req mint.Request) (mint.Response, error)
}

// InvokerFunc implements Invoker.
type InvokerFunc func(ctx context.Context, hdr *mint.RequestHeader, req mint.Request) (mint.Response, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, hdr *mint.RequestHeader, req mint.Request) (mint.Response, error) {
	return f(ctx, hdr, req)
}

// FuncMiddleware implements Middleware.
type FuncMiddleware func(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error)

// HandleRequest implements Middleware.
func (f FuncMiddleware) HandleRequest(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error) {
	return f(ctx, hdr, req, next)
}

// chainMiddleware combines a set of middlewares into a single Middleware,
// invoked in order of the slice.
func chainMiddleware(mws []Middleware) Middleware {
	return FuncMiddleware(func(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error) {
		current := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			trailing := current
			current = InvokerFunc(func(ctx context.Context, hdr *mint.RequestHeader, req mint.Request) (mint.Response, error) {
				return mw.HandleRequest(ctx, hdr, req, trailing)
			})
		}
		return current.Invoke(ctx, hdr, req)
	})
}

// handlerInvoker converts a Handler into the terminal Invoker of the
// middleware chain, fanning the tagged request out to the typed method for
// its routine.
func handlerInvoker(h Handler) Invoker {
	return InvokerFunc(func(ctx context.Context, hdr *mint.RequestHeader, req mint.Request) (mint.Response, error) {
		// Each case returns an untyped nil when the handler produced no
		// response, so a nil concrete pointer never reaches the interface:
		// EncodeReply's resp == nil guard must see a truly nil Response.
		switch req := req.(type) {
		case *mint.OpenRequest:
			r, err := h.Open(ctx, hdr, req)
			if r == nil {
				return nil, err
			}
			return r, err
		case *mint.ReadRequest:
			r, err := h.Read(ctx, hdr, req)
			if r == nil {
				return nil, err
			}
			return r, err
		case *mint.WriteRequest:
			r, err := h.Write(ctx, hdr, req)
			if r == nil {
				return nil, err
			}
			return r, err
		case *mint.SizeRequest:
			r, err := h.Size(ctx, hdr, req)
			if r == nil {
				return nil, err
			}
			return r, err
		case *mint.CloseRequest:
			h.CloseFile(ctx, hdr, req)
			return nil, nil
		case *mint.ReadAsyncRequest:
			r, err := h.ReadAsync(ctx, hdr, req)
			if r == nil {
				return nil, err
			}
			return r, err
		case *mint.PollAsyncRequest:
			r, err := h.PollAsync(ctx, hdr, req)
			if r == nil {
				return nil, err
			}
			return r, err
		default:
			return nil, fmt.Errorf("unsupported request type %T", req)
		}
	})
}
