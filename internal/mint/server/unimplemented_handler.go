package server

import (
	"context"

	"github.com/mintfs/mint/internal/mint"
)

// UnimplementedHandler implements Handler and returns ErrUnimplemented for
// all requests. Embed it to build partial handlers.
type UnimplementedHandler struct{}

// Static type check test
var _ Handler = UnimplementedHandler{}

func (UnimplementedHandler) Init(context.Context) error {
	return nil
}

func (UnimplementedHandler) Close() error {
	return nil
}

func (UnimplementedHandler) Open(context.Context, *mint.RequestHeader, *mint.OpenRequest) (*mint.OpenResponse, error) {
	return nil, mint.ErrUnimplemented
}

func (UnimplementedHandler) Read(context.Context, *mint.RequestHeader, *mint.ReadRequest) (*mint.ReadResponse, error) {
	return nil, mint.ErrUnimplemented
}

func (UnimplementedHandler) Write(context.Context, *mint.RequestHeader, *mint.WriteRequest) (*mint.WriteResponse, error) {
	return nil, mint.ErrUnimplemented
}

func (UnimplementedHandler) Size(context.Context, *mint.RequestHeader, *mint.SizeRequest) (*mint.SizeResponse, error) {
	return nil, mint.ErrUnimplemented
}

func (UnimplementedHandler) CloseFile(context.Context, *mint.RequestHeader, *mint.CloseRequest) {
	// no-op
}

func (UnimplementedHandler) ReadAsync(context.Context, *mint.RequestHeader, *mint.ReadAsyncRequest) (*mint.ReadAsyncResponse, error) {
	return nil, mint.ErrUnimplemented
}

func (UnimplementedHandler) PollAsync(context.Context, *mint.RequestHeader, *mint.PollAsyncRequest) (*mint.PollAsyncResponse, error) {
	return nil, mint.ErrUnimplemented
}
