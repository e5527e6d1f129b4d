package server

import (
	"context"

	"github.com/mintfs/mint/internal/mint"
	"golang.org/x/time/rate"
)

// NewRateLimitMiddleware returns a middleware that throttles request
// handling with lim. Requests wait for a token before reaching the
// handler; a request whose context ends while waiting fails with the
// context's error.
func NewRateLimitMiddleware(lim *rate.Limiter) Middleware {
	return &rateLimitMiddleware{lim: lim}
}

type rateLimitMiddleware struct {
	lim *rate.Limiter
}

func (rm *rateLimitMiddleware) HandleRequest(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error) {
	if err := rm.lim.Wait(ctx); err != nil {
		return nil, err
	}
	return next.Invoke(ctx, hdr, req)
}
