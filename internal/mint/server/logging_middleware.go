package server

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mintfs/mint/internal/mint"
)

// NewLoggingMiddleware returns a new logging middleware.
func NewLoggingMiddleware(l log.Logger) Middleware {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &loggingMiddleware{l: l}
}

type loggingMiddleware struct {
	l log.Logger
}

func (lm *loggingMiddleware) HandleRequest(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error) {
	level.Debug(lm.l).Log("msg", "starting request", "routine", hdr.Routine, "id", hdr.ID)
	start := time.Now()
	resp, err := next.Invoke(ctx, hdr, req)
	level.Debug(lm.l).Log("msg", "finished request", "routine", hdr.Routine, "id", hdr.ID, "duration", time.Since(start), "err", err)
	return resp, err
}
