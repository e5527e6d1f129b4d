package server

import (
	"context"
	"time"

	"github.com/mintfs/mint/internal/mint"
	"github.com/prometheus/client_golang/prometheus"
)

// NewInstrumentMiddleware returns a middleware that records per-routine
// request counts and latencies. Metrics are registered against reg; pass
// nil to skip registration.
func NewInstrumentMiddleware(reg prometheus.Registerer) Middleware {
	mw := &instrumentMiddleware{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mint_server_requests_total",
			Help: "Total number of dispatched requests by routine and result.",
		}, []string{"routine", "result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mint_server_request_duration_seconds",
			Help:    "Time spent handling a request, by routine.",
			Buckets: prometheus.DefBuckets,
		}, []string{"routine"}),
	}
	if reg != nil {
		reg.MustRegister(mw.requestsTotal, mw.requestDuration)
	}
	return mw
}

type instrumentMiddleware struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func (im *instrumentMiddleware) HandleRequest(ctx context.Context, hdr *mint.RequestHeader, req mint.Request, next Invoker) (mint.Response, error) {
	start := time.Now()
	resp, err := next.Invoke(ctx, hdr, req)

	result := "ok"
	if err != nil {
		result = "error"
	}
	im.requestsTotal.WithLabelValues(hdr.Routine.String(), result).Inc()
	im.requestDuration.WithLabelValues(hdr.Routine.String()).Observe(time.Since(start).Seconds())
	return resp, err
}
