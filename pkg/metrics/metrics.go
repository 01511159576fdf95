// Package metrics exposes Prometheus counters/gauges for a serial
// pub/sub node's traffic, plus an HTTP server to scrape them from.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/librescoot/serialpubsub/pkg/logging"
)

var (
	RxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serialpubsub_rx_frames_total",
		Help: "Total serial read chunks processed by GiveRxData without error.",
	})
	TxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serialpubsub_tx_frames_total",
		Help: "Total frames written to the serial line.",
	})
	AcksSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serialpubsub_acks_sent_total",
		Help: "Total ACK packets sent in response to a PUBLISH.",
	})
	PublishWaitSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serialpubsub_publish_wait_success_total",
		Help: "Total PublishWait calls that received a matching ACK.",
	})
	PublishWaitTimeout = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serialpubsub_publish_wait_timeout_total",
		Help: "Total PublishWait calls that timed out without an ACK.",
	})
	NoSubscribers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serialpubsub_no_subscribers_total",
		Help: "Total received packets whose topic had no subscribers.",
	})
	MalformedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serialpubsub_malformed_frames_total",
		Help: "Total frames rejected during decode, by status code.",
	}, []string{"status"})
	PendingAcks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "serialpubsub_pending_acks",
		Help: "Current number of goroutines blocked in PublishWait.",
	})
)

// StartHTTP serves /metrics on addr in its own goroutine and returns the
// *http.Server so the caller can Shutdown it.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server error", "error", err)
		}
	}()
	return srv
}

// Shutdown gracefully stops srv with a bounded timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// local mirrors the last-sampled pending-ack count for cheap logging
// without touching the Prometheus registry on the hot path.
var localPendingAcks int64

// SetPendingAcks records the current PublishWait waiter count.
func SetPendingAcks(n int) {
	PendingAcks.Set(float64(n))
	atomic.StoreInt64(&localPendingAcks, int64(n))
}

// PendingAcksSnapshot returns the last value passed to SetPendingAcks.
func PendingAcksSnapshot() int64 {
	return atomic.LoadInt64(&localPendingAcks)
}
