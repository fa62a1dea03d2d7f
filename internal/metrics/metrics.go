// Package metrics holds the Prometheus collectors of the service and the echo
// middleware that records HTTP traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Credential kinds for CredentialsIssued.
const (
	KindUpload   = "upload_url"
	KindDelivery = "delivery_url"
	KindPlayback = "playback_token"
)

// Results for CredentialsIssued.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgate_http_requests_total",
			Help: "HTTP requests handled, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// CredentialsIssued counts signed URLs and tokens by kind and result.
	CredentialsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgate_credentials_issued_total",
			Help: "Signed credentials requested, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// VideoPollAttempts counts asset status lookups made while waiting for ingestion.
	VideoPollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetgate_video_poll_attempts_total",
		Help: "Video asset status lookups made while waiting for readiness.",
	})

	// VideoPollTimeouts counts waits that exhausted their attempt budget.
	VideoPollTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assetgate_video_poll_timeouts_total",
		Help: "Video readiness waits that ran out of attempts.",
	})

	// TransactionsInitiated counts privileged initiations by mode and whether assets were disclosed.
	TransactionsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgate_transactions_initiated_total",
			Help: "Privileged transaction initiations, by mode and disclosure.",
		},
		[]string{"mode", "disclosed"},
	)
)

// Middleware records request count and latency. Routes are labelled by their
// registered template, so path parameters never reach label values.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
