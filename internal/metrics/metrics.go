package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BorrowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_borrow_transitions_total",
			Help: "Borrow record transitions by kind (request, approve, reject, return, overdue).",
		},
		[]string{"transition"},
	)

	UserBans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_user_bans_total",
		Help: "Total number of user bans.",
	})

	UserUnbans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_user_unbans_total",
		Help: "Total number of user unbans.",
	})

	OverdueSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_overdue_swept_total",
		Help: "Borrow records moved to overdue by the sweeper.",
	})

	FinesCharged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_fines_total",
		Help: "Sum of fines charged on returns.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "library_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Transition labels.
const (
	TransitionRequest = "request"
	TransitionApprove = "approve"
	TransitionReject  = "reject"
	TransitionReturn  = "return"
	TransitionOverdue = "overdue"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
