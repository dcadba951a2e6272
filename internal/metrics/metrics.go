package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsum_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meetsum_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Signaling metrics
	SignalsDeposited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsum_signals_deposited_total",
			Help: "Total signaling envelopes deposited",
		},
		[]string{"kind"},
	)

	SignalsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsum_signals_fetched_total",
			Help: "Total signaling envelopes returned to pollers",
		},
		[]string{"kind"},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsum_signals_relayed_total",
			Help: "Total signaling envelopes relayed over the socket transport",
		},
		[]string{"kind"},
	)

	// Room and chat metrics
	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsum_room_joins_total",
			Help: "Total room joins",
		},
	)

	RoomLeaves = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meetsum_room_leaves_total",
			Help: "Total room leaves",
		},
	)

	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetsum_chat_messages_total",
			Help: "Total chat messages accepted",
		},
		[]string{"type"},
	)

	// Socket transport metrics
	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meetsum_socket_connections",
			Help: "Currently open socket connections",
		},
	)
)
