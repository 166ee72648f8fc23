package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relife_technical_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relife_technical_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	rankings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relife_technical_rankings_total",
		Help: "TOPSIS rankings by profile and outcome kind.",
	}, []string{"profile", "outcome"})

	rankingCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relife_technical_ranking_candidates",
		Help:    "Number of technologies per ranking request.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
	})

	pillarScores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relife_technical_pillar_scores_total",
		Help: "Single-pillar score requests by pillar and outcome kind.",
	}, []string{"pillar", "outcome"})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relife_technical_auth_failures_total",
		Help: "Rejected bearer tokens by route mode.",
	}, []string{"mode"})
)
