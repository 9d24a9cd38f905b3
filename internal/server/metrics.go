package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseopt_jobs_total",
		Help: "Optimization jobs by method and outcome.",
	}, []string{"method", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulseopt_job_duration_seconds",
		Help:    "Wall-clock duration of optimization jobs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"method"})

	costEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulseopt_cost_evaluations_total",
		Help: "Cost evaluations performed by completed jobs.",
	}, []string{"method"})
)

func observeJob(method, status string, duration time.Duration, evals int) {
	if method == "" {
		method = "least-squares"
	}
	jobsTotal.WithLabelValues(method, status).Inc()
	jobDuration.WithLabelValues(method).Observe(duration.Seconds())
	if evals > 0 {
		costEvaluations.WithLabelValues(method).Add(float64(evals))
	}
}
