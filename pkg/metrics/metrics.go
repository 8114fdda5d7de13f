// Package metrics exposes the validator's Prometheus instrumentation: cron
// job outcomes, cosign request outcomes, HTTP request counts, and the
// validator's current role as a gauge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CronJobRuns counts each scheduled job's completions, labeled by job
	// name and outcome ("ok" or "error").
	CronJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_cron_job_runs_total",
		Help: "Total number of cron job runs, by job and outcome.",
	}, []string{"job", "outcome"})

	// CosignRequests counts cosign attempts, labeled by outcome ("ok", a
	// snake_case name for each cosign sentinel error such as
	// "block_out_of_range", or "error" for anything else).
	CosignRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_cosign_requests_total",
		Help: "Total number of cosign requests, by outcome.",
	}, []string{"outcome"})

	// HTTPRequests counts served HTTP requests, labeled by route and
	// response status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_http_requests_total",
		Help: "Total number of HTTP requests served, by route and status.",
	}, []string{"route", "status"})

	// Role reports the validator's current role as a gauge: 0=Leader,
	// 1=Cosigner, 2=Idle.
	Role = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "validator_role",
		Help: "Current validator role (0=Leader, 1=Cosigner, 2=Idle).",
	})
)

// Handler returns the HTTP handler that serves the registered metrics in
// the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
