package api

import (
	"net/http"

	"github.com/okian/touchline/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports point-in-time service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// OpsHandler serves the operational endpoints: metrics exposition and
// service statistics.
type OpsHandler struct {
	metrics http.Handler
	stats   StatsProvider
}

// NewOpsHandler creates an ops handler over the service metrics registry.
func NewOpsHandler(stats StatsProvider) *OpsHandler {
	return &OpsHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		stats:   stats,
	}
}

// HandleMetrics handles GET /healthz and GET /metrics. A successful scrape
// is the health signal.
func (h *OpsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleStats handles GET /stats.
func (h *OpsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
