package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-level Prometheus metrics. Event dispatch carries
// its own metrics in the event package.
type Metrics struct {
	ContentCreated   prometheus.Counter
	ContentPublished prometheus.Counter
	ContentDeleted   prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
}

// New creates and registers all service-level metrics.
func New() *Metrics {
	return &Metrics{
		ContentCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_content_created_total",
			Help: "Total content items created",
		}),
		ContentPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_content_published_total",
			Help: "Total content items published",
		}),
		ContentDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inkwell_content_deleted_total",
			Help: "Total content items deleted",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_http_requests_total",
			Help: "HTTP requests by method and status class",
		}, []string{"method", "status"}),
	}
}
