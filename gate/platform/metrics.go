package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var platformAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "gatekeeper_platform_api_duration_sec",
	Help: "Duration of moderation platform API calls",
}, []string{"method"})

var platformAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gatekeeper_platform_api_count",
	Help: "Number of moderation platform API calls, by method and HTTP status code",
}, []string{"method", "status"})
