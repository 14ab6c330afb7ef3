package dimse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics registers the association-engine gauges/counters/histograms
// exposed on the teacher's existing /metrics endpoint (promhttp.Handler
// against the default registerer in cmd/server/main.go).
var (
	ActiveAssociations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dicom",
		Subsystem: "association",
		Name:      "active",
		Help:      "Number of associations currently in the Established state, by role.",
	}, []string{"role"})

	NegotiationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dicom",
		Subsystem: "association",
		Name:      "negotiation_duration_seconds",
		Help:      "Time spent from A-ASSOCIATE-RQ receipt/send to a terminal negotiation outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"role", "outcome"})

	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dicom",
		Subsystem: "association",
		Name:      "admission_rejections_total",
		Help:      "Associations refused during admission policy checks, by diagnostic code.",
	}, []string{"diagnostic"})

	DIMSERequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dicom",
		Subsystem: "dimse",
		Name:      "requests_total",
		Help:      "DIMSE requests sent or received, by command and direction.",
	}, []string{"command", "direction"})
)
