package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for receipt ingestion.
type Metrics struct {
	Uploads            *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	Deleted            prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_receipts_processed_total",
			Help: "Receipts run through extraction, by outcome status",
		}, []string{"status"}),
		ExtractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_receipt_extraction_duration_seconds",
			Help:    "Duration of extractor calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Deleted: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_receipts_deleted_total",
			Help: "Receipts deleted by their owners",
		}),
	}
}

// IncProcessed records the terminal status of an extraction.
func (m *Metrics) IncProcessed(status string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(status).Inc()
}

// ObserveExtraction records an extractor call started at start.
func (m *Metrics) ObserveExtraction(start time.Time) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncDeleted() {
	if m == nil {
		return
	}
	m.Deleted.Inc()
}
