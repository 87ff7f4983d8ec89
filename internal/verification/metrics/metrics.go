package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for score recalculation.
type Metrics struct {
	Recalculations    *prometheus.CounterVec
	RecalculationTime prometheus.Histogram
	FinalScores       prometheus.Histogram
	StatusTransitions *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	DroppedReceipts   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recalculations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_score_recalculations_total",
			Help: "Score recalculations by outcome",
		}, []string{"outcome"}),
		RecalculationTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_score_recalculation_duration_seconds",
			Help:    "Duration of a full recalculation including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		FinalScores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_final_score",
			Help:    "Distribution of computed final scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 75, 80, 90, 100},
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_status_transitions_total",
			Help: "Account KYC status changes caused by recalculation",
		}, []string{"from", "to"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_score_cache_lookups_total",
			Help: "Score cache lookups by result",
		}, []string{"result"}),
		DroppedReceipts: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_receipts_dropped_total",
			Help: "Eligible receipts rejected by admission during recalculation",
		}),
	}
}

// ObserveRecalculation records a finished recalculation.
func (m *Metrics) ObserveRecalculation(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Recalculations.WithLabelValues(outcome).Inc()
	m.RecalculationTime.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveScore(final float64, dropped int) {
	if m == nil {
		return
	}
	m.FinalScores.Observe(final)
	m.DroppedReceipts.Add(float64(dropped))
}

func (m *Metrics) IncStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

// IncCacheLookup records a cache "hit", "miss" or "error".
func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
