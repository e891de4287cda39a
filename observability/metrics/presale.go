package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PresaleMetrics struct {
	operations    *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	contributions prometheus.Gauge
	totalRaised   prometheus.Gauge
	maxLiability  prometheus.Gauge
	poolPoints    prometheus.Gauge
	deadline      prometheus.Gauge
	claimedPoints prometheus.Counter
}

var (
	presaleOnce     sync.Once
	presaleRegistry *PresaleMetrics
)

// Presale returns the process-wide presale metrics registered with the
// default Prometheus registerer.
func Presale() *PresaleMetrics {
	presaleOnce.Do(func() {
		presaleRegistry = &PresaleMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "presale_operations_total",
				Help: "Count of committed ledger writes by operation.",
			}, []string{"operation"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "presale_rejections_total",
				Help: "Count of rejected ledger writes by operation and reason code.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "presale_operation_duration_seconds",
				Help:    "Time spent applying a ledger write including commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			contributions: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_contributions",
				Help: "Number of records in the contribution ledger.",
			}),
			totalRaised: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_total_raised_wei",
				Help: "Sum of admitted contribution amounts in base units.",
			}),
			maxLiability: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_max_liability_points",
				Help: "Worst-case point liability of every admitted record.",
			}),
			poolPoints: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_pool_points",
				Help: "Reward pool expressed in whole points.",
			}),
			deadline: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "presale_deadline_unix",
				Help: "Unix second at which the raise closes.",
			}),
			claimedPoints: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "presale_claimed_points_total",
				Help: "Points settled through claims.",
			}),
		}
		prometheus.MustRegister(
			presaleRegistry.operations,
			presaleRegistry.rejections,
			presaleRegistry.latency,
			presaleRegistry.contributions,
			presaleRegistry.totalRaised,
			presaleRegistry.maxLiability,
			presaleRegistry.poolPoints,
			presaleRegistry.deadline,
			presaleRegistry.claimedPoints,
		)
	})
	return presaleRegistry
}

func (m *PresaleMetrics) ObserveCommitted(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *PresaleMetrics) ObserveRejected(operation, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "internal"
	}
	m.rejections.WithLabelValues(operation, reason).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetLedger publishes the ledger-wide aggregates.
func (m *PresaleMetrics) SetLedger(contributions uint64, totalRaised, maxLiability, poolPoints *big.Int, deadline int64) {
	if m == nil {
		return
	}
	m.contributions.Set(float64(contributions))
	m.totalRaised.Set(bigToFloat(totalRaised))
	m.maxLiability.Set(bigToFloat(maxLiability))
	m.poolPoints.Set(bigToFloat(poolPoints))
	m.deadline.Set(float64(deadline))
}

func (m *PresaleMetrics) AddClaimedPoints(points *big.Int) {
	if m == nil || points == nil || points.Sign() <= 0 {
		return
	}
	m.claimedPoints.Add(bigToFloat(points))
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
