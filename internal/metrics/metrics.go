package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Replay exposes counters for the replay stages. A nil *Replay is a no-op.
type Replay struct {
	daysProcessed   *prometheus.CounterVec
	eventsApplied   *prometheus.CounterVec
	dayDuration     *prometheus.HistogramVec
	ledgerAddresses *prometheus.GaugeVec
	lastBlock       *prometheus.GaugeVec
	violations      prometheus.Gauge
	pointsTotal     prometheus.Gauge
}

// NewReplay registers the replay metrics on reg.
func NewReplay(reg prometheus.Registerer) *Replay {
	m := &Replay{
		daysProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_days_processed_total",
			Help: "Days fully replayed, by stage.",
		}, []string{"stage"}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_events_applied_total",
			Help: "Events applied to the ledger, by stage and kind.",
		}, []string{"stage", "kind"}),
		dayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "points_day_duration_seconds",
			Help:    "Wall time spent replaying one day.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		ledgerAddresses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "points_ledger_addresses",
			Help: "Addresses materialized in the ledger at the end of the last day.",
		}, []string{"stage"}),
		lastBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "points_last_block",
			Help: "End block of the last replayed day.",
		}, []string{"stage"}),
		violations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "points_integrity_violations",
			Help: "Addresses with a recorded integrity violation.",
		}),
		pointsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "points_cumulative_total",
			Help: "Sum of cumulative points across all addresses, as a float approximation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.daysProcessed,
			m.eventsApplied,
			m.dayDuration,
			m.ledgerAddresses,
			m.lastBlock,
			m.violations,
			m.pointsTotal,
		)
	}
	return m
}

func (m *Replay) ObserveDay(stage string, endBlock uint64, addresses int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.daysProcessed.WithLabelValues(stage).Inc()
	m.dayDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	m.ledgerAddresses.WithLabelValues(stage).Set(float64(addresses))
	m.lastBlock.WithLabelValues(stage).Set(float64(endBlock))
}

func (m *Replay) ObserveEvents(stage, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsApplied.WithLabelValues(stage, kind).Add(float64(n))
}

func (m *Replay) SetViolations(n int) {
	if m == nil {
		return
	}
	m.violations.Set(float64(n))
}

func (m *Replay) SetPointsTotal(total float64) {
	if m == nil {
		return
	}
	m.pointsTotal.Set(total)
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
