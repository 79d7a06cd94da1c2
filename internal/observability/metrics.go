package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "floodrisk"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Forecast provider metrics.
	ForecastRequests    *prometheus.CounterVec   // labels: endpoint={full,daily,current}, outcome={success,error,invalid}
	ForecastCache       *prometheus.CounterVec   // labels: endpoint, result={hit,miss}
	ForecastAPIDuration *prometheus.HistogramVec // labels: endpoint

	// Batch prediction metrics.
	PredictionRuns        *prometheus.CounterVec // labels: outcome={success,partial,error}
	PredictionsGenerated  prometheus.Counter
	DistrictFailures      prometheus.Counter
	PredictionRunDuration prometheus.Histogram
	PredictionRunning     prometheus.Gauge

	GaugeReadingsWritten prometheus.Counter
	WeatherSyncs         *prometheus.CounterVec // labels: outcome={success,error}

	// Change feed and consumers.
	ChangeEventsPublished *prometheus.CounterVec // labels: table
	MonitorPolls          *prometheus.CounterVec // labels: poller, outcome={success,error,stale}
	RealtimeChannels      prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.ForecastRequests,
		m.ForecastCache,
		m.ForecastAPIDuration,
		m.PredictionRuns,
		m.PredictionsGenerated,
		m.DistrictFailures,
		m.PredictionRunDuration,
		m.PredictionRunning,
		m.GaugeReadingsWritten,
		m.WeatherSyncs,
		m.ChangeEventsPublished,
		m.MonitorPolls,
		m.RealtimeChannels,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		ForecastRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_requests_total",
			Help:      help("Open-Meteo requests by endpoint and outcome."),
		}, []string{"endpoint", "outcome"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_cache_total",
			Help:      help("Forecast cache lookups by endpoint and result."),
		}, []string{"endpoint", "result"}),
		ForecastAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_api_duration_seconds",
			Help:      help("Open-Meteo request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		PredictionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_runs_total",
			Help:      help("Batch prediction runs by outcome."),
		}, []string{"outcome"}),
		PredictionsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_generated_total",
			Help:      help("District-day predictions persisted."),
		}),
		DistrictFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "district_failures_total",
			Help:      help("Districts skipped in a batch run because of an error."),
		}),
		PredictionRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_run_duration_seconds",
			Help:      help("Duration of a complete batch prediction run."),
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PredictionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prediction_running",
			Help:      help("1 while a batch prediction run is in progress."),
		}),
		GaugeReadingsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gauge_readings_written_total",
			Help:      help("River gauge readings persisted."),
		}),
		WeatherSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_syncs_total",
			Help:      help("District current-conditions syncs by outcome."),
		}, []string{"outcome"}),
		ChangeEventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_published_total",
			Help:      help("Change events published by table."),
		}, []string{"table"}),
		MonitorPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_polls_total",
			Help:      help("Consumer poll cycles by poller and outcome."),
		}, []string{"poller", "outcome"}),
		RealtimeChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_channels",
			Help:      help("Open realtime transport channels."),
		}),
	}
}
