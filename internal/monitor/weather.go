package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
)

// DefaultWeatherInterval is how often a WeatherWatcher refetches.
const DefaultWeatherInterval = 15 * time.Minute

// WeatherFetcher returns a full weather report for a coordinate.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherReport, error)
}

// WeatherView is a report with its assessment and the district nearest to
// the coordinate.
type WeatherView struct {
	District   string                     `json:"district"`
	Report     domain.WeatherReport       `json:"weather"`
	Assessment domain.FloodRiskAssessment `json:"flood_risk"`
}

// WeatherWatcher keeps the latest assessed weather for one coordinate.
type WeatherWatcher struct {
	poller *Poller[WeatherView]
}

// NewWeatherWatcher creates a watcher for lat/lon.
func NewWeatherWatcher(f WeatherFetcher, lat, lon float64, sched *Scheduler, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *WeatherWatcher {
	if interval <= 0 {
		interval = DefaultWeatherInterval
	}
	name := fmt.Sprintf("weather:%.4f,%.4f", lat, lon)
	fetch := func(ctx context.Context) (WeatherView, error) {
		return AssessLocation(ctx, f, lat, lon)
	}
	return &WeatherWatcher{poller: NewPoller[WeatherView](name, sched, interval, fetch, metrics, logger)}
}

// AssessLocation fetches a report and scores it with the weather formula.
func AssessLocation(ctx context.Context, f WeatherFetcher, lat, lon float64) (WeatherView, error) {
	report, err := f.FetchWeather(ctx, lat, lon)
	if err != nil {
		return WeatherView{}, err
	}
	return WeatherView{
		District:   domain.NearestDistrict(domain.Geo{Lat: lat, Lon: lon}).Name,
		Report:     report,
		Assessment: domain.AssessWeather(report.Current, report.Hourly),
	}, nil
}

// Start begins polling.
func (w *WeatherWatcher) Start(ctx context.Context) { w.poller.Start(ctx) }

// Stop halts polling.
func (w *WeatherWatcher) Stop() { w.poller.Stop() }

// Refresh fetches now.
func (w *WeatherWatcher) Refresh(ctx context.Context) bool { return w.poller.Refresh(ctx) }

// State returns the latest view. After a failed fetch the previous view is
// kept and Err is set.
func (w *WeatherWatcher) State() State[WeatherView] { return w.poller.State() }
