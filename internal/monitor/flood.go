package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Default poll intervals for the flood monitor.
const (
	DefaultFloodInterval = 5 * time.Minute
	AlertPushInterval    = 30 * time.Second
)

// FloodSource is the external flood monitor API.
type FloodSource interface {
	Stations(ctx context.Context) ([]domain.MonitorStation, error)
	Alerts(ctx context.Context) ([]domain.FloodAlert, error)
}

// ReadingSink stores gauge readings derived from monitor stations.
type ReadingSink interface {
	Record(ctx context.Context, readings []domain.RiverGaugeReading) ([]domain.RiverGaugeReading, error)
}

type floodData struct {
	alerts   []domain.FloodAlert
	stations []domain.MonitorStation
}

// Summary counts the monitor's current view.
type Summary struct {
	TotalAlerts       int        `json:"total_alerts"`
	CriticalAlerts    int        `json:"critical_alerts"`
	DangerAlerts      int        `json:"danger_alerts"`
	WarningAlerts     int        `json:"warning_alerts"`
	TotalStations     int        `json:"total_stations"`
	StationsAtRisk    int        `json:"stations_at_risk"`
	StationsWarning   int        `json:"stations_warning"`
	AffectedDistricts int        `json:"affected_districts"`
	LastUpdated       *time.Time `json:"last_updated"`
}

// FloodMonitor holds alerts and stations from the flood monitor API. A full
// poll replaces both lists; alert pushes are merged by id in between.
type FloodMonitor struct {
	full   *Poller[floodData]
	push   *Poller[[]domain.FloodAlert]
	sink   ReadingSink
	logger *slog.Logger

	mu          sync.RWMutex
	alerts      []domain.FloodAlert
	stations    []domain.MonitorStation
	lastUpdated time.Time
}

// NewFloodMonitor creates a monitor polling src every interval. A nil sink
// disables persisting station readings.
func NewFloodMonitor(src FloodSource, sink ReadingSink, sched *Scheduler, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *FloodMonitor {
	if interval <= 0 {
		interval = DefaultFloodInterval
	}
	m := &FloodMonitor{sink: sink, logger: logger}

	m.full = NewPoller[floodData]("flood_monitor", sched, interval, func(ctx context.Context) (floodData, error) {
		var d floodData
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			d.alerts, err = src.Alerts(gctx)
			return err
		})
		g.Go(func() (err error) {
			d.stations, err = src.Stations(gctx)
			return err
		})
		return d, g.Wait()
	}, metrics, logger)
	m.full.OnUpdate(m.replace)

	m.push = NewPoller[[]domain.FloodAlert]("flood_alerts", sched, AlertPushInterval, src.Alerts, metrics, logger)
	m.push.OnUpdate(func(_ context.Context, alerts []domain.FloodAlert) {
		for _, a := range alerts {
			m.ApplyAlert(a)
		}
	})
	return m
}

// Start begins both poll loops.
func (m *FloodMonitor) Start(ctx context.Context) {
	m.full.Start(ctx)
	m.push.Start(ctx)
}

// Stop halts polling; late responses are discarded.
func (m *FloodMonitor) Stop() {
	m.full.Stop()
	m.push.Stop()
}

// Refresh runs a full poll now.
func (m *FloodMonitor) Refresh(ctx context.Context) bool {
	return m.full.Refresh(ctx)
}

// Err reports the outcome of the latest full poll.
func (m *FloodMonitor) Err() error {
	return m.full.State().Err
}

func (m *FloodMonitor) replace(ctx context.Context, d floodData) {
	stations := ClassifyStations(d.stations)
	m.mu.Lock()
	m.alerts = CompleteAlerts(d.alerts, stations)
	m.stations = stations
	m.lastUpdated = m.full.State().UpdatedAt
	m.mu.Unlock()

	if m.sink == nil {
		return
	}
	readings := StationReadings(d.stations, m.lastUpdated)
	if len(readings) == 0 {
		return
	}
	if _, err := m.sink.Record(ctx, readings); err != nil {
		m.logger.Warn("sync flood monitor readings failed", "error", err)
	}
}

// ApplyAlert merges a pushed alert: an alert with a known id replaces it in
// place, a new one is prepended.
func (m *FloodMonitor) ApplyAlert(a domain.FloodAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a = CompleteAlerts([]domain.FloodAlert{a}, m.stations)[0]
	for i := range m.alerts {
		if m.alerts[i].ID == a.ID {
			next := make([]domain.FloodAlert, len(m.alerts))
			copy(next, m.alerts)
			next[i] = a
			m.alerts = next
			return
		}
	}
	m.alerts = append([]domain.FloodAlert{a}, m.alerts...)
}

// Alerts returns the held alerts.
func (m *FloodMonitor) Alerts() []domain.FloodAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts
}

// Stations returns the held stations.
func (m *FloodMonitor) Stations() []domain.MonitorStation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stations
}

// CriticalAlerts filters alerts of type critical.
func (m *FloodMonitor) CriticalAlerts() []domain.FloodAlert {
	return AlertsOfType(m.Alerts(), domain.AlertCritical)
}

// DangerAlerts filters alerts of type danger.
func (m *FloodMonitor) DangerAlerts() []domain.FloodAlert {
	return AlertsOfType(m.Alerts(), domain.AlertDanger)
}

// WarningAlerts filters alerts of type warning.
func (m *FloodMonitor) WarningAlerts() []domain.FloodAlert {
	return AlertsOfType(m.Alerts(), domain.AlertWarning)
}

// StationsAtRisk filters stations at or above danger level.
func (m *FloodMonitor) StationsAtRisk() []domain.MonitorStation {
	return filterStations(m.Stations(), domain.MonitorStation.AtRisk)
}

// StationsWithWarning filters stations between warning and danger level.
func (m *FloodMonitor) StationsWithWarning() []domain.MonitorStation {
	return filterStations(m.Stations(), domain.MonitorStation.InWarning)
}

// AffectedDistricts lists distinct alert districts in first-seen order.
func (m *FloodMonitor) AffectedDistricts() []string {
	return AffectedDistricts(m.Alerts())
}

// Summary counts the current view.
func (m *FloodMonitor) Summary() Summary {
	m.mu.RLock()
	alerts, stations, updated := m.alerts, m.stations, m.lastUpdated
	m.mu.RUnlock()

	s := Summary{
		TotalAlerts:       len(alerts),
		CriticalAlerts:    len(AlertsOfType(alerts, domain.AlertCritical)),
		DangerAlerts:      len(AlertsOfType(alerts, domain.AlertDanger)),
		WarningAlerts:     len(AlertsOfType(alerts, domain.AlertWarning)),
		TotalStations:     len(stations),
		StationsAtRisk:    len(filterStations(stations, domain.MonitorStation.AtRisk)),
		StationsWarning:   len(filterStations(stations, domain.MonitorStation.InWarning)),
		AffectedDistricts: len(AffectedDistricts(alerts)),
	}
	if !updated.IsZero() {
		s.LastUpdated = &updated
	}
	return s
}

// AlertsOfType returns the alerts with the given type.
func AlertsOfType(alerts []domain.FloodAlert, t domain.AlertType) []domain.FloodAlert {
	var out []domain.FloodAlert
	for _, a := range alerts {
		if a.AlertType == t {
			out = append(out, a)
		}
	}
	return out
}

// AffectedDistricts returns distinct non-empty alert districts in first-seen order.
func AffectedDistricts(alerts []domain.FloodAlert) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range alerts {
		if a.District == "" {
			continue
		}
		if _, ok := seen[a.District]; ok {
			continue
		}
		seen[a.District] = struct{}{}
		out = append(out, a.District)
	}
	return out
}

// ClassifyStations fills a missing AlertLevel on stations that report a
// current level with warning and danger thresholds. The input is not modified.
func ClassifyStations(stations []domain.MonitorStation) []domain.MonitorStation {
	if stations == nil {
		return nil
	}
	out := make([]domain.MonitorStation, len(stations))
	for i, st := range stations {
		if st.AlertLevel == "" && hasLevels(st) {
			st.AlertLevel = string(domain.AlertLevel(*st.CurrentLevel, *st.WarningLevel, *st.DangerLevel))
		}
		out[i] = st
	}
	return out
}

// CompleteAlerts fills blank alert fields from the reporting station: the
// type from its level ladder, the description from how far the level sits
// between normal and danger, and the recommendation from the type.
func CompleteAlerts(alerts []domain.FloodAlert, stations []domain.MonitorStation) []domain.FloodAlert {
	if alerts == nil {
		return nil
	}
	byID := make(map[string]domain.MonitorStation, len(stations))
	for _, st := range stations {
		byID[st.ID] = st
	}
	out := make([]domain.FloodAlert, len(alerts))
	for i, a := range alerts {
		if st, ok := byID[a.StationID]; ok && hasLevels(st) {
			if a.AlertType == "" {
				a.AlertType = domain.AlertLevel(*st.CurrentLevel, *st.WarningLevel, *st.DangerLevel)
			}
			if a.Description == "" && st.NormalLevel != nil && *st.DangerLevel > *st.NormalLevel {
				a.Description = domain.AlertDescription(*st.CurrentLevel, *st.NormalLevel, *st.DangerLevel)
			}
		}
		if a.Recommendation == "" {
			a.Recommendation = domain.AlertRecommendation(a.AlertType)
		}
		out[i] = a
	}
	return out
}

func hasLevels(st domain.MonitorStation) bool {
	return st.CurrentLevel != nil && st.WarningLevel != nil && st.DangerLevel != nil
}

func filterStations(stations []domain.MonitorStation, keep func(domain.MonitorStation) bool) []domain.MonitorStation {
	var out []domain.MonitorStation
	for _, s := range stations {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// StationReadings converts monitor stations that report a current level into
// gauge readings. Missing thresholds are stored as 0.
func StationReadings(stations []domain.MonitorStation, at time.Time) []domain.RiverGaugeReading {
	var out []domain.RiverGaugeReading
	for _, s := range stations {
		if s.CurrentLevel == nil {
			continue
		}
		current := *s.CurrentLevel
		warning, danger := deref(s.WarningLevel), deref(s.DangerLevel)
		status := domain.StatusNormal
		if warning > 0 && danger > 0 {
			status = domain.CalculateStatus(current, warning, danger)
		}
		out = append(out, domain.RiverGaugeReading{
			River:        s.River,
			Station:      s.Name,
			District:     s.District,
			Lat:          s.Lat,
			Lon:          s.Lon,
			CurrentLevel: current,
			WarningLevel: warning,
			DangerLevel:  danger,
			Status:       status,
			RecordedAt:   at.UTC(),
		})
	}
	return out
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
