package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/monitor"
	"github.com/resq-unified/flood-risk-service/internal/predictor"
	"github.com/resq-unified/flood-risk-service/internal/realtime"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30

	// runWriteTimeout replaces the server write deadline for on-demand runs,
	// which fetch 25 forecasts before responding.
	runWriteTimeout = 2 * time.Minute
)

// WeatherFetcher returns a full report for a coordinate.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherReport, error)
}

// PredictionService runs and queries district predictions.
type PredictionService interface {
	Run(ctx context.Context) (predictor.Result, error)
	Predictions(ctx context.Context, district string) ([]domain.FloodPrediction, error)
	HighRiskAreas(ctx context.Context) ([]domain.HighRiskArea, error)
}

// RiverService reads gauge readings.
type RiverService interface {
	Latest(ctx context.Context, district string) ([]domain.RiverGaugeReading, error)
	History(ctx context.Context, river, station string, window time.Duration) ([]domain.RiverGaugeReading, error)
}

// SyncedWeather reads the newest synced conditions per district.
type SyncedWeather interface {
	LatestWeather(ctx context.Context) ([]domain.DistrictWeather, error)
}

// WatchedWeather is the polled assessment for the watched district.
type WatchedWeather interface {
	State() monitor.State[monitor.WeatherView]
}

// MonitorView is the flood monitor's current state.
type MonitorView interface {
	Summary() monitor.Summary
	AffectedDistricts() []string
	Err() error
}

// ChangeFeed subscribes to table change events.
type ChangeFeed interface {
	Subscribe(table string, f realtime.Filter, cb realtime.Callback) (func(), error)
}

// API holds the dependencies behind /api/v1. Nil fields leave their routes
// unregistered.
type API struct {
	Weather     WeatherFetcher
	Watched     WatchedWeather
	Synced      SyncedWeather
	Predictions PredictionService
	Rivers      RiverService
	Monitor     MonitorView
	Changes     ChangeFeed
}

func (s *Server) registerAPI(mux *http.ServeMux) {
	if s.api.Weather != nil {
		mux.HandleFunc("GET /api/v1/risk", s.handleRisk)
	}
	if s.api.Watched != nil {
		mux.HandleFunc("GET /api/v1/risk/watched", s.handleWatched)
	}
	if s.api.Synced != nil {
		mux.HandleFunc("GET /api/v1/weather", s.handleSyncedWeather)
	}
	if s.api.Predictions != nil {
		mux.HandleFunc("GET /api/v1/predictions", s.handlePredictions)
		mux.HandleFunc("GET /api/v1/predictions/high-risk", s.handleHighRisk)
		mux.HandleFunc("POST /api/v1/predictions/run", s.handleRun)
	}
	if s.api.Rivers != nil {
		mux.HandleFunc("GET /api/v1/rivers", s.handleRivers)
		mux.HandleFunc("GET /api/v1/rivers/history", s.handleRiverHistory)
	}
	if s.api.Monitor != nil {
		mux.HandleFunc("GET /api/v1/monitor/summary", s.handleMonitorSummary)
	}
	if s.api.Changes != nil {
		mux.HandleFunc("GET /api/v1/changes/{table}", s.handleChanges)
	}
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
		return
	}
	view, err := monitor.AssessLocation(r.Context(), s.api.Weather, lat, lon)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleWatched serves the last good assessment with the latest poll error.
func (s *Server) handleWatched(w http.ResponseWriter, _ *http.Request) {
	st := s.api.Watched.State()
	if !st.HasValue {
		msg := "watched weather not yet available"
		if st.Err != nil {
			msg = st.Err.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}
	body := map[string]any{
		"district":   st.Value.District,
		"weather":    st.Value.Report,
		"flood_risk": st.Value.Assessment,
		"updated_at": st.UpdatedAt,
	}
	if st.Err != nil {
		body["error"] = st.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSyncedWeather(w http.ResponseWriter, r *http.Request) {
	var district string
	if q := r.URL.Query().Get("district"); q != "" {
		d, err := domain.LookupDistrict(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		district = d.Name
	}
	rows, err := s.api.Synced.LatestWeather(r.Context())
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	out := make([]domain.DistrictWeather, 0, len(rows))
	for _, row := range rows {
		if district == "" || row.District == district {
			out = append(out, row)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "weather": out})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	var level domain.RiskLevel
	if q := r.URL.Query().Get("level"); q != "" {
		l, ok := domain.ParseRiskLevel(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "level must be one of LOW, MEDIUM, HIGH, CRITICAL")
			return
		}
		level = l
	}
	preds, err := s.api.Predictions.Predictions(r.Context(), r.URL.Query().Get("district"))
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	if level != "" {
		preds = slices.DeleteFunc(slices.Clone(preds), func(p domain.FloodPrediction) bool {
			return p.RiskLevel != level
		})
	}
	if preds == nil {
		preds = []domain.FloodPrediction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(preds), "predictions": preds})
}

func (s *Server) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	areas, err := s.api.Predictions.HighRiskAreas(r.Context())
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	if areas == nil {
		areas = []domain.HighRiskArea{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(areas), "areas": areas})
}

type runFailure struct {
	District string `json:"district"`
	Error    string `json:"error"`
}

type runResponse struct {
	Predictions int          `json:"predictions"`
	Failed      []runFailure `json:"failed_districts"`
	DurationMS  int64        `json:"duration_ms"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(runWriteTimeout))

	// Runs are not cancelled by client disconnects.
	res, err := s.api.Predictions.Run(context.WithoutCancel(r.Context()))
	if errors.Is(err, predictor.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	resp := runResponse{
		Predictions: len(res.Predictions),
		Failed:      make([]runFailure, len(res.Failures)),
		DurationMS:  res.Duration.Milliseconds(),
	}
	for i, f := range res.Failures {
		resp.Failed[i] = runFailure{District: f.District, Error: f.Err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRivers(w http.ResponseWriter, r *http.Request) {
	district := r.URL.Query().Get("district")
	if district != "" {
		d, err := domain.LookupDistrict(district)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		district = d.Name
	}
	readings, err := s.api.Rivers.Latest(r.Context(), district)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	if readings == nil {
		readings = []domain.RiverGaugeReading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(readings), "readings": readings})
}

func (s *Server) handleRiverHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	river, station := q.Get("river"), q.Get("station")
	if river == "" || station == "" {
		writeError(w, http.StatusBadRequest, "river and station are required")
		return
	}
	hours := defaultHistoryHours
	if h := q.Get("hours"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil || n < 1 || n > maxHistoryHours {
			writeError(w, http.StatusBadRequest, "hours must be between 1 and 720")
			return
		}
		hours = n
	}
	readings, err := s.api.Rivers.History(r.Context(), river, station, time.Duration(hours)*time.Hour)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	if readings == nil {
		readings = []domain.RiverGaugeReading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"river":    river,
		"station":  station,
		"hours":    hours,
		"readings": readings,
	})
}

func (s *Server) handleMonitorSummary(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"summary":            s.api.Monitor.Summary(),
		"affected_districts": s.api.Monitor.AffectedDistricts(),
	}
	if err := s.api.Monitor.Err(); err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// writeUpstreamError maps provider failures: bad input is 400, everything else 502.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrInvalidCoordinates) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Warn("upstream request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadGateway, "weather provider unavailable")
}

func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownDistrict):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMalformedForecast):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
