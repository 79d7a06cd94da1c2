package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
)

// Endpoint labels used in metrics and cache keys.
const (
	endpointFull    = "full"
	endpointDaily   = "daily"
	endpointCurrent = "current"
)

const timezone = "Asia/Colombo"

var (
	currentFields = []string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature", "precipitation", "rain",
		"weather_code", "cloud_cover", "pressure_msl", "wind_speed_10m", "wind_direction_10m", "visibility",
	}
	hourlyFields = []string{
		"temperature_2m", "relative_humidity_2m", "precipitation_probability", "precipitation",
		"rain", "weather_code", "wind_speed_10m",
	}
	dailyFields = []string{
		"temperature_2m_max", "temperature_2m_min", "precipitation_sum",
		"precipitation_probability_max", "weather_code", "sunrise", "sunset",
	}
)

// Client fetches forecasts from the Open-Meteo API. Requests are never retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client rooted at baseURL, e.g. https://api.open-meteo.com.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchWeather returns current conditions, up to 72 hourly points and up to 7
// daily points for a coordinate in a single request.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherReport, error) {
	params := url.Values{
		"current":        {strings.Join(currentFields, ",")},
		"hourly":         {strings.Join(hourlyFields, ",")},
		"daily":          {strings.Join(dailyFields, ",")},
		"forecast_hours": {strconv.Itoa(domain.MaxHourlyPoints)},
		"forecast_days":  {strconv.Itoa(domain.MaxDailyPoints)},
	}
	var resp forecastResponse
	if err := c.get(ctx, endpointFull, lat, lon, params, &resp); err != nil {
		return domain.WeatherReport{}, err
	}

	current, err := resp.currentSample()
	if err != nil {
		return domain.WeatherReport{}, c.invalid(endpointFull, err)
	}
	hourly, err := resp.hourlyPoints()
	if err != nil {
		return domain.WeatherReport{}, c.invalid(endpointFull, err)
	}
	daily, err := resp.dailyPoints()
	if err != nil {
		return domain.WeatherReport{}, c.invalid(endpointFull, err)
	}

	return domain.WeatherReport{
		Location:  domain.Geo{Lat: lat, Lon: lon},
		Current:   current,
		Hourly:    hourly,
		Daily:     daily,
		FetchedAt: domain.Now().UTC(),
	}, nil
}

// FetchDailyForecast returns up to 7 daily points for a coordinate.
func (c *Client) FetchDailyForecast(ctx context.Context, lat, lon float64) ([]domain.DailyPoint, error) {
	params := url.Values{
		"daily":         {strings.Join(dailyFields, ",")},
		"forecast_days": {strconv.Itoa(domain.MaxDailyPoints)},
	}
	var resp forecastResponse
	if err := c.get(ctx, endpointDaily, lat, lon, params, &resp); err != nil {
		return nil, err
	}
	daily, err := resp.dailyPoints()
	if err != nil {
		return nil, c.invalid(endpointDaily, err)
	}
	return daily, nil
}

// FetchCurrent returns current conditions for a coordinate.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (domain.WeatherSample, error) {
	params := url.Values{
		"current": {strings.Join(currentFields, ",")},
	}
	var resp forecastResponse
	if err := c.get(ctx, endpointCurrent, lat, lon, params, &resp); err != nil {
		return domain.WeatherSample{}, err
	}
	sample, err := resp.currentSample()
	if err != nil {
		return domain.WeatherSample{}, c.invalid(endpointCurrent, err)
	}
	return sample, nil
}

func (c *Client) invalid(endpoint string, err error) error {
	c.metrics.ForecastRequests.WithLabelValues(endpoint, "invalid").Inc()
	return err
}

func (c *Client) get(ctx context.Context, endpoint string, lat, lon float64, params url.Values, out any) error {
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return err
	}

	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("timezone", timezone)
	fullURL := c.baseURL + "/v1/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ForecastAPIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ForecastRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s forecast request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.ForecastRequests.WithLabelValues(endpoint, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ForecastRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("decode %s forecast: %w", endpoint, err)
	}

	c.metrics.ForecastRequests.WithLabelValues(endpoint, "success").Inc()
	c.logger.Debug("forecast fetched", "endpoint", endpoint, "lat", lat, "lon", lon)
	return nil
}
