package openmeteo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	colomboLat        = 6.9271
	colomboLon        = 79.8612
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const currentJSON = `{
	"temperature_2m": 29.4, "relative_humidity_2m": 88, "apparent_temperature": 34.1,
	"precipitation": 3.2, "rain": 3.1, "weather_code": 63, "cloud_cover": 90,
	"pressure_msl": 1008.2, "wind_speed_10m": 14.5, "wind_direction_10m": 225, "visibility": 8000
}`

// hourlyJSON builds n hourly points starting at midnight local time.
func hourlyJSON(n int) string {
	times := make([]string, n)
	nums := make([]string, n)
	codes := make([]string, n)
	start := time.Date(2025, 5, 20, 0, 0, 0, 0, domain.Colombo)
	for i := range n {
		times[i] = `"` + start.Add(time.Duration(i)*time.Hour).Format(hourLayout) + `"`
		nums[i] = "1.5"
		codes[i] = "61"
	}
	t, v, c := strings.Join(times, ","), strings.Join(nums, ","), strings.Join(codes, ",")
	return fmt.Sprintf(`{"time":[%s],"temperature_2m":[%s],"relative_humidity_2m":[%s],`+
		`"precipitation_probability":[%s],"precipitation":[%s],"rain":[%s],"weather_code":[%s],"wind_speed_10m":[%s]}`,
		t, v, v, v, v, v, c, v)
}

const dailyJSON = `{
	"time": ["2025-05-20","2025-05-21","2025-05-22"],
	"temperature_2m_max": [31, 30, 29],
	"temperature_2m_min": [24, 24, 23],
	"precipitation_sum": [12.5, null, 130],
	"precipitation_probability_max": [80, 40, 95],
	"weather_code": [63, 2, 65],
	"sunrise": ["2025-05-20T05:51","2025-05-21T05:51","2025-05-22T05:51"],
	"sunset": ["2025-05-20T18:18","2025-05-21T18:18","2025-05-22T18:19"]
}`

func serve(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchWeather_Success(t *testing.T) {
	body := fmt.Sprintf(`{"current":%s,"hourly":%s,"daily":%s}`, currentJSON, hourlyJSON(96), dailyJSON)
	srv := serve(t, body, func(r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "6.9271", q.Get("latitude"))
		assert.Equal(t, "79.8612", q.Get("longitude"))
		assert.Equal(t, "Asia/Colombo", q.Get("timezone"))
		assert.Equal(t, "72", q.Get("forecast_hours"))
		assert.Equal(t, "7", q.Get("forecast_days"))
		assert.Contains(t, q.Get("hourly"), "precipitation_probability")
		assert.Contains(t, q.Get("daily"), "precipitation_sum")
	})

	report, err := testClient(srv.URL).FetchWeather(context.Background(), colomboLat, colomboLon)
	require.NoError(t, err)

	assert.Equal(t, domain.Geo{Lat: colomboLat, Lon: colomboLon}, report.Location)
	assert.Equal(t, 29.4, report.Current.Temperature)
	assert.Equal(t, 88.0, report.Current.Humidity)
	assert.Equal(t, 3.1, report.Current.Rainfall)
	assert.Equal(t, "SW", report.Current.WindDirection)
	assert.Equal(t, 8.0, report.Current.Visibility)
	assert.Equal(t, "Moderate rain", report.Current.Description)

	require.Len(t, report.Hourly, domain.MaxHourlyPoints)
	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, domain.Colombo).Unix(), report.Hourly[0].Time.Unix())
	assert.Equal(t, 1.5, report.Hourly[0].Rainfall)
	assert.Equal(t, "Slight rain", report.Hourly[0].Description)

	require.Len(t, report.Daily, 3)
	assert.Equal(t, "2025-05-20", report.Daily[0].Date)
	assert.Zero(t, report.Daily[1].RainfallSum, "null precipitation counts as zero")
	assert.Equal(t, 130.0, report.Daily[2].RainfallSum)
	assert.Equal(t, "2025-05-22T05:51", report.Daily[2].Sunrise)
}

func TestClient_FetchWeather_DefaultVisibility(t *testing.T) {
	current := strings.Replace(currentJSON, `"visibility": 8000`, `"visibility": null`, 1)
	body := fmt.Sprintf(`{"current":%s,"hourly":%s,"daily":%s}`, current, hourlyJSON(2), dailyJSON)
	srv := serve(t, body, nil)

	report, err := testClient(srv.URL).FetchWeather(context.Background(), colomboLat, colomboLon)
	require.NoError(t, err)
	assert.Equal(t, 10.0, report.Current.Visibility)
}

func TestClient_FetchWeather_InvalidCoordinates(t *testing.T) {
	called := false
	srv := serve(t, `{}`, func(*http.Request) { called = true })

	_, err := testClient(srv.URL).FetchWeather(context.Background(), 91, 0)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.False(t, called, "no request for invalid coordinates")
}

func TestClient_FetchWeather_MalformedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing current", fmt.Sprintf(`{"hourly":%s,"daily":%s}`, hourlyJSON(3), dailyJSON)},
		{"missing hourly", fmt.Sprintf(`{"current":%s,"daily":%s}`, currentJSON, dailyJSON)},
		{"missing daily", fmt.Sprintf(`{"current":%s,"hourly":%s}`, currentJSON, hourlyJSON(3))},
		{"mismatched arrays", fmt.Sprintf(`{"current":%s,"hourly":%s,"daily":%s}`,
			currentJSON, strings.Replace(hourlyJSON(3), `"rain":[1.5,1.5,1.5]`, `"rain":[1.5]`, 1), dailyJSON)},
		{"bad hourly time", fmt.Sprintf(`{"current":%s,"hourly":%s,"daily":%s}`,
			currentJSON, strings.Replace(hourlyJSON(1), "2025-05-20T00:00", "yesterday", 1), dailyJSON)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.body, nil)
			_, err := testClient(srv.URL).FetchWeather(context.Background(), colomboLat, colomboLon)
			require.ErrorIs(t, err, domain.ErrMalformedForecast)
		})
	}
}

func TestClient_FetchWeather_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":true,"reason":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchWeather(context.Background(), colomboLat, colomboLon)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestClient_FetchCurrent_AcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		_, _ = io.WriteString(w, fmt.Sprintf(`{"current":%s}`, currentJSON))
	}))
	defer srv.Close()

	sample, err := testClient(srv.URL).FetchCurrent(context.Background(), colomboLat, colomboLon)
	require.NoError(t, err)
	assert.Equal(t, 3.1, sample.Rainfall)
}

func TestClient_FetchWeather_InvalidJSON(t *testing.T) {
	srv := serve(t, `{not json`, nil)

	_, err := testClient(srv.URL).FetchWeather(context.Background(), colomboLat, colomboLon)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_FetchWeather_ContextCancelled(t *testing.T) {
	srv := serve(t, `{}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).FetchWeather(ctx, colomboLat, colomboLon)
	require.Error(t, err)
}

func TestClient_FetchDailyForecast(t *testing.T) {
	srv := serve(t, fmt.Sprintf(`{"daily":%s}`, dailyJSON), func(r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("hourly"))
		assert.Empty(t, r.URL.Query().Get("current"))
	})

	daily, err := testClient(srv.URL).FetchDailyForecast(context.Background(), colomboLat, colomboLon)
	require.NoError(t, err)
	require.Len(t, daily, 3)
	assert.Equal(t, 12.5, daily[0].RainfallSum)
	assert.Equal(t, "Heavy rain", daily[2].Description)
}

func TestClient_FetchCurrent(t *testing.T) {
	srv := serve(t, fmt.Sprintf(`{"current":%s}`, currentJSON), func(r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("current"), "relative_humidity_2m")
	})

	sample, err := testClient(srv.URL).FetchCurrent(context.Background(), colomboLat, colomboLon)
	require.NoError(t, err)
	assert.Equal(t, 3.1, sample.Rainfall)
	assert.Equal(t, 1008.2, sample.Pressure)
}
