package openmeteo

import (
	"fmt"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
)

// Open-Meteo hourly timestamps are local wall-clock time without seconds.
const hourLayout = "2006-01-02T15:04"

const defaultVisibilityMeters = 10000.0

// Open-Meteo API response types. JSON nulls inside arrays decode to zero.

type forecastResponse struct {
	Current *currentBlock `json:"current"`
	Hourly  *hourlyBlock  `json:"hourly"`
	Daily   *dailyBlock   `json:"daily"`
}

type currentBlock struct {
	Temperature      float64  `json:"temperature_2m"`
	Humidity         float64  `json:"relative_humidity_2m"`
	FeelsLike        float64  `json:"apparent_temperature"`
	Precipitation    float64  `json:"precipitation"`
	Rain             float64  `json:"rain"`
	WeatherCode      int      `json:"weather_code"`
	CloudCover       float64  `json:"cloud_cover"`
	Pressure         float64  `json:"pressure_msl"`
	WindSpeed        float64  `json:"wind_speed_10m"`
	WindDirection    float64  `json:"wind_direction_10m"`
	VisibilityMeters *float64 `json:"visibility"`
}

type hourlyBlock struct {
	Time                     []string  `json:"time"`
	Temperature              []float64 `json:"temperature_2m"`
	Humidity                 []float64 `json:"relative_humidity_2m"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	Rain                     []float64 `json:"rain"`
	WeatherCode              []int     `json:"weather_code"`
	WindSpeed                []float64 `json:"wind_speed_10m"`
}

type dailyBlock struct {
	Time                     []string  `json:"time"`
	TempMax                  []float64 `json:"temperature_2m_max"`
	TempMin                  []float64 `json:"temperature_2m_min"`
	PrecipitationSum         []float64 `json:"precipitation_sum"`
	PrecipitationProbability []float64 `json:"precipitation_probability_max"`
	WeatherCode              []int     `json:"weather_code"`
	Sunrise                  []string  `json:"sunrise"`
	Sunset                   []string  `json:"sunset"`
}

func (r forecastResponse) currentSample() (domain.WeatherSample, error) {
	c := r.Current
	if c == nil {
		return domain.WeatherSample{}, fmt.Errorf("%w: missing current block", domain.ErrMalformedForecast)
	}
	visibility := defaultVisibilityMeters
	if c.VisibilityMeters != nil && *c.VisibilityMeters > 0 {
		visibility = *c.VisibilityMeters
	}
	return domain.WeatherSample{
		Temperature:   c.Temperature,
		Humidity:      c.Humidity,
		Rainfall:      max(c.Rain, 0),
		WindSpeed:     c.WindSpeed,
		WindDegrees:   c.WindDirection,
		WindDirection: domain.WindDirection(c.WindDirection),
		Pressure:      c.Pressure,
		CloudCover:    c.CloudCover,
		Visibility:    visibility / 1000,
		FeelsLike:     c.FeelsLike,
		WeatherCode:   c.WeatherCode,
		Description:   domain.WeatherDescription(c.WeatherCode),
	}, nil
}

func (r forecastResponse) hourlyPoints() ([]domain.HourlyPoint, error) {
	h := r.Hourly
	if h == nil {
		return nil, fmt.Errorf("%w: missing hourly block", domain.ErrMalformedForecast)
	}
	n := len(h.Time)
	if err := sameLength("hourly", n, map[string]int{
		"temperature_2m":            len(h.Temperature),
		"relative_humidity_2m":      len(h.Humidity),
		"precipitation_probability": len(h.PrecipitationProbability),
		"rain":                      len(h.Rain),
		"weather_code":              len(h.WeatherCode),
		"wind_speed_10m":            len(h.WindSpeed),
	}); err != nil {
		return nil, err
	}

	n = min(n, domain.MaxHourlyPoints)
	out := make([]domain.HourlyPoint, n)
	for i := range n {
		t, err := time.ParseInLocation(hourLayout, h.Time[i], domain.Colombo)
		if err != nil {
			return nil, fmt.Errorf("%w: hourly time %q", domain.ErrMalformedForecast, h.Time[i])
		}
		out[i] = domain.HourlyPoint{
			Time:                     t,
			Temperature:              h.Temperature[i],
			Rainfall:                 max(h.Rain[i], 0),
			PrecipitationProbability: h.PrecipitationProbability[i],
			WindSpeed:                h.WindSpeed[i],
			Humidity:                 h.Humidity[i],
			WeatherCode:              h.WeatherCode[i],
			Description:              domain.WeatherDescription(h.WeatherCode[i]),
		}
	}
	return out, nil
}

func (r forecastResponse) dailyPoints() ([]domain.DailyPoint, error) {
	d := r.Daily
	if d == nil {
		return nil, fmt.Errorf("%w: missing daily block", domain.ErrMalformedForecast)
	}
	n := len(d.Time)
	if err := sameLength("daily", n, map[string]int{
		"temperature_2m_max":            len(d.TempMax),
		"temperature_2m_min":            len(d.TempMin),
		"precipitation_sum":             len(d.PrecipitationSum),
		"precipitation_probability_max": len(d.PrecipitationProbability),
		"weather_code":                  len(d.WeatherCode),
	}); err != nil {
		return nil, err
	}

	n = min(n, domain.MaxDailyPoints)
	out := make([]domain.DailyPoint, n)
	for i := range n {
		if _, err := time.Parse(time.DateOnly, d.Time[i]); err != nil {
			return nil, fmt.Errorf("%w: daily date %q", domain.ErrMalformedForecast, d.Time[i])
		}
		out[i] = domain.DailyPoint{
			Date:                     d.Time[i],
			TempMax:                  d.TempMax[i],
			TempMin:                  d.TempMin[i],
			RainfallSum:              max(d.PrecipitationSum[i], 0),
			PrecipitationProbability: d.PrecipitationProbability[i],
			Sunrise:                  at(d.Sunrise, i),
			Sunset:                   at(d.Sunset, i),
			WeatherCode:              d.WeatherCode[i],
			Description:              domain.WeatherDescription(d.WeatherCode[i]),
		}
	}
	return out, nil
}

func sameLength(block string, want int, fields map[string]int) error {
	for name, got := range fields {
		if got != want {
			return fmt.Errorf("%w: %s.%s has %d values, time has %d",
				domain.ErrMalformedForecast, block, name, got, want)
		}
	}
	return nil
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
