package domain

import (
	"fmt"
	"math"
	"time"
)

// Forecast horizons requested from the provider.
const (
	MaxHourlyPoints = 72
	MaxDailyPoints  = 7
)

// WeatherSample is a point-in-time atmospheric reading.
type WeatherSample struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Rainfall      float64 `json:"rainfall"`
	WindSpeed     float64 `json:"wind_speed"`
	WindDegrees   float64 `json:"wind_degrees"`
	WindDirection string  `json:"wind_direction"`
	Pressure      float64 `json:"pressure"`
	CloudCover    float64 `json:"cloud_cover"`
	Visibility    float64 `json:"visibility_km"`
	FeelsLike     float64 `json:"feels_like"`
	WeatherCode   int     `json:"weather_code"`
	Description   string  `json:"description"`
}

// HourlyPoint is one hour of a forecast series.
type HourlyPoint struct {
	Time                     time.Time `json:"time"`
	Temperature              float64   `json:"temperature"`
	Rainfall                 float64   `json:"rainfall"`
	PrecipitationProbability float64   `json:"precipitation_probability"`
	WindSpeed                float64   `json:"wind_speed"`
	Humidity                 float64   `json:"humidity"`
	WeatherCode              int       `json:"weather_code"`
	Description              string    `json:"description"`
}

// DailyPoint is one day of a forecast series. Date is YYYY-MM-DD local time.
type DailyPoint struct {
	Date                     string  `json:"date"`
	TempMax                  float64 `json:"temp_max"`
	TempMin                  float64 `json:"temp_min"`
	RainfallSum              float64 `json:"rainfall_sum"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	Sunrise                  string  `json:"sunrise,omitempty"`
	Sunset                   string  `json:"sunset,omitempty"`
	WeatherCode              int     `json:"weather_code"`
	Description              string  `json:"description"`
}

// WeatherReport bundles current conditions with hourly and daily projections
// for one coordinate. It is produced fresh per fetch and never mutated.
type WeatherReport struct {
	Location  Geo           `json:"location"`
	Current   WeatherSample `json:"current"`
	Hourly    []HourlyPoint `json:"hourly"`
	Daily     []DailyPoint  `json:"daily"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// ValidateCoordinates reports ErrInvalidCoordinates for out-of-range values.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, lon)
	}
	return nil
}

// weatherCodes maps WMO weather interpretation codes to descriptions.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

// WeatherDescription returns the human-readable label for a WMO code.
func WeatherDescription(code int) string {
	if d, ok := weatherCodes[code]; ok {
		return d
	}
	return "Unknown"
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// WindDirection converts degrees to a 16-point compass label, e.g. 225 -> "SW".
func WindDirection(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	idx := int(math.Floor(d/22.5+0.5)) % 16
	return compassPoints[idx]
}
