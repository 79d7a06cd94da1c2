package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlySeries(n int, rain, prob float64) []HourlyPoint {
	start := time.Date(2025, 5, 20, 0, 0, 0, 0, Colombo)
	out := make([]HourlyPoint, n)
	for i := range out {
		out[i] = HourlyPoint{Time: start.Add(time.Duration(i) * time.Hour), Rainfall: rain, PrecipitationProbability: prob}
	}
	return out
}

func TestScoreWeather(t *testing.T) {
	t.Run("heavy rain with saturated forecast is critical", func(t *testing.T) {
		got := ScoreWeather(RiskInputs{Rainfall24h: 150, Rainfall72h: 150, Humidity: 95, HighPrecipHours: 20})

		assert.Equal(t, 100.0, got.Factors.Rainfall24h)
		assert.Equal(t, 75.0, got.Factors.Rainfall72h)
		assert.InDelta(t, 76.0, got.Factors.SoilSaturation, 1e-9)
		assert.InDelta(t, 83.333, got.Factors.Forecast, 1e-3)
		assert.InDelta(t, 84.78, got.Score, 0.01)
		assert.Equal(t, LevelCritical, got.Level)
		assert.Len(t, got.Recommendations, 4)
		assert.Equal(t, "Evacuate to higher ground immediately", got.Recommendations[0])
	})

	t.Run("dry and mild is low", func(t *testing.T) {
		got := ScoreWeather(RiskInputs{Humidity: 50})

		assert.InDelta(t, 8.0, got.Score, 1e-9)
		assert.Equal(t, LevelLow, got.Level)
		assert.Equal(t, []string{"Normal precautions advised", "Stay updated on weather forecasts"}, got.Recommendations)
	})

	t.Run("negative rainfall is treated as zero", func(t *testing.T) {
		got := ScoreWeather(RiskInputs{Rainfall24h: -20, Rainfall72h: -5})

		assert.Zero(t, got.Factors.Rainfall24h)
		assert.Zero(t, got.Factors.Rainfall72h)
		assert.Zero(t, got.Score)
	})

	t.Run("factors are clamped", func(t *testing.T) {
		got := ScoreWeather(RiskInputs{Rainfall24h: 1e6, Rainfall72h: 1e6, Humidity: 400, HighPrecipHours: 99})

		assert.Equal(t, 100.0, got.Factors.Rainfall24h)
		assert.Equal(t, 100.0, got.Factors.Rainfall72h)
		assert.Equal(t, 80.0, got.Factors.SoilSaturation)
		assert.Equal(t, 100.0, got.Factors.Forecast)
		assert.InDelta(t, 96.0, got.Score, 1e-9)
		assert.Zero(t, got.Factors.RiverLevels)
	})

	t.Run("NaN humidity does not poison the score", func(t *testing.T) {
		got := ScoreWeather(RiskInputs{Humidity: math.NaN()})
		assert.False(t, math.IsNaN(got.Score))
		assert.Equal(t, LevelLow, got.Level)
	})

	t.Run("deterministic", func(t *testing.T) {
		in := RiskInputs{Rainfall24h: 42, Rainfall72h: 88, Humidity: 77, HighPrecipHours: 5}
		assert.Equal(t, ScoreWeather(in), ScoreWeather(in))
	})
}

func TestWeatherRiskLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, LevelLow},
		{24.99, LevelLow},
		{25, LevelMedium},
		{49.99, LevelMedium},
		{50, LevelHigh},
		{74.99, LevelHigh},
		{75, LevelCritical},
		{100, LevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeatherRiskLevel(tt.score), "score %v", tt.score)
	}
}

func TestRiskInputsFromForecast(t *testing.T) {
	t.Run("windows over hourly series", func(t *testing.T) {
		hourly := hourlySeries(96, 1, 80)
		in := RiskInputsFromForecast(WeatherSample{Humidity: 60}, hourly)

		assert.Equal(t, 24.0, in.Rainfall24h)
		assert.Equal(t, 72.0, in.Rainfall72h)
		assert.Equal(t, 24, in.HighPrecipHours)
		assert.Equal(t, 60.0, in.Humidity)
	})

	t.Run("probability of exactly 70 does not count", func(t *testing.T) {
		in := RiskInputsFromForecast(WeatherSample{}, hourlySeries(24, 0, 70))
		assert.Zero(t, in.HighPrecipHours)
	})

	t.Run("short series", func(t *testing.T) {
		in := RiskInputsFromForecast(WeatherSample{}, hourlySeries(10, 2, 90))
		assert.Equal(t, 20.0, in.Rainfall24h)
		assert.Equal(t, 20.0, in.Rainfall72h)
		assert.Equal(t, 10, in.HighPrecipHours)
	})
}

func TestAssessWeather(t *testing.T) {
	hourly := hourlySeries(72, 5, 90)
	got := AssessWeather(WeatherSample{Humidity: 90}, hourly)

	// 24h=120 -> 100, 72h=360 -> 100, soil 72, forecast 100
	assert.InDelta(t, 30+25+14.4+25, got.Score, 1e-9)
	assert.Equal(t, LevelCritical, got.Level)
}

func TestRecommendations(t *testing.T) {
	assert.Len(t, Recommendations(LevelCritical), 4)
	assert.Len(t, Recommendations(LevelHigh), 4)
	assert.Len(t, Recommendations(LevelMedium), 3)
	assert.Len(t, Recommendations(LevelLow), 2)

	recs := Recommendations(LevelHigh)
	recs[0] = "mutated"
	assert.Equal(t, "Prepare for possible evacuation", Recommendations(LevelHigh)[0])
}

func TestParseRiskLevel(t *testing.T) {
	l, ok := ParseRiskLevel(" high ")
	require.True(t, ok)
	assert.Equal(t, LevelHigh, l)
	assert.True(t, l.IsElevated())

	_, ok = ParseRiskLevel("severe")
	assert.False(t, ok)
	assert.False(t, LevelMedium.IsElevated())
}

func TestClassifyCurrentConditions(t *testing.T) {
	tests := []struct {
		name     string
		rain     float64
		humidity float64
		want     RiskLevel
	}{
		{"extreme rain", 101, 10, LevelCritical},
		{"heavy rain and saturated air", 51, 91, LevelCritical},
		{"heavy rain", 51, 50, LevelHigh},
		{"moderate rain and humid", 26, 86, LevelHigh},
		{"moderate rain", 26, 50, LevelMedium},
		{"humid only", 0, 81, LevelMedium},
		{"boundaries are exclusive", 25, 80, LevelLow},
		{"calm", 0, 40, LevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCurrentConditions(tt.rain, tt.humidity))
		})
	}
}
