package domain

import (
	"math"
	"strings"
)

// RiskLevel is the categorical flood-risk bucket.
type RiskLevel string

const (
	LevelLow      RiskLevel = "LOW"
	LevelMedium   RiskLevel = "MEDIUM"
	LevelHigh     RiskLevel = "HIGH"
	LevelCritical RiskLevel = "CRITICAL"
)

// ParseRiskLevel accepts a level name in any case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch l := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelLow, LevelMedium, LevelHigh, LevelCritical:
		return l, true
	default:
		return "", false
	}
}

// IsElevated reports whether the level is HIGH or CRITICAL.
func (l RiskLevel) IsElevated() bool {
	return l == LevelHigh || l == LevelCritical
}

// Weights of the weather assessment. They sum to 1.0; the river factor is
// carried in RiskFactors but not weighted by this formula.
const (
	weightRainfall24h    = 0.30
	weightRainfall72h    = 0.25
	weightSoilSaturation = 0.20
	weightForecast       = 0.25

	rainfall24hFullScale  = 100.0 // mm in 24h that saturates the factor
	rainfall72hFullScale  = 200.0 // mm in 72h that saturates the factor
	soilSaturationCap     = 80.0
	highPrecipProbability = 70.0
	forecastWindowHours   = 24
	rainfallWindowHours   = 72
)

// RiskFactors is the per-factor breakdown of a weather assessment. Each value
// is bounded to [0,100] (soil saturation to [0,80]) before weighting.
type RiskFactors struct {
	Rainfall24h    float64 `json:"rainfall24h"`
	Rainfall72h    float64 `json:"rainfall72h"`
	SoilSaturation float64 `json:"soilSaturation"`
	RiverLevels    float64 `json:"riverLevels"`
	Forecast       float64 `json:"forecast"`
}

// FloodRiskAssessment is the output of the weather scoring formula.
type FloodRiskAssessment struct {
	Level           RiskLevel   `json:"level"`
	Score           float64     `json:"score"`
	Factors         RiskFactors `json:"factors"`
	Recommendations []string    `json:"recommendations"`
}

// RiskInputs are the raw measurements the weather formula consumes.
type RiskInputs struct {
	Rainfall24h     float64 // mm summed over the next 24 hourly points
	Rainfall72h     float64 // mm summed over the next 72 hourly points
	Humidity        float64 // percent, used as a soil-saturation proxy
	HighPrecipHours int     // hours in the next 24 with precipitation probability > 70
}

// RiskInputsFromForecast aggregates the hourly series into formula inputs.
func RiskInputsFromForecast(current WeatherSample, hourly []HourlyPoint) RiskInputs {
	in := RiskInputs{Humidity: current.Humidity}
	for i, h := range hourly {
		if i >= rainfallWindowHours {
			break
		}
		in.Rainfall72h += h.Rainfall
		if i < forecastWindowHours {
			in.Rainfall24h += h.Rainfall
			if h.PrecipitationProbability > highPrecipProbability {
				in.HighPrecipHours++
			}
		}
	}
	return in
}

// AssessWeather scores current conditions plus the hourly forecast.
func AssessWeather(current WeatherSample, hourly []HourlyPoint) FloodRiskAssessment {
	return ScoreWeather(RiskInputsFromForecast(current, hourly))
}

// ScoreWeather applies the weighted weather formula to pre-aggregated inputs.
// Identical inputs always produce identical output.
func ScoreWeather(in RiskInputs) FloodRiskAssessment {
	hours := min(max(in.HighPrecipHours, 0), forecastWindowHours)

	factors := RiskFactors{
		Rainfall24h:    clamp(nonNegative(in.Rainfall24h)/rainfall24hFullScale*100, 0, 100),
		Rainfall72h:    clamp(nonNegative(in.Rainfall72h)/rainfall72hFullScale*100, 0, 100),
		SoilSaturation: clamp(nonNegative(in.Humidity)/100*soilSaturationCap, 0, soilSaturationCap),
		Forecast:       float64(hours) / forecastWindowHours * 100,
	}

	score := factors.Rainfall24h*weightRainfall24h +
		factors.Rainfall72h*weightRainfall72h +
		factors.SoilSaturation*weightSoilSaturation +
		factors.Forecast*weightForecast
	score = clamp(score, 0, 100)

	level := WeatherRiskLevel(score)
	return FloodRiskAssessment{
		Level:           level,
		Score:           score,
		Factors:         factors,
		Recommendations: Recommendations(level),
	}
}

// WeatherRiskLevel maps a weather-assessment score to a level.
func WeatherRiskLevel(score float64) RiskLevel {
	switch {
	case score >= 75:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 25:
		return LevelMedium
	default:
		return LevelLow
	}
}

var recommendations = map[RiskLevel][]string{
	LevelCritical: {
		"Evacuate to higher ground immediately",
		"Avoid all flood-prone areas",
		"Keep emergency supplies ready",
		"Monitor official alerts continuously",
	},
	LevelHigh: {
		"Prepare for possible evacuation",
		"Move valuables to higher floors",
		"Stock up on emergency supplies",
		"Stay informed about weather updates",
	},
	LevelMedium: {
		"Monitor weather conditions closely",
		"Avoid low-lying areas during heavy rain",
		"Keep emergency contacts handy",
	},
	LevelLow: {
		"Normal precautions advised",
		"Stay updated on weather forecasts",
	},
}

// Recommendations returns a fresh copy of the ordered advice for a level.
func Recommendations(level RiskLevel) []string {
	src := recommendations[level]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
