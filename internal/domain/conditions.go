package domain

import "time"

// ClassifyCurrentConditions is the quick rule applied to synced current
// weather. It looks only at instantaneous rain and humidity.
func ClassifyCurrentConditions(rainfall, humidity float64) RiskLevel {
	switch {
	case rainfall > 100 || (rainfall > 50 && humidity > 90):
		return LevelCritical
	case rainfall > 50 || (rainfall > 25 && humidity > 85):
		return LevelHigh
	case rainfall > 25 || humidity > 80:
		return LevelMedium
	default:
		return LevelLow
	}
}

// DistrictWeather is a synced current-conditions row for one district.
type DistrictWeather struct {
	District   string        `json:"district"`
	Location   Geo           `json:"location"`
	Sample     WeatherSample `json:"sample"`
	RiskLevel  RiskLevel     `json:"flood_risk_level"`
	RecordedAt time.Time     `json:"recorded_at"`
}
