package realtime

import "github.com/resq-unified/flood-risk-service/internal/domain"

// ElevatedPredictions passes flood_predictions events with a HIGH or CRITICAL level.
var ElevatedPredictions = Filter{
	Name: "risk_level=in.(HIGH,CRITICAL)",
	Match: func(ev domain.ChangeEvent) bool {
		var p domain.FloodPrediction
		return ev.Decode(&p) == nil && p.RiskLevel.IsElevated()
	},
}

// SevereRiverLevels passes river_levels events at DANGER status or above.
var SevereRiverLevels = Filter{
	Name: "status=in.(DANGER,FLOODING,CRITICAL)",
	Match: func(ev domain.ChangeEvent) bool {
		var r domain.RiverGaugeReading
		return ev.Decode(&r) == nil && r.Status.Severe()
	},
}

// ElevatedWeather passes weather_data events with a HIGH or CRITICAL level.
var ElevatedWeather = Filter{
	Name: "flood_risk_level=in.(HIGH,CRITICAL)",
	Match: func(ev domain.ChangeEvent) bool {
		var w domain.DistrictWeather
		return ev.Decode(&w) == nil && w.RiskLevel.IsElevated()
	},
}

// ElevatedFilter returns the elevated-severity filter for a table.
func ElevatedFilter(table string) (Filter, bool) {
	switch table {
	case domain.TableFloodPredictions:
		return ElevatedPredictions, true
	case domain.TableRiverLevels:
		return SevereRiverLevels, true
	case domain.TableWeatherData:
		return ElevatedWeather, true
	default:
		return Filter{}, false
	}
}
