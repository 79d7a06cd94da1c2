package domain

import "time"

// RiverStatus is the severity derived from a gauge reading.
type RiverStatus string

const (
	StatusNormal   RiverStatus = "NORMAL"
	StatusRising   RiverStatus = "RISING"
	StatusWarning  RiverStatus = "WARNING"
	StatusDanger   RiverStatus = "DANGER"
	StatusFlooding RiverStatus = "FLOODING"
	StatusCritical RiverStatus = "CRITICAL"
)

// Severe reports DANGER and above. FLOODING is read as a synonym of CRITICAL.
func (s RiverStatus) Severe() bool {
	switch s {
	case StatusDanger, StatusFlooding, StatusCritical:
		return true
	default:
		return false
	}
}

// Station is static metadata for a monitored river gauge. Levels are meters.
type Station struct {
	River    string  `json:"river"`
	Name     string  `json:"station"`
	District string  `json:"district"`
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`
	Warning  float64 `json:"warning_level"`
	Danger   float64 `json:"danger_level"`
}

// Stations lists the known river gauges.
var Stations = []Station{
	{River: "Kelani River", Name: "Nagalagam Street", District: "Colombo", Lat: 6.9497, Lon: 79.8612, Warning: 5.0, Danger: 6.0},
	{River: "Kelani River", Name: "Hanwella", District: "Colombo", Lat: 6.9097, Lon: 80.0842, Warning: 8.0, Danger: 9.5},
	{River: "Kalu Ganga", Name: "Putupaula", District: "Kalutara", Lat: 6.5854, Lon: 80.0607, Warning: 4.5, Danger: 5.5},
	{River: "Kalu Ganga", Name: "Ratnapura", District: "Ratnapura", Lat: 6.6828, Lon: 80.3992, Warning: 6.0, Danger: 7.5},
	{River: "Nilwala Ganga", Name: "Pitabeddara", District: "Matara", Lat: 6.1549, Lon: 80.4550, Warning: 3.5, Danger: 4.5},
	{River: "Gin Ganga", Name: "Baddegama", District: "Galle", Lat: 6.1535, Lon: 80.1210, Warning: 4.0, Danger: 5.0},
	{River: "Mahaweli River", Name: "Peradeniya", District: "Kandy", Lat: 7.2706, Lon: 80.5937, Warning: 7.0, Danger: 8.5},
	{River: "Walawe Ganga", Name: "Thimbolketiya", District: "Ratnapura", Lat: 6.4828, Lon: 80.5992, Warning: 5.5, Danger: 6.5},
	{River: "Attanagalu Oya", Name: "Dunamale", District: "Gampaha", Lat: 7.0917, Lon: 79.9942, Warning: 3.0, Danger: 4.0},
	{River: "Maha Oya", Name: "Dewalegama", District: "Kurunegala", Lat: 7.4863, Lon: 80.3647, Warning: 4.0, Danger: 5.0},
}

// RiverGaugeReading is one observation at a station.
type RiverGaugeReading struct {
	ID           string      `json:"id"`
	River        string      `json:"river_name"`
	Station      string      `json:"station_name"`
	District     string      `json:"district"`
	Lat          float64     `json:"latitude"`
	Lon          float64     `json:"longitude"`
	CurrentLevel float64     `json:"current_level"`
	WarningLevel float64     `json:"warning_level"`
	DangerLevel  float64     `json:"danger_level"`
	Status       RiverStatus `json:"status"`
	RecordedAt   time.Time   `json:"recorded_at"`
}

// StationKey identifies the river/station pair of a reading.
func (r RiverGaugeReading) StationKey() string {
	return StationKey(r.River, r.Station)
}

// Levels returns the reading in the shape consumed by ScorePrediction.
func (r RiverGaugeReading) Levels() *RiverLevels {
	return &RiverLevels{Current: r.CurrentLevel, Warning: r.WarningLevel, Danger: r.DangerLevel}
}

// StationKey joins river and station names.
func StationKey(river, station string) string {
	return river + "|" + station
}

// CalculateStatus classifies a level against its thresholds, most severe first.
// Boundaries are inclusive.
func CalculateStatus(current, warning, danger float64) RiverStatus {
	switch {
	case current >= danger*1.2:
		return StatusCritical
	case current >= danger:
		return StatusDanger
	case current >= warning:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// LatestPerStation keeps the first reading seen for each station key. Input is
// expected newest first; output preserves input order.
func LatestPerStation(readings []RiverGaugeReading) []RiverGaugeReading {
	seen := make(map[string]struct{}, len(readings))
	out := make([]RiverGaugeReading, 0, len(readings))
	for _, r := range readings {
		k := r.StationKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// LatestPerDistrict keeps the first reading seen for each district. Readings
// without a district are skipped.
func LatestPerDistrict(readings []RiverGaugeReading) map[string]RiverGaugeReading {
	out := make(map[string]RiverGaugeReading)
	for _, r := range readings {
		if r.District == "" {
			continue
		}
		if _, ok := out[r.District]; !ok {
			out[r.District] = r
		}
	}
	return out
}
