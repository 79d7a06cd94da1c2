package domain

import "math"

// AlertType is the severity of an external flood-monitor alert.
type AlertType string

const (
	AlertNormal   AlertType = "normal"
	AlertWarning  AlertType = "warning"
	AlertDanger   AlertType = "danger"
	AlertCritical AlertType = "critical"
)

// FloodAlert is an alert reported by the external flood monitor.
type FloodAlert struct {
	ID             string    `json:"id"`
	StationID      string    `json:"station_id"`
	StationName    string    `json:"station_name"`
	RiverName      string    `json:"river_name"`
	District       string    `json:"district"`
	AlertType      AlertType `json:"alert_type"`
	Level          float64   `json:"level"`
	Percentage     float64   `json:"percentage"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
	Timestamp      string    `json:"timestamp"`
	Resolved       bool      `json:"resolved"`
}

// MonitorStation is a gauge as reported by the external flood monitor.
// Level fields are optional upstream.
type MonitorStation struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	River        string   `json:"river"`
	Basin        string   `json:"basin"`
	District     string   `json:"district"`
	Lat          float64  `json:"latitude"`
	Lon          float64  `json:"longitude"`
	AlertLevel   string   `json:"alert_level,omitempty"`
	CurrentLevel *float64 `json:"current_level,omitempty"`
	NormalLevel  *float64 `json:"normal_level,omitempty"`
	WarningLevel *float64 `json:"warning_level,omitempty"`
	DangerLevel  *float64 `json:"danger_level,omitempty"`
	LastUpdated  string   `json:"last_updated,omitempty"`
}

// threshold reads an optional threshold; absent or zero means unbounded.
func threshold(v *float64) float64 {
	if v == nil || *v == 0 {
		return math.Inf(1)
	}
	return *v
}

func (s MonitorStation) level() float64 {
	if s.CurrentLevel == nil {
		return 0
	}
	return *s.CurrentLevel
}

// AtRisk reports a level at or above the danger threshold.
func (s MonitorStation) AtRisk() bool {
	return s.level() >= threshold(s.DangerLevel)
}

// InWarning reports a level between the warning and danger thresholds.
func (s MonitorStation) InWarning() bool {
	l := s.level()
	return l >= threshold(s.WarningLevel) && l < threshold(s.DangerLevel)
}

// AlertLevel classifies a level with the same ladder as CalculateStatus.
func AlertLevel(current, warning, danger float64) AlertType {
	switch {
	case current >= danger*1.2:
		return AlertCritical
	case current >= danger:
		return AlertDanger
	case current >= warning:
		return AlertWarning
	default:
		return AlertNormal
	}
}

// AlertDescription describes how far a level has risen from normal toward danger.
func AlertDescription(current, normal, danger float64) string {
	pct := (current - normal) / (danger - normal) * 100
	switch {
	case pct >= 120:
		return "CRITICAL: Water levels are dangerously high. Immediate evacuation recommended."
	case pct >= 100:
		return "DANGER: Water levels exceed danger threshold. Prepare for evacuation."
	case pct >= 80:
		return "WARNING: Water levels rising towards danger threshold. Stay alert."
	case pct >= 50:
		return "CAUTION: Water levels elevated. Monitor situation closely."
	default:
		return "NORMAL: Water levels within acceptable range."
	}
}

// AlertRecommendation returns the action text for an alert level, or "" for unknown levels.
func AlertRecommendation(level AlertType) string {
	switch level {
	case AlertCritical:
		return "IMMEDIATE ACTION: Evacuate low-lying areas immediately. Contact emergency services."
	case AlertDanger:
		return "URGENT: Prepare for evacuation. Gather emergency supplies. Monitor official updates."
	case AlertWarning:
		return "ALERT: Avoid flood-prone areas. Pack emergency bags. Monitor water levels."
	case AlertNormal:
		return "NORMAL: Continue monitoring weather and water levels."
	default:
		return ""
	}
}
