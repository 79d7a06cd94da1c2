package domain

import "time"

// ModelVersion tags every persisted prediction.
const ModelVersion = "v1.0"

// RiverLevels is a current reading with its station thresholds, in meters.
type RiverLevels struct {
	Current float64
	Warning float64
	Danger  float64
}

// PredictionInputs feed the district prediction formula.
type PredictionInputs struct {
	Rainfall       float64      // mm forecast for the day
	River          *RiverLevels // nil when the district has no gauge
	HistoricalRisk float64      // 0..1, 0 when unknown
}

// PredictionFactors is the points breakdown of a district prediction.
type PredictionFactors struct {
	Rainfall   float64 `json:"rainfall_contribution"`
	RiverLevel float64 `json:"river_level_contribution"`
	Historical float64 `json:"historical_contribution"`
	Terrain    float64 `json:"terrain_contribution"`
}

// PredictionScore is the result of ScorePrediction.
type PredictionScore struct {
	Level   RiskLevel
	Score   float64
	Factors PredictionFactors
}

// FloodPrediction is a district-day prediction as persisted.
type FloodPrediction struct {
	ID                 string            `json:"id"`
	District           string            `json:"district"`
	Latitude           float64           `json:"latitude"`
	Longitude          float64           `json:"longitude"`
	PredictionDate     string            `json:"prediction_date"`
	RiskLevel          RiskLevel         `json:"risk_level"`
	RiskScore          float64           `json:"risk_score"`
	RainfallForecast   float64           `json:"rainfall_forecast"`
	RiverLevelForecast *float64          `json:"river_level_forecast,omitempty"`
	ConfidenceScore    float64           `json:"confidence_score"`
	Factors            PredictionFactors `json:"factors"`
	ModelVersion       string            `json:"model_version"`
	CreatedAt          time.Time         `json:"created_at"`
}

// HighRiskArea is the projection returned by high-risk queries.
type HighRiskArea struct {
	District  string    `json:"district"`
	RiskLevel RiskLevel `json:"risk_level"`
	RiskScore float64   `json:"risk_score"`
}

// ScorePrediction applies the points-based district formula. Rainfall and
// river level contribute up to 40 points each, historical risk up to 20.
func ScorePrediction(in PredictionInputs) PredictionScore {
	var f PredictionFactors

	switch r := in.Rainfall; {
	case r > 100:
		f.Rainfall = 40
	case r > 50:
		f.Rainfall = 30
	case r > 25:
		f.Rainfall = 20
	case r > 10:
		f.Rainfall = 10
	}

	// A zero threshold or level is treated as absent data.
	if rv := in.River; rv != nil && rv.Current != 0 && rv.Warning != 0 && rv.Danger != 0 {
		switch {
		case rv.Current >= rv.Danger:
			f.RiverLevel = 40
		case rv.Current >= rv.Warning:
			f.RiverLevel = 30
		case rv.Current >= rv.Warning*0.8:
			f.RiverLevel = 20
		case rv.Current >= rv.Warning*0.6:
			f.RiverLevel = 10
		}
	}

	f.Historical = min(20, clamp(in.HistoricalRisk, 0, 1)*20)

	score := f.Rainfall + f.RiverLevel + f.Historical + f.Terrain
	return PredictionScore{
		Level:   PredictionRiskLevel(score),
		Score:   score,
		Factors: f,
	}
}

// PredictionRiskLevel maps a district-prediction score to a level.
func PredictionRiskLevel(score float64) RiskLevel {
	switch {
	case score >= 70:
		return LevelCritical
	case score >= 50:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ConfidenceScore draws a placeholder confidence in [0.75, 0.95).
func ConfidenceScore(r RandomSource) float64 {
	return 0.75 + r.Float64()*0.2
}
