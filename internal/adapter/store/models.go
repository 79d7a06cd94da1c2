package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	"gorm.io/gorm"
)

// riverLevelRow maps the river_levels table.
type riverLevelRow struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	RiverName    string    `gorm:"index:idx_river_station;type:varchar(120);not null"`
	StationName  string    `gorm:"index:idx_river_station;type:varchar(120);not null"`
	District     string    `gorm:"index;type:varchar(60)"`
	Latitude     float64   `gorm:"not null"`
	Longitude    float64   `gorm:"not null"`
	CurrentLevel float64   `gorm:"not null"`
	WarningLevel float64   `gorm:"not null"`
	DangerLevel  float64   `gorm:"not null"`
	Status       string    `gorm:"type:varchar(20);not null"`
	RecordedAt   time.Time `gorm:"index;not null"`
	CreatedAt    time.Time
}

func (riverLevelRow) TableName() string { return domain.TableRiverLevels }

func (r *riverLevelRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func riverRowFromDomain(r domain.RiverGaugeReading) riverLevelRow {
	return riverLevelRow{
		ID:           r.ID,
		RiverName:    r.River,
		StationName:  r.Station,
		District:     r.District,
		Latitude:     r.Lat,
		Longitude:    r.Lon,
		CurrentLevel: r.CurrentLevel,
		WarningLevel: r.WarningLevel,
		DangerLevel:  r.DangerLevel,
		Status:       string(r.Status),
		RecordedAt:   r.RecordedAt.UTC(),
	}
}

func (r riverLevelRow) toDomain() domain.RiverGaugeReading {
	return domain.RiverGaugeReading{
		ID:           r.ID,
		River:        r.RiverName,
		Station:      r.StationName,
		District:     r.District,
		Lat:          r.Latitude,
		Lon:          r.Longitude,
		CurrentLevel: r.CurrentLevel,
		WarningLevel: r.WarningLevel,
		DangerLevel:  r.DangerLevel,
		Status:       domain.RiverStatus(r.Status),
		RecordedAt:   r.RecordedAt.UTC(),
	}
}

// floodPredictionRow maps the flood_predictions table. Factors are stored as
// JSON text.
type floodPredictionRow struct {
	ID                 string   `gorm:"type:char(36);primaryKey"`
	District           string   `gorm:"index:idx_district_date;type:varchar(60);not null"`
	Latitude           float64  `gorm:"not null"`
	Longitude          float64  `gorm:"not null"`
	PredictionDate     string   `gorm:"index:idx_district_date;index;type:char(10);not null"`
	RiskLevel          string   `gorm:"type:varchar(10);not null"`
	RiskScore          float64  `gorm:"not null"`
	RainfallForecast   float64  `gorm:"not null"`
	RiverLevelForecast *float64 `gorm:""`
	ConfidenceScore    float64  `gorm:"not null"`
	Factors            string   `gorm:"type:text;not null"`
	ModelVersion       string   `gorm:"type:varchar(20);not null"`
	CreatedAt          time.Time
}

func (floodPredictionRow) TableName() string { return domain.TableFloodPredictions }

func (r *floodPredictionRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func predictionRowFromDomain(p domain.FloodPrediction) (floodPredictionRow, error) {
	factors, err := json.Marshal(p.Factors)
	if err != nil {
		return floodPredictionRow{}, fmt.Errorf("encode factors: %w", err)
	}
	return floodPredictionRow{
		ID:                 p.ID,
		District:           p.District,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		PredictionDate:     p.PredictionDate,
		RiskLevel:          string(p.RiskLevel),
		RiskScore:          p.RiskScore,
		RainfallForecast:   p.RainfallForecast,
		RiverLevelForecast: p.RiverLevelForecast,
		ConfidenceScore:    p.ConfidenceScore,
		Factors:            string(factors),
		ModelVersion:       p.ModelVersion,
		CreatedAt:          p.CreatedAt.UTC(),
	}, nil
}

func (r floodPredictionRow) toDomain() (domain.FloodPrediction, error) {
	var factors domain.PredictionFactors
	if err := json.Unmarshal([]byte(r.Factors), &factors); err != nil {
		return domain.FloodPrediction{}, fmt.Errorf("decode factors for prediction %s: %w", r.ID, err)
	}
	return domain.FloodPrediction{
		ID:                 r.ID,
		District:           r.District,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		PredictionDate:     r.PredictionDate,
		RiskLevel:          domain.RiskLevel(r.RiskLevel),
		RiskScore:          r.RiskScore,
		RainfallForecast:   r.RainfallForecast,
		RiverLevelForecast: r.RiverLevelForecast,
		ConfidenceScore:    r.ConfidenceScore,
		Factors:            factors,
		ModelVersion:       r.ModelVersion,
		CreatedAt:          r.CreatedAt.UTC(),
	}, nil
}

// weatherDataRow maps the weather_data table.
type weatherDataRow struct {
	ID             string  `gorm:"type:char(36);primaryKey"`
	District       string  `gorm:"index;type:varchar(60);not null"`
	Latitude       float64 `gorm:"not null"`
	Longitude      float64 `gorm:"not null"`
	Temperature    float64
	Humidity       float64
	Rainfall       float64
	WindSpeed      float64
	WindDirection  float64
	Pressure       float64
	CloudCover     float64
	FeelsLike      float64
	WeatherCode    int
	FloodRiskLevel string    `gorm:"type:varchar(10);not null"`
	RecordedAt     time.Time `gorm:"index;not null"`
}

func (weatherDataRow) TableName() string { return domain.TableWeatherData }

func (r *weatherDataRow) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func weatherRowFromDomain(w domain.DistrictWeather) weatherDataRow {
	return weatherDataRow{
		District:       w.District,
		Latitude:       w.Location.Lat,
		Longitude:      w.Location.Lon,
		Temperature:    w.Sample.Temperature,
		Humidity:       w.Sample.Humidity,
		Rainfall:       w.Sample.Rainfall,
		WindSpeed:      w.Sample.WindSpeed,
		WindDirection:  w.Sample.WindDegrees,
		Pressure:       w.Sample.Pressure,
		CloudCover:     w.Sample.CloudCover,
		FeelsLike:      w.Sample.FeelsLike,
		WeatherCode:    w.Sample.WeatherCode,
		FloodRiskLevel: string(w.RiskLevel),
		RecordedAt:     w.RecordedAt.UTC(),
	}
}

func (r weatherDataRow) toDomain() domain.DistrictWeather {
	return domain.DistrictWeather{
		District: r.District,
		Location: domain.Geo{Lat: r.Latitude, Lon: r.Longitude},
		Sample: domain.WeatherSample{
			Temperature:   r.Temperature,
			Humidity:      r.Humidity,
			Rainfall:      r.Rainfall,
			WindSpeed:     r.WindSpeed,
			WindDegrees:   r.WindDirection,
			WindDirection: domain.WindDirection(r.WindDirection),
			Pressure:      r.Pressure,
			CloudCover:    r.CloudCover,
			FeelsLike:     r.FeelsLike,
			WeatherCode:   r.WeatherCode,
			Description:   domain.WeatherDescription(r.WeatherCode),
		},
		RiskLevel:  domain.RiskLevel(r.FloodRiskLevel),
		RecordedAt: r.RecordedAt.UTC(),
	}
}
