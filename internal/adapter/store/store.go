// Package store persists river readings, predictions and synced weather with
// gorm, and announces every insert on a change feed.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const insertBatchSize = 100

// ChangePublisher receives an event for every row written.
type ChangePublisher interface {
	Publish(ctx context.Context, events ...domain.ChangeEvent) error
}

// Store is the relational persistence layer.
type Store struct {
	db        *gorm.DB
	publisher ChangePublisher
	logger    *slog.Logger
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&riverLevelRow{}, &floodPredictionRow{}, &weatherDataRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// SetPublisher wires the change feed. A nil publisher disables publishing.
func (s *Store) SetPublisher(p ChangePublisher) {
	s.publisher = p
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// InsertReadings appends river readings and returns them with ids assigned.
func (s *Store) InsertReadings(ctx context.Context, readings []domain.RiverGaugeReading) ([]domain.RiverGaugeReading, error) {
	if len(readings) == 0 {
		return nil, nil
	}
	rows := make([]riverLevelRow, len(readings))
	for i, r := range readings {
		rows[i] = riverRowFromDomain(r)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return nil, fmt.Errorf("insert river readings: %w", err)
	}

	out := make([]domain.RiverGaugeReading, len(rows))
	records := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
		records[i] = out[i]
	}
	s.publish(ctx, domain.TableRiverLevels, records)
	return out, nil
}

// RiverReadings returns readings newest first, optionally for one district.
func (s *Store) RiverReadings(ctx context.Context, district string) ([]domain.RiverGaugeReading, error) {
	q := s.db.WithContext(ctx).Order("recorded_at DESC")
	if district != "" {
		q = q.Where("district = ?", district)
	}
	var rows []riverLevelRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query river readings: %w", err)
	}
	out := make([]domain.RiverGaugeReading, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// RiverHistory returns one station's readings since a time, oldest first.
func (s *Store) RiverHistory(ctx context.Context, river, station string, since time.Time) ([]domain.RiverGaugeReading, error) {
	var rows []riverLevelRow
	err := s.db.WithContext(ctx).
		Where("river_name = ? AND station_name = ? AND recorded_at >= ?", river, station, since.UTC()).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query river history: %w", err)
	}
	out := make([]domain.RiverGaugeReading, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// InsertPredictions appends predictions in one transaction. Existing rows for
// the same district and date are kept.
func (s *Store) InsertPredictions(ctx context.Context, preds []domain.FloodPrediction) error {
	if len(preds) == 0 {
		return nil
	}
	rows := make([]floodPredictionRow, len(preds))
	for i, p := range preds {
		row, err := predictionRowFromDomain(p)
		if err != nil {
			return err
		}
		rows[i] = row
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("insert predictions: %w", err)
	}

	records := make([]any, len(preds))
	for i := range preds {
		p := preds[i]
		p.ID = rows[i].ID
		records[i] = p
	}
	s.publish(ctx, domain.TableFloodPredictions, records)
	return nil
}

// PredictionsFrom returns predictions dated on or after fromDate (YYYY-MM-DD)
// in ascending date order, optionally for one district.
func (s *Store) PredictionsFrom(ctx context.Context, fromDate, district string) ([]domain.FloodPrediction, error) {
	q := s.db.WithContext(ctx).
		Where("prediction_date >= ?", fromDate).
		Order("prediction_date ASC").
		Order("created_at ASC")
	if district != "" {
		q = q.Where("district = ?", district)
	}
	var rows []floodPredictionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	out := make([]domain.FloodPrediction, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// PredictionsOn returns the district, level and score of predictions dated
// date with one of levels, highest score first.
func (s *Store) PredictionsOn(ctx context.Context, date string, levels []domain.RiskLevel) ([]domain.HighRiskArea, error) {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	var rows []floodPredictionRow
	err := s.db.WithContext(ctx).
		Select("district", "risk_level", "risk_score").
		Where("prediction_date = ? AND risk_level IN ?", date, names).
		Order("risk_score DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query predictions on %s: %w", date, err)
	}
	out := make([]domain.HighRiskArea, len(rows))
	for i, row := range rows {
		out[i] = domain.HighRiskArea{
			District:  row.District,
			RiskLevel: domain.RiskLevel(row.RiskLevel),
			RiskScore: row.RiskScore,
		}
	}
	return out, nil
}

// InsertWeather appends one synced current-conditions row.
func (s *Store) InsertWeather(ctx context.Context, w domain.DistrictWeather) error {
	row := weatherRowFromDomain(w)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert weather for %s: %w", w.District, err)
	}
	s.publish(ctx, domain.TableWeatherData, []any{row.toDomain()})
	return nil
}

// LatestWeather returns the newest synced row per district.
func (s *Store) LatestWeather(ctx context.Context) ([]domain.DistrictWeather, error) {
	var rows []weatherDataRow
	if err := s.db.WithContext(ctx).Order("recorded_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query weather: %w", err)
	}
	seen := make(map[string]struct{})
	var out []domain.DistrictWeather
	for _, row := range rows {
		if _, ok := seen[row.District]; ok {
			continue
		}
		seen[row.District] = struct{}{}
		out = append(out, row.toDomain())
	}
	return out, nil
}

// publish announces inserted rows. Failures are logged; the rows are already
// committed.
func (s *Store) publish(ctx context.Context, table string, records []any) {
	if s.publisher == nil {
		return
	}
	events := make([]domain.ChangeEvent, 0, len(records))
	for _, rec := range records {
		ev, err := domain.NewChangeEvent(table, domain.ChangeInsert, rec)
		if err != nil {
			s.logger.Warn("build change event failed", "table", table, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("publish change events failed", "table", table, "count", len(events), "error", err)
	}
}
