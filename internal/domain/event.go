package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Store table names. They double as change-feed channel names.
const (
	TableRiverLevels      = "river_levels"
	TableFloodPredictions = "flood_predictions"
	TableWeatherData      = "weather_data"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ChangeType is the kind of row mutation carried by a ChangeEvent.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is a push notification about a row written to a store table.
type ChangeEvent struct {
	Table      string          `json:"table"`
	Type       ChangeType      `json:"type"`
	Record     json.RawMessage `json:"record"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewChangeEvent serializes record into a change event stamped with the package clock.
func NewChangeEvent(table string, typ ChangeType, record any) (ChangeEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("serialize %s record: %w", table, err)
	}
	return ChangeEvent{
		Table:      table,
		Type:       typ,
		Record:     data,
		OccurredAt: clock.Now().UTC(),
	}, nil
}

// Decode unmarshals the event record into v.
func (e ChangeEvent) Decode(v any) error {
	if err := json.Unmarshal(e.Record, v); err != nil {
		return fmt.Errorf("decode %s record: %w", e.Table, err)
	}
	return nil
}
