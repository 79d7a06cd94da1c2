package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseDSN string

	// Open-Meteo forecast API.
	OpenMeteoBaseURL string
	OpenMeteoTimeout time.Duration
	ForecastCacheTTL time.Duration

	// External flood monitor API.
	FloodMonitorBaseURL string
	FloodMonitorEnabled bool
	MonitorPollInterval time.Duration

	// WatchDistrict names the district whose weather serve keeps assessed.
	// Empty when WATCH_DISTRICT is "none".
	WatchDistrict string

	PredictionSchedule string
	PredictionWorkers  int
	SyntheticGauges    bool
	RandomSeed         uint64

	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaChangesTopic string
}

var defaults = map[string]any{
	"http_addr":              ":8080",
	"log_level":              "info",
	"log_format":             "json",
	"shutdown_timeout":       "10s",
	"database_dsn":           "floodrisk.db?_busy_timeout=5000",
	"open_meteo_base_url":    "https://api.open-meteo.com",
	"open_meteo_timeout":     "10s",
	"forecast_cache_ttl":     "15m",
	"flood_monitor_base_url": "",
	"flood_monitor_enabled":  "",
	"monitor_poll_interval":  "5m",
	"watch_district":         "Colombo",
	"prediction_schedule":    "0 */6 * * *",
	"prediction_workers":     "5",
	"synthetic_gauges":       "true",
	"random_seed":            "0",
	"kafka_enabled":          "false",
	"kafka_brokers":          "localhost:9092",
	"kafka_changes_topic":    "resq.changes",
}

// New returns a viper instance with defaults applied and environment lookup
// enabled. Callers may bind command-line flags to it before calling LoadFrom.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	return v
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	return LoadFrom(New())
}

// LoadFrom builds and validates a Config from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	shutdownTimeout, err := positiveDuration(v, "shutdown_timeout")
	if err != nil {
		return nil, err
	}
	meteoTimeout, err := positiveDuration(v, "open_meteo_timeout")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := positiveDuration(v, "forecast_cache_ttl")
	if err != nil {
		return nil, err
	}
	pollInterval, err := positiveDuration(v, "monitor_poll_interval")
	if err != nil {
		return nil, err
	}

	workers, err := strconv.Atoi(strings.TrimSpace(v.GetString("prediction_workers")))
	if err != nil || workers < 1 || workers > 25 {
		return nil, errors.New("invalid PREDICTION_WORKERS: must be between 1 and 25")
	}

	seed, err := strconv.ParseUint(strings.TrimSpace(v.GetString("random_seed")), 10, 64)
	if err != nil {
		return nil, errors.New("invalid RANDOM_SEED")
	}

	synthetic, err := parseBool(v, "synthetic_gauges")
	if err != nil {
		return nil, err
	}
	kafkaEnabled, err := parseBool(v, "kafka_enabled")
	if err != nil {
		return nil, err
	}

	monitorURL := strings.TrimRight(v.GetString("flood_monitor_base_url"), "/")
	monitorEnabled := monitorURL != ""
	if s := v.GetString("flood_monitor_enabled"); s != "" {
		monitorEnabled = s == "true"
	}

	cfg := &Config{
		HTTPAddr:            v.GetString("http_addr"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		ShutdownTimeout:     shutdownTimeout,
		DatabaseDSN:         v.GetString("database_dsn"),
		OpenMeteoBaseURL:    strings.TrimRight(v.GetString("open_meteo_base_url"), "/"),
		OpenMeteoTimeout:    meteoTimeout,
		ForecastCacheTTL:    cacheTTL,
		FloodMonitorBaseURL: monitorURL,
		FloodMonitorEnabled: monitorEnabled,
		MonitorPollInterval: pollInterval,
		WatchDistrict:       strings.TrimSpace(v.GetString("watch_district")),
		PredictionSchedule:  v.GetString("prediction_schedule"),
		PredictionWorkers:   workers,
		SyntheticGauges:     synthetic,
		RandomSeed:          seed,
		KafkaEnabled:        kafkaEnabled,
		KafkaBrokers:        parseBrokers(v.GetString("kafka_brokers")),
		KafkaChangesTopic:   v.GetString("kafka_changes_topic"),
	}

	if cfg.DatabaseDSN == "" {
		return nil, errors.New("DATABASE_DSN is required")
	}
	if cfg.OpenMeteoBaseURL == "" {
		return nil, errors.New("OPEN_METEO_BASE_URL is required")
	}
	if cfg.FloodMonitorEnabled && cfg.FloodMonitorBaseURL == "" {
		return nil, errors.New("FLOOD_MONITOR_ENABLED is true but FLOOD_MONITOR_BASE_URL is not set")
	}
	if strings.EqualFold(cfg.WatchDistrict, "none") {
		cfg.WatchDistrict = ""
	}
	if cfg.WatchDistrict != "" {
		d, err := domain.LookupDistrict(cfg.WatchDistrict)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_DISTRICT: %w", err)
		}
		cfg.WatchDistrict = d.Name
	}
	if _, err := cron.ParseStandard(cfg.PredictionSchedule); err != nil {
		return nil, fmt.Errorf("invalid PREDICTION_SCHEDULE: %w", err)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaChangesTopic == "" {
			return nil, errors.New("KAFKA_CHANGES_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", strings.ToUpper(key))
	}
	return d, nil
}

func parseBool(v *viper.Viper, key string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return b, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
