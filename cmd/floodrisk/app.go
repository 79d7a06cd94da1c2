package main

import (
	"context"
	"fmt"
	"log/slog"

	kafkaadapter "github.com/resq-unified/flood-risk-service/internal/adapter/kafka"
	"github.com/resq-unified/flood-risk-service/internal/adapter/openmeteo"
	"github.com/resq-unified/flood-risk-service/internal/adapter/store"
	"github.com/resq-unified/flood-risk-service/internal/config"
	"github.com/resq-unified/flood-risk-service/internal/domain"
	"github.com/resq-unified/flood-risk-service/internal/gauge"
	"github.com/resq-unified/flood-risk-service/internal/observability"
	"github.com/resq-unified/flood-risk-service/internal/predictor"
	"github.com/resq-unified/flood-risk-service/internal/realtime"
)

// app holds the components every command shares.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	store     *store.Store
	publisher interface{ Close() error }
	transport realtime.Transport

	forecast  *openmeteo.CachedClient
	gauges    *gauge.Reader
	predictor *predictor.Predictor
}

func newApp() (*app, error) {
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics, store: st}

	if cfg.KafkaEnabled {
		pub := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaChangesTopic, metrics, logger)
		st.SetPublisher(pub)
		a.publisher = pub
		a.transport = kafkaadapter.NewSubscriber(cfg.KafkaBrokers, cfg.KafkaChangesTopic, logger)
		logger.Info("kafka change feed enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaChangesTopic)
	} else {
		local := realtime.NewLocalTransport()
		st.SetPublisher(local)
		a.transport = local
		logger.Info("in-process change feed enabled")
	}

	client := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.OpenMeteoTimeout, metrics, logger)
	a.forecast = openmeteo.NewCachedClient(client, cfg.ForecastCacheTTL, metrics)

	random := domain.NewRandomSource(cfg.RandomSeed)
	a.gauges = gauge.NewReader(st, random, cfg.SyntheticGauges, metrics, logger)
	a.predictor = predictor.New(a.forecast, a.gauges, st, random, cfg.PredictionWorkers, logger, metrics)

	return a, nil
}

// CheckReadiness reports ready once the database answers and a prediction
// run has completed.
func (a *app) CheckReadiness(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return a.predictor.CheckReadiness(ctx)
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}
