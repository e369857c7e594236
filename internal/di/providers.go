package di

import (
	"fmt"

	"IndiCache/internal/domain/repository"
	"IndiCache/internal/engine"
	"IndiCache/internal/handler/api"
	"IndiCache/internal/indicator"
	internalrepo "IndiCache/internal/repository"
	pkgch "IndiCache/pkg/clickhouse"
	"IndiCache/pkg/config"
	xhttp "IndiCache/pkg/http"
	pkgkafka "IndiCache/pkg/kafka"
	"IndiCache/pkg/lock"
	applogger "IndiCache/pkg/logger"
	"IndiCache/pkg/metrics"
	"IndiCache/pkg/server"
)

// Stores bundles the persistence backends selected by configuration so
// the engine providers see one coherent set.
type Stores struct {
	Source repository.SourceReader
	Cache  repository.CacheStore
	Output repository.OutputWriter
	Meta   repository.MetaStore

	closers []func() error
}

// Close releases every backend in reverse construction order.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStores selects and constructs the persistence backends.
func ProvideStores(cfg *config.Config, log *applogger.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.Source.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		reader := internalrepo.NewCHSourceReader(client, cfg.ClickHouse.Table)
		reader.SetLogger(log)
		s.Source = reader
	default:
		s.Source = internalrepo.NewCSVSourceReader(cfg.Source.CSVDir)
	}
	// Each enabled family re-reads the same series; memoize within a run.
	s.Source = internalrepo.NewCachedSourceReader(s.Source, cfg.Source.CacheSize, cfg.Source.CacheTTL)

	fileStore := internalrepo.NewFileStore(cfg.Storage.BaseDir)
	s.Output = fileStore

	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := internalrepo.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		s.Cache = db
		s.Meta = db
	default:
		s.Cache = fileStore
		s.Meta = fileStore
	}

	return s, nil
}

// ProvideCohortProvider exposes the on-disk membership lists.
func ProvideCohortProvider(cfg *config.Config) repository.CohortProvider {
	return internalrepo.NewCohortFileProvider(cfg.Cohorts.Dir)
}

// ProvideLockService creates the run lock backend: Redis when enabled,
// otherwise an in-process lock.
func ProvideLockService(cfg *config.Config) (lock.Service, error) {
	if !cfg.Lock.Enabled {
		return lock.NewLocal(), nil
	}
	svc, err := lock.NewRedis(lock.RedisConfig{
		Host:   cfg.Lock.Host,
		Port:   cfg.Lock.Port,
		DB:     cfg.Lock.DB,
		Prefix: cfg.Lock.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	return svc, nil
}

// ProvideReportPublisher creates the run report sink: Kafka when enabled,
// otherwise a no-op.
func ProvideReportPublisher(cfg *config.Config) (repository.ReportPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopReportPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaReportPublisher(producer), nil
}

// ProvidePlugins instantiates the enabled indicator families.
func ProvidePlugins(cfg *config.Config) ([]indicator.Plugin, error) {
	return indicator.Build(cfg.Indicators.Enabled, indicator.Params{
		SMAPeriods: cfg.Indicators.SMAPeriods,
		EMAPeriods: cfg.Indicators.EMAPeriods,
		WMAPeriods: cfg.Indicators.WMAPeriods,
		RSIPeriod:  cfg.Indicators.RSIPeriod,
		PVPeriods:  cfg.Indicators.PVPeriods,
	})
}

// ProvideOrchestrator creates the per-symbol compute pipeline.
func ProvideOrchestrator(
	stores *Stores,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *engine.Orchestrator {
	return engine.NewOrchestrator(stores.Source, stores.Cache, stores.Output, m, log, engine.OrchestratorConfig{
		MinLookback:   cfg.Engine.MinLookback,
		RetryAttempts: cfg.Engine.IORetryAttempts,
		RetryBackoff:  cfg.Engine.IORetryBackoff,
	})
}

// ProvideMetaManager creates the single-writer meta manager.
func ProvideMetaManager(stores *Stores, log *applogger.Logger) *engine.MetaManager {
	return engine.NewMetaManager(stores.Meta, stores.Cache, log)
}

// ProvideBatch creates the cohort batch driver.
func ProvideBatch(
	orch *engine.Orchestrator,
	meta *engine.MetaManager,
	cohorts repository.CohortProvider,
	stores *Stores,
	m repository.Metrics,
	pub repository.ReportPublisher,
	locks lock.Service,
	log *applogger.Logger,
	cfg *config.Config,
) *engine.Batch {
	return engine.NewBatch(orch, meta, cohorts, stores.Cache, m, pub, locks, log, engine.BatchConfig{
		MaxWorkers:     cfg.Engine.MaxWorkers,
		TaskTimeout:    cfg.Engine.TaskTimeout,
		FailureCeiling: cfg.Engine.FailureRateCeiling,
		LockTTL:        cfg.Lock.TTL,
	})
}

// ProvideMaintainer creates the housekeeping service.
func ProvideMaintainer(
	cohorts repository.CohortProvider,
	stores *Stores,
	log *applogger.Logger,
) *engine.Maintainer {
	return engine.NewMaintainer(cohorts, stores.Cache, stores.Output, stores.Meta, log)
}

// ProvideStatusHandler creates the status API handler.
func ProvideStatusHandler(log *applogger.Logger, maint *engine.Maintainer) xhttp.Handler {
	return api.NewStatusHandler(log, maint)
}

// ProvideApp assembles the application and registers resource closers.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	batch *engine.Batch,
	maint *engine.Maintainer,
	plugins []indicator.Plugin,
	handler xhttp.Handler,
	stores *Stores,
	pub repository.ReportPublisher,
	locks lock.Service,
) *server.App {
	app := server.New(cfg, log, batch, maint, plugins)
	app.SetHTTPHandler(handler)
	app.AddCloser(stores.Close)
	app.AddCloser(pub.Close)
	app.AddCloser(locks.Close)
	return app
}
