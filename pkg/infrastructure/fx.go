package infrastructure

import (
	"context"
	"fmt"

	"github.com/riverrun/chronicle/pkg/application"
	"github.com/riverrun/chronicle/pkg/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// InfrastructureModule provides every storage/transport/observability
// dependency the application layer needs, selected by Config at startup.
var InfrastructureModule = fx.Options(
	fx.Provide(
		LoadConfig,
		TypeRegistryProvider,
		DatabaseProvider,
		EventStoreProvider,
		EventDispatcherProvider,
		LoggerProvider,
		MetricsProvider,
		AccountRepositoryProvider,
		AccountViewStoreProvider,
	),
	fx.Invoke(
		registerDatabaseLifecycle,
		registerEventDispatcherLifecycle,
	),
)

func registerDatabaseLifecycle(lc fx.Lifecycle, db *gorm.DB, logger domain.Logger) {
	if db == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			logger.Info("database connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			logger.Info("closing database connection")
			return sqlDB.Close()
		},
	})
}

func registerEventDispatcherLifecycle(lc fx.Lifecycle, dispatcher *WatermillEventDispatcher, projection *domain.AutoDispatchProjection, logger domain.Logger) {
	dispatcher.RegisterProjection(projection)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting projection dispatcher")
			return dispatcher.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping projection dispatcher")
			return dispatcher.Close()
		},
	})
}

// TypeRegistryProvider builds the wire TypeRegistry for every known event
// type. Additional aggregate families register themselves the same way
// account events do here.
func TypeRegistryProvider() *domain.TypeRegistry {
	return domain.NewAccountTypeRegistry()
}

// DatabaseProvider creates a database connection from config. Only sqlite
// and postgres are GORM-backed; for the "dynamodb" and "memory" drivers it
// returns a nil *gorm.DB and no error, and EventStoreProvider does not use it.
func DatabaseProvider(config *Config) (*gorm.DB, error) {
	switch config.Database.Driver {
	case "sqlite", "postgres":
		return NewDatabase(config.Database)
	default:
		return nil, nil
	}
}

// EventStoreProvider selects a domain.EventStoreClient backend by
// config.Database.Driver.
func EventStoreProvider(config *Config, db *gorm.DB, registry *domain.TypeRegistry) (domain.EventStoreClient, error) {
	switch config.Database.Driver {
	case "memory":
		return NewMemoryEventStore(), nil
	case "sqlite", "postgres":
		if db == nil {
			return nil, fmt.Errorf("database driver %q requires a *gorm.DB", config.Database.Driver)
		}
		return NewSQLEventStore(db, registry)
	case "dynamodb":
		store, err := NewDynamoDBEventStore(context.Background(), DynamoDBConfig{
			Region:    config.Database.DynamoDBRegion,
			TableName: config.Database.DynamoDBTable,
			Host:      config.Database.DynamoDBHost,
			Port:      config.Database.DynamoDBPort,
		})
		if err != nil {
			return nil, err
		}
		return store.WithRegistry(registry), nil
	default:
		return nil, fmt.Errorf("unsupported event store driver: %s", config.Database.Driver)
	}
}

func EventDispatcherProvider(registry *domain.TypeRegistry, logger domain.Logger) (*WatermillEventDispatcher, error) {
	return NewWatermillEventDispatcher(&WatermillLoggerAdapter{Logger: logger}, registry)
}

func LoggerProvider(config *Config) domain.Logger {
	return NewLogger(config.Logging.Level, config.Logging.Format)
}

func MetricsProvider(logger domain.Logger) application.MetricsCollector {
	return NewLoggingMetricsCollector(logger)
}

// AccountViewStoreProvider prefers a GORM-backed store when a database
// connection is available, falling back to the in-memory one for the
// "memory"/"dynamodb" drivers.
func AccountViewStoreProvider(db *gorm.DB) application.AccountViewStore {
	if db == nil {
		return application.NewInMemoryAccountViewStore()
	}
	return NewGormAccountViewStore(db)
}

func AccountRepositoryProvider(store domain.EventStoreClient, dispatcher *WatermillEventDispatcher) *domain.Repository[*domain.Account] {
	repo := domain.NewAccountRepository(store)
	return repo.WithDispatch(dispatcher.Dispatch)
}
