package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/riverrun/chronicle/pkg/application"
	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// testConfigModule overrides LoadConfig's env/file lookup with a fixed
// in-memory sqlite config, so fx assembly is hermetic in tests.
var testConfigModule = fx.Replace(&Config{
	Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
	Events:   EventsConfig{Publisher: "channel"},
	Logging:  LoggingConfig{Level: "info", Format: "text"},
})

func TestInfrastructureModule(t *testing.T) {
	app := fxtest.New(t,
		InfrastructureModule,
		application.ApplicationModule,
		testConfigModule,
		fx.Invoke(func(
			config *Config,
			logger domain.Logger,
			eventStore domain.EventStoreClient,
			dispatcher *WatermillEventDispatcher,
			repo *domain.Repository[*domain.Account],
		) {
			assert.NotNil(t, config)
			assert.NotNil(t, logger)
			assert.NotNil(t, eventStore)
			assert.NotNil(t, dispatcher)
			assert.NotNil(t, repo)

			logger.Info("test log message", "key", "value")
			logger.Debug("debug message")
			logger.Warn("warning message")
			logger.Error("error message")
		}),
	)

	defer app.RequireStart().RequireStop()
}

func TestDatabaseProvider(t *testing.T) {
	config := &Config{Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}}

	db, err := DatabaseProvider(config)
	assert.NoError(t, err)
	if assert.NotNil(t, db) {
		sqlDB, err := db.DB()
		assert.NoError(t, err)
		assert.NoError(t, sqlDB.Ping())
	}
}

func TestDatabaseProvider_MemoryDriverSkipsDatabase(t *testing.T) {
	config := &Config{Database: DatabaseConfig{Driver: "memory"}}

	db, err := DatabaseProvider(config)
	assert.NoError(t, err)
	assert.Nil(t, db)
}

func TestEventStoreProvider_SQLite(t *testing.T) {
	config := &Config{Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}}
	registry := TypeRegistryProvider()

	db, err := DatabaseProvider(config)
	assert.NoError(t, err)

	eventStore, err := EventStoreProvider(config, db, registry)
	assert.NoError(t, err)
	assert.NotNil(t, eventStore)

	exists, err := eventStore.StreamExists(context.Background(), "account-nonexistent")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestEventStoreProvider_Memory(t *testing.T) {
	config := &Config{Database: DatabaseConfig{Driver: "memory"}}
	registry := TypeRegistryProvider()

	eventStore, err := EventStoreProvider(config, nil, registry)
	assert.NoError(t, err)
	assert.NotNil(t, eventStore)
}

func TestEventDispatcherProvider(t *testing.T) {
	registry := TypeRegistryProvider()
	logger := LoggerProvider(&Config{Logging: LoggingConfig{Level: "info", Format: "text"}})

	dispatcher, err := EventDispatcherProvider(registry, logger)
	assert.NoError(t, err)
	if assert.NotNil(t, dispatcher) {
		defer dispatcher.Close()
	}
}

func TestLoggerProvider(t *testing.T) {
	config := &Config{Logging: LoggingConfig{Level: "info", Format: "text"}}

	logger := LoggerProvider(config)
	assert.NotNil(t, logger)

	assert.NotPanics(t, func() {
		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warning message")
		logger.Error("error message")
	})
}

func TestLifecycleHooks(t *testing.T) {
	app := fxtest.New(t,
		InfrastructureModule,
		application.ApplicationModule,
		testConfigModule,
		fx.StartTimeout(5*time.Second),
		fx.StopTimeout(5*time.Second),
	)

	defer app.RequireStart().RequireStop()
}
