package application

import (
	"github.com/riverrun/chronicle/pkg/domain"
	"go.uber.org/fx"
)

// ApplicationModule provides the CQRS buses, middleware stack, and account
// handler registration for dependency-injected assembly (cmd/chronicle-demo
// and integration tests use this; package-level unit tests wire things by
// hand instead).
var ApplicationModule = fx.Options(
	fx.Provide(
		CommandBusProvider,
		QueryBusProvider,
		HandlerRegistrarProvider,
		CacheProviderProvider,
		AccountProjectionProvider,
	),
	fx.Invoke(setupAccountHandlers),
)

func CommandBusProvider() CommandBus { return NewCommandBus() }

func QueryBusProvider() QueryBus { return NewQueryBus() }

func HandlerRegistrarProvider() HandlerRegistrar { return &DefaultHandlerRegistrar{} }

func MetricsCollectorProvider() MetricsCollector { return NewInMemoryMetricsCollector() }

func CacheProviderProvider() CacheProvider { return NewInMemoryCache() }

// AccountViewStoreProvider is a standalone, non-fx constructor for tests and
// other manual wiring; fx assembly gets its AccountViewStore from
// infrastructure.AccountViewStoreProvider instead, which can choose a
// GORM-backed store when a database connection is configured.
func AccountViewStoreProvider() AccountViewStore { return NewInMemoryAccountViewStore() }

// AccountProjectionProvider builds the read-model projection that keeps
// AccountViewStore current, for fx.Invoke(registerEventDispatcherLifecycle)
// in pkg/infrastructure to subscribe to the event dispatcher.
func AccountProjectionProvider(store AccountViewStore) *domain.AutoDispatchProjection {
	return NewAccountProjection(store)
}

// setupAccountHandlers registers every account command/query handler with
// the standard middleware stack: error handling (outermost), logging,
// validation, then metrics.
func setupAccountHandlers(
	registrar HandlerRegistrar,
	commandBus CommandBus,
	queryBus QueryBus,
	repo *domain.Repository[*domain.Account],
	viewStore AccountViewStore,
	metrics MetricsCollector,
) {
	commandMiddleware := []TaggedCommandMiddleware{
		{Name: "error_handling", Middleware: ErrorHandlingMiddleware[Command, struct{}]()},
		{Name: "logging", Middleware: LoggingMiddleware[Command, struct{}]()},
		{Name: "validation", Middleware: ValidationMiddleware[Command, struct{}]()},
		{Name: "metrics", Middleware: MetricsMiddleware[Command, struct{}](metrics)},
	}
	queryMiddleware := []TaggedQueryMiddleware{
		{Name: "error_handling", Middleware: ErrorHandlingMiddleware[Query, any]()},
		{Name: "logging", Middleware: LoggingMiddleware[Query, any]()},
		{Name: "validation", Middleware: ValidationMiddleware[Query, any]()},
	}

	registrar.RegisterCommandHandlers(commandBus, AccountCommandHandlers(repo), commandMiddleware)
	registrar.RegisterQueryHandlers(queryBus, []TaggedQueryHandler{
		{QueryType: "GetAccount", Handler: NewGetAccountHandler(viewStore)},
	}, queryMiddleware)
}
