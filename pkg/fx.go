package pkg

import (
	"github.com/riverrun/chronicle/pkg/application"
	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/riverrun/chronicle/pkg/infrastructure"
	"go.uber.org/fx"
)

// Module is an alias for ChronicleModule for convenience.
var Module = ChronicleModule

// ChronicleModule combines the domain, application, and infrastructure
// modules into a single fx module for cmd/chronicle-demo and integration
// tests to depend on.
var ChronicleModule = fx.Options(
	domain.DomainModule,
	application.ApplicationModule,
	infrastructure.InfrastructureModule,
)

// NewApp creates a new Fx application with every Chronicle module wired in.
func NewApp(additionalOptions ...fx.Option) *fx.App {
	options := []fx.Option{ChronicleModule}
	options = append(options, additionalOptions...)

	return fx.New(options...)
}

// RunApp creates and runs a new Fx application with graceful shutdown.
func RunApp(additionalOptions ...fx.Option) {
	app := NewApp(additionalOptions...)
	app.Run()
}
