// Package application implements the CQRS layer: unified command/query
// handler signatures, middleware composition, and the buses that route
// requests to registered handlers. It depends on pkg/domain for aggregates
// and the event-store contract, never the other way around.
package application

import (
	"context"

	"github.com/riverrun/chronicle/pkg/domain"
)

// Payload wraps request data with metadata shared by every handler and
// middleware, so the same middleware works across command and query types.
type Payload[T any] struct {
	Data          T
	TenantID      string
	ActorID       string
	CorrelationID string
	Metadata      map[string]any
}

// Response wraps handler output symmetrically with Payload.
type Response[T any] struct {
	Data     T
	Metadata map[string]any
}

// Command represents an intention to change system state.
type Command interface {
	CommandType() string
}

// Query represents a read-only request for information.
type Query interface {
	QueryType() string
}

// Handler is the unified signature for both command and query handlers.
type Handler[Req any, Res any] func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error)

// Middleware decorates a Handler with cross-cutting behavior (authorization,
// logging, validation) without changing its signature.
type Middleware[Req any, Res any] func(next Handler[Req, Res]) Handler[Req, Res]

// CommandHandlerFunc is the type-erased form stored in a CommandBus's
// registry; Go disallows a map of generic function types directly.
type CommandHandlerFunc = Handler[Command, struct{}]

// QueryHandlerFunc is the type-erased form stored in a QueryBus's registry.
type QueryHandlerFunc = Handler[Query, any]

// CommandBus routes a Command to its registered handler by CommandType.
type CommandBus interface {
	Handle(ctx context.Context, log domain.Logger, cmd Command) error
	Register(cmdType string, handler CommandHandlerFunc, middleware ...Middleware[Command, struct{}])
}

// QueryBus routes a Query to its registered handler by QueryType.
type QueryBus interface {
	Handle(ctx context.Context, log domain.Logger, query Query) (any, error)
	Register(queryType string, handler QueryHandlerFunc, middleware ...Middleware[Query, any])
}
