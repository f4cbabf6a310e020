package application

import (
	"context"

	"github.com/riverrun/chronicle/pkg/domain"
)

// commandBus is the default in-process CommandBus implementation.
type commandBus struct {
	handlers map[string]CommandHandlerFunc
}

func NewCommandBus() CommandBus {
	return &commandBus{handlers: make(map[string]CommandHandlerFunc)}
}

func (b *commandBus) Handle(ctx context.Context, log domain.Logger, cmd Command) error {
	handler, exists := b.handlers[cmd.CommandType()]
	if !exists {
		return domain.NewInvalidAggregateStateError(cmd.CommandType(), "no handler registered for this command type")
	}
	payload := Payload[Command]{Data: cmd, Metadata: make(map[string]any)}
	resp, err := handler(ctx, log, payload)
	if err != nil {
		return err
	}
	_ = resp
	return nil
}

// Register associates a command type with its handler and middleware chain.
// Middleware is applied in reverse so the first entry provided is the
// outermost decorator, matching the order a caller would read them in.
func (b *commandBus) Register(cmdType string, handler CommandHandlerFunc, middleware ...Middleware[Command, struct{}]) {
	wrapped := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		wrapped = middleware[i](wrapped)
	}
	b.handlers[cmdType] = wrapped
}

// queryBus is the default in-process QueryBus implementation.
type queryBus struct {
	handlers map[string]QueryHandlerFunc
}

func NewQueryBus() QueryBus {
	return &queryBus{handlers: make(map[string]QueryHandlerFunc)}
}

func (q *queryBus) Handle(ctx context.Context, log domain.Logger, query Query) (any, error) {
	handler, exists := q.handlers[query.QueryType()]
	if !exists {
		return nil, domain.NewInvalidAggregateStateError(query.QueryType(), "no handler registered for this query type")
	}
	payload := Payload[Query]{Data: query, Metadata: make(map[string]any)}
	resp, err := handler(ctx, log, payload)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (q *queryBus) Register(queryType string, handler QueryHandlerFunc, middleware ...Middleware[Query, any]) {
	wrapped := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		wrapped = middleware[i](wrapped)
	}
	q.handlers[queryType] = wrapped
}
