package application

import (
	"context"
	"testing"

	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountProjection_TracksAccountLifecycle(t *testing.T) {
	store := NewInMemoryAccountViewStore()
	projection := NewAccountProjection(store)
	ctx := context.Background()
	factory := domain.NewEventFactory()

	opened := factory.NewEnvelope(&domain.AccountOpened{AccountID: "account-1", Owner: "Ada", Currency: "USD"}, "account-1", domain.AccountAggregateType, 1)
	require.NoError(t, projection.HandleEvent(ctx, opened))

	view, err := store.Get(ctx, "account-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", view.Owner)
	assert.Equal(t, "USD", view.Currency)
	assert.EqualValues(t, 1, view.Version)

	credited := factory.NewEnvelope(&domain.AccountCredited{Amount: 500}, "account-1", domain.AccountAggregateType, 2)
	require.NoError(t, projection.HandleEvent(ctx, credited))

	debited := factory.NewEnvelope(&domain.AccountDebited{Amount: 200}, "account-1", domain.AccountAggregateType, 3)
	require.NoError(t, projection.HandleEvent(ctx, debited))

	view, err = store.Get(ctx, "account-1")
	require.NoError(t, err)
	assert.EqualValues(t, 300, view.Balance)
	assert.EqualValues(t, 3, view.Version)

	closed := factory.NewEnvelope(&domain.AccountClosed{Reason: "done"}, "account-1", domain.AccountAggregateType, 4)
	require.NoError(t, projection.HandleEvent(ctx, closed))

	view, err = store.Get(ctx, "account-1")
	require.NoError(t, err)
	assert.True(t, view.Closed)
}

func TestAccountProjection_IgnoresUnrelatedEventTypes(t *testing.T) {
	store := NewInMemoryAccountViewStore()
	projection := NewAccountProjection(store)
	factory := domain.NewEventFactory()

	env := factory.NewEnvelope(domain.GenericEvent{Type: "unrelated.event"}, "account-1", "other", 1)
	assert.NoError(t, projection.HandleEvent(context.Background(), env))

	_, err := store.Get(context.Background(), "account-1")
	var notFound domain.AggregateNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGetAccountHandler_ReturnsView(t *testing.T) {
	store := NewInMemoryAccountViewStore()
	require.NoError(t, store.Upsert(context.Background(), AccountView{AccountID: "account-1", Owner: "Ada", Balance: 100}))

	handler := NewGetAccountHandler(store)
	resp, err := handler(context.Background(), nopLogger{}, Payload[Query]{Data: GetAccountQuery{AccountID: "account-1"}})

	require.NoError(t, err)
	view, ok := resp.Data.(AccountView)
	require.True(t, ok)
	assert.Equal(t, "Ada", view.Owner)
	assert.EqualValues(t, 100, view.Balance)
}

func TestGetAccountHandler_NotFound(t *testing.T) {
	store := NewInMemoryAccountViewStore()
	handler := NewGetAccountHandler(store)

	_, err := handler(context.Background(), nopLogger{}, Payload[Query]{Data: GetAccountQuery{AccountID: "missing"}})

	var notFound domain.AggregateNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGetAccountQuery_Validate(t *testing.T) {
	assert.Error(t, GetAccountQuery{}.Validate())
	assert.NoError(t, GetAccountQuery{AccountID: "account-1"}.Validate())
}
