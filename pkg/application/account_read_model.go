package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/riverrun/chronicle/pkg/domain"
)

// AccountView is the read-model projection of an Account, kept current by
// AccountProjection as committed events are dispatched.
type AccountView struct {
	AccountID string
	Owner     string
	Currency  string
	Balance   int64
	Closed    bool
	Version   int64
}

// AccountViewStore is the persistence seam for AccountView rows; the
// in-memory implementation here backs tests and the demo CLI, while
// pkg/infrastructure ships a GORM-backed one for the SQL adapter.
type AccountViewStore interface {
	Get(ctx context.Context, accountID string) (AccountView, error)
	Upsert(ctx context.Context, view AccountView) error
}

// NewGetAccountHandler builds the query handler for GetAccountQuery.
func NewGetAccountHandler(store AccountViewStore) QueryHandlerFunc {
	return func(ctx context.Context, log domain.Logger, p Payload[Query]) (Response[any], error) {
		query, ok := p.Data.(GetAccountQuery)
		if !ok {
			return Response[any]{}, fmt.Errorf("unexpected query type %T", p.Data)
		}
		view, err := store.Get(ctx, query.AccountID)
		if err != nil {
			return Response[any]{}, err
		}
		return Response[any]{Data: view}, nil
	}
}

// AccountProjection keeps an AccountViewStore current as account events are
// dispatched, via AutoDispatchProjection's On<EventType> method routing.
type AccountProjection struct {
	store AccountViewStore
}

func NewAccountProjection(store AccountViewStore) *domain.AutoDispatchProjection {
	return domain.NewAutoDispatchProjection("account_view", 1, &AccountProjection{store: store})
}

func (p *AccountProjection) OnAccountOpened(ctx context.Context, env domain.EventEnvelope) error {
	e := env.Event.(*domain.AccountOpened)
	return p.store.Upsert(ctx, AccountView{
		AccountID: e.AccountID,
		Owner:     e.Owner,
		Currency:  e.Currency,
		Version:   env.Metadata.AggregateNonce,
	})
}

func (p *AccountProjection) OnAccountCredited(ctx context.Context, env domain.EventEnvelope) error {
	view, err := p.store.Get(ctx, env.Metadata.AggregateID)
	if err != nil {
		return err
	}
	e := env.Event.(*domain.AccountCredited)
	view.Balance += e.Amount
	view.Version = env.Metadata.AggregateNonce
	return p.store.Upsert(ctx, view)
}

func (p *AccountProjection) OnAccountDebited(ctx context.Context, env domain.EventEnvelope) error {
	view, err := p.store.Get(ctx, env.Metadata.AggregateID)
	if err != nil {
		return err
	}
	e := env.Event.(*domain.AccountDebited)
	view.Balance -= e.Amount
	view.Version = env.Metadata.AggregateNonce
	return p.store.Upsert(ctx, view)
}

func (p *AccountProjection) OnAccountClosed(ctx context.Context, env domain.EventEnvelope) error {
	view, err := p.store.Get(ctx, env.Metadata.AggregateID)
	if err != nil {
		return err
	}
	view.Closed = true
	view.Version = env.Metadata.AggregateNonce
	return p.store.Upsert(ctx, view)
}

// InMemoryAccountViewStore is a mutex-guarded AccountViewStore, the default
// wiring for tests and the in-memory demo path.
type InMemoryAccountViewStore struct {
	mu    sync.RWMutex
	views map[string]AccountView
}

func NewInMemoryAccountViewStore() *InMemoryAccountViewStore {
	return &InMemoryAccountViewStore{views: make(map[string]AccountView)}
}

func (s *InMemoryAccountViewStore) Get(ctx context.Context, accountID string) (AccountView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.views[accountID]
	if !ok {
		return AccountView{}, domain.NewAggregateNotFoundError("account_view", accountID)
	}
	return view, nil
}

func (s *InMemoryAccountViewStore) Upsert(ctx context.Context, view AccountView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[view.AccountID] = view
	return nil
}
