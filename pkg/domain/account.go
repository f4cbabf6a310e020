package domain

import "sync"

const AccountAggregateType = "account"

var (
	accountRegistryOnce sync.Once
	accountRegistry     *HandlerRegistry
)

func accountHandlers() *HandlerRegistry {
	accountRegistryOnce.Do(func() {
		accountRegistry = NewHandlerRegistry(AccountAggregateType)
		RegisterApply(accountRegistry, AccountOpened{}.EventType(), func(a *Account, event Event) {
			e := event.(*AccountOpened)
			a.owner = e.Owner
			a.currency = e.Currency
			a.closed = false
		})
		RegisterApply(accountRegistry, AccountCredited{}.EventType(), func(a *Account, event Event) {
			e := event.(*AccountCredited)
			a.balance += e.Amount
		})
		RegisterApply(accountRegistry, AccountDebited{}.EventType(), func(a *Account, event Event) {
			e := event.(*AccountDebited)
			a.balance -= e.Amount
		})
		RegisterApply(accountRegistry, AccountClosed{}.EventType(), func(a *Account, event Event) {
			a.closed = true
		})
	})
	return accountRegistry
}

// Account is the reference aggregate exercising scenarios S1-S3 from
// spec.md §8: opening, crediting, debiting, closing, and the invariant that
// a closed or overdrawn account rejects further debits.
type Account struct {
	BaseAggregate
	owner    string
	currency string
	balance  int64
	closed   bool
}

// NewAccount constructs an uninitialized Account ready for OpenAccount or
// Rehydrate.
func NewAccount() *Account {
	a := &Account{}
	a.InitBase(AccountAggregateType, accountHandlers())
	return a
}

// OpenAccount initializes identity and raises AccountOpened. It is the only
// valid first operation on a freshly constructed Account.
func (a *Account) OpenAccount(accountID, owner, currency string) error {
	if owner == "" {
		return NewCommandValidationError("OpenAccount", "owner must not be empty")
	}
	if currency == "" {
		return NewCommandValidationError("OpenAccount", "currency must not be empty")
	}
	if err := a.Initialize(accountID); err != nil {
		return err
	}
	return a.RaiseEvent(a, &AccountOpened{AccountID: accountID, Owner: owner, Currency: currency})
}

// Credit raises AccountCredited, increasing the balance.
func (a *Account) Credit(amount int64, reason string) error {
	if a.closed {
		return NewInvalidAggregateStateError(AccountAggregateType, "account is closed")
	}
	if amount <= 0 {
		return NewCommandValidationError("Credit", "amount must be positive")
	}
	return a.RaiseEvent(a, &AccountCredited{Amount: amount, Reason: reason})
}

// Debit raises AccountDebited, decreasing the balance. It is rejected if the
// account is closed or the debit would overdraw the balance.
func (a *Account) Debit(amount int64, reason string) error {
	if a.closed {
		return NewInvalidAggregateStateError(AccountAggregateType, "account is closed")
	}
	if amount <= 0 {
		return NewCommandValidationError("Debit", "amount must be positive")
	}
	if a.balance-amount < 0 {
		return NewInvalidAggregateStateError(AccountAggregateType, "insufficient balance")
	}
	return a.RaiseEvent(a, &AccountDebited{Amount: amount, Reason: reason})
}

// Close raises AccountClosed.
func (a *Account) Close(reason string) error {
	if a.closed {
		return NewInvalidAggregateStateError(AccountAggregateType, "account already closed")
	}
	return a.RaiseEvent(a, &AccountClosed{Reason: reason})
}

func (a *Account) Owner() string    { return a.owner }
func (a *Account) Currency() string { return a.currency }
func (a *Account) Balance() int64   { return a.balance }
func (a *Account) Closed() bool     { return a.closed }

// Rehydrate implements AggregateRoot by delegating to BaseAggregate with
// itself as the typed receiver (Go disallows generic methods, so every
// concrete aggregate repeats this one-line wrapper).
func (a *Account) Rehydrate(events []EventEnvelope) error {
	return a.BaseAggregate.Rehydrate(a, events)
}

// NewAccountTypeRegistry builds a TypeRegistry pre-populated with the
// account aggregate's own event types, for backends that marshal/unmarshal
// envelopes to/from storage (see pkg/infrastructure).
func NewAccountTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	r.Register(AccountOpened{}.EventType(), func() Event { return &AccountOpened{} })
	r.Register(AccountCredited{}.EventType(), func() Event { return &AccountCredited{} })
	r.Register(AccountDebited{}.EventType(), func() Event { return &AccountDebited{} })
	r.Register(AccountClosed{}.EventType(), func() Event { return &AccountClosed{} })
	return r
}
