package domain

// NewAccountRepository builds a Repository[*Account] over the given store,
// wiring the constructor and rehydration callback Go's lack of generic
// methods otherwise forces every caller to repeat.
func NewAccountRepository(store EventStoreClient) *Repository[*Account] {
	return NewRepository[*Account](
		store,
		AccountAggregateType,
		NewAccount,
		func(self *Account, events []EventEnvelope) error {
			return self.Rehydrate(events)
		},
	)
}
