package domain

// AccountOpened is raised when a new account aggregate is created.
type AccountOpened struct {
	AccountID string `json:"account_id"`
	Owner     string `json:"owner"`
	Currency  string `json:"currency"`
}

func (AccountOpened) EventType() string { return "account.opened" }

// AccountCredited is raised when funds are added to an account's balance.
type AccountCredited struct {
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason,omitempty"`
}

func (AccountCredited) EventType() string { return "account.credited" }

// AccountDebited is raised when funds are removed from an account's balance.
type AccountDebited struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (AccountDebited) EventType() string { return "account.debited" }

// AccountClosed is raised when an account is closed and can no longer accept
// credits or debits.
type AccountClosed struct {
	Reason string `json:"reason,omitempty"`
}

func (AccountClosed) EventType() string { return "account.closed" }
