package application

import "fmt"

type GetAccountQuery struct {
	AccountID string `json:"account_id"`
}

func (q GetAccountQuery) QueryType() string { return "GetAccount" }

func (q GetAccountQuery) Validate() error {
	if q.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	return nil
}
