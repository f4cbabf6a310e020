package application

import (
	"context"
	"fmt"

	"github.com/riverrun/chronicle/pkg/domain"
)

// AccountCommandHandlers builds the tagged command handlers for every
// operation the Account aggregate exposes, bound to a single repository.
func AccountCommandHandlers(repo *domain.Repository[*domain.Account]) []TaggedCommandHandler {
	return []TaggedCommandHandler{
		{CommandType: "OpenAccount", Handler: handleOpenAccount(repo)},
		{CommandType: "CreditAccount", Handler: handleCreditAccount(repo)},
		{CommandType: "DebitAccount", Handler: handleDebitAccount(repo)},
		{CommandType: "CloseAccount", Handler: handleCloseAccount(repo)},
	}
}

func handleOpenAccount(repo *domain.Repository[*domain.Account]) CommandHandlerFunc {
	return func(ctx context.Context, log domain.Logger, p Payload[Command]) (Response[struct{}], error) {
		cmd, ok := p.Data.(OpenAccountCommand)
		if !ok {
			return Response[struct{}]{}, fmt.Errorf("unexpected command type %T", p.Data)
		}
		account := domain.NewAccount()
		account.SetLogger(log)
		if err := account.OpenAccount(cmd.AccountID, cmd.Owner, cmd.Currency); err != nil {
			return Response[struct{}]{}, err
		}
		if err := repo.Save(ctx, account); err != nil {
			return Response[struct{}]{}, err
		}
		log.Info("account opened", "accountId", cmd.AccountID)
		return Response[struct{}]{Metadata: map[string]any{"version": account.Version()}}, nil
	}
}

func handleCreditAccount(repo *domain.Repository[*domain.Account]) CommandHandlerFunc {
	return func(ctx context.Context, log domain.Logger, p Payload[Command]) (Response[struct{}], error) {
		cmd, ok := p.Data.(CreditAccountCommand)
		if !ok {
			return Response[struct{}]{}, fmt.Errorf("unexpected command type %T", p.Data)
		}
		account, err := repo.Load(ctx, cmd.AccountID)
		if err != nil {
			return Response[struct{}]{}, err
		}
		if account == nil {
			return Response[struct{}]{}, domain.NewAggregateNotFoundError(domain.AccountAggregateType, cmd.AccountID)
		}
		account.SetLogger(log)
		if err := account.Credit(cmd.Amount, cmd.Reason); err != nil {
			return Response[struct{}]{}, err
		}
		if err := repo.Save(ctx, account); err != nil {
			return Response[struct{}]{}, err
		}
		return Response[struct{}]{Metadata: map[string]any{"version": account.Version()}}, nil
	}
}

func handleDebitAccount(repo *domain.Repository[*domain.Account]) CommandHandlerFunc {
	return func(ctx context.Context, log domain.Logger, p Payload[Command]) (Response[struct{}], error) {
		cmd, ok := p.Data.(DebitAccountCommand)
		if !ok {
			return Response[struct{}]{}, fmt.Errorf("unexpected command type %T", p.Data)
		}
		account, err := repo.Load(ctx, cmd.AccountID)
		if err != nil {
			return Response[struct{}]{}, err
		}
		if account == nil {
			return Response[struct{}]{}, domain.NewAggregateNotFoundError(domain.AccountAggregateType, cmd.AccountID)
		}
		account.SetLogger(log)
		if err := account.Debit(cmd.Amount, cmd.Reason); err != nil {
			return Response[struct{}]{}, err
		}
		if err := repo.Save(ctx, account); err != nil {
			return Response[struct{}]{}, err
		}
		return Response[struct{}]{Metadata: map[string]any{"version": account.Version()}}, nil
	}
}

func handleCloseAccount(repo *domain.Repository[*domain.Account]) CommandHandlerFunc {
	return func(ctx context.Context, log domain.Logger, p Payload[Command]) (Response[struct{}], error) {
		cmd, ok := p.Data.(CloseAccountCommand)
		if !ok {
			return Response[struct{}]{}, fmt.Errorf("unexpected command type %T", p.Data)
		}
		account, err := repo.Load(ctx, cmd.AccountID)
		if err != nil {
			return Response[struct{}]{}, err
		}
		if account == nil {
			return Response[struct{}]{}, domain.NewAggregateNotFoundError(domain.AccountAggregateType, cmd.AccountID)
		}
		account.SetLogger(log)
		if err := account.Close(cmd.Reason); err != nil {
			return Response[struct{}]{}, err
		}
		if err := repo.Save(ctx, account); err != nil {
			return Response[struct{}]{}, err
		}
		return Response[struct{}]{Metadata: map[string]any{"version": account.Version()}}, nil
	}
}
