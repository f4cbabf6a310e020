package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/riverrun/chronicle/pkg"
	"github.com/riverrun/chronicle/pkg/application"
	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/riverrun/chronicle/pkg/infrastructure"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronicle-demo",
		Short: "Chronicle event-sourcing SDK demonstration CLI",
		Long: `A demonstration CLI exercising the Chronicle library's
event-sourced Account aggregate: opening, crediting, debiting, and closing
accounts over a pluggable event store (sqlite, postgres, dynamodb, or an
in-memory reference store).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := os.Setenv("CHRONICLE_CONFIG_FILE", configFile); err != nil {
					return fmt.Errorf("set config file env var: %w", err)
				}
			}
			if verbose {
				if err := os.Setenv("CHRONICLE_LOGGING_LEVEL", "debug"); err != nil {
					return fmt.Errorf("set logging level env var: %w", err)
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(openAccountCmd())
	rootCmd.AddCommand(creditAccountCmd())
	rootCmd.AddCommand(debitAccountCmd())
	rootCmd.AddCommand(closeAccountCmd())
	rootCmd.AddCommand(getAccountCmd())
	rootCmd.AddCommand(initDBCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openAccountCmd() *cobra.Command {
	var owner, currency string
	cmd := &cobra.Command{
		Use:   "open-account",
		Short: "Open a new account",
		Long:  "Open a new account with the given owner and currency, printing its generated account ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(func(ctx context.Context, logger domain.Logger, commandBus application.CommandBus) error {
				accountID := uuid.NewString()
				command := application.OpenAccountCommand{
					AccountID: accountID,
					Owner:     owner,
					Currency:  currency,
				}
				if err := command.Validate(); err != nil {
					return fmt.Errorf("validation failed: %w", err)
				}

				logger.Info("opening account", "accountId", accountID, "owner", owner, "currency", currency)
				if err := commandBus.Handle(ctx, logger, command); err != nil {
					return fmt.Errorf("failed to open account: %w", err)
				}

				fmt.Printf("Account opened\n  ID:       %s\n  Owner:    %s\n  Currency: %s\n", accountID, owner, currency)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account owner name (required)")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code, e.g. USD (required)")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("currency")
	return cmd
}

func creditAccountCmd() *cobra.Command {
	var amount int64
	var reason string
	cmd := &cobra.Command{
		Use:   "credit <account-id>",
		Short: "Credit an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			return runWithApp(func(ctx context.Context, logger domain.Logger, commandBus application.CommandBus) error {
				command := application.CreditAccountCommand{AccountID: accountID, Amount: amount, Reason: reason}
				if err := command.Validate(); err != nil {
					return fmt.Errorf("validation failed: %w", err)
				}
				logger.Info("crediting account", "accountId", accountID, "amount", amount)
				if err := commandBus.Handle(ctx, logger, command); err != nil {
					return fmt.Errorf("failed to credit account: %w", err)
				}
				fmt.Printf("Account %s credited %d\n", accountID, amount)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to credit, in minor units (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "optional reason recorded with the event")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func debitAccountCmd() *cobra.Command {
	var amount int64
	var reason string
	cmd := &cobra.Command{
		Use:   "debit <account-id>",
		Short: "Debit an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			return runWithApp(func(ctx context.Context, logger domain.Logger, commandBus application.CommandBus) error {
				command := application.DebitAccountCommand{AccountID: accountID, Amount: amount, Reason: reason}
				if err := command.Validate(); err != nil {
					return fmt.Errorf("validation failed: %w", err)
				}
				logger.Info("debiting account", "accountId", accountID, "amount", amount)
				if err := commandBus.Handle(ctx, logger, command); err != nil {
					return fmt.Errorf("failed to debit account: %w", err)
				}
				fmt.Printf("Account %s debited %d\n", accountID, amount)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount to debit, in minor units (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "optional reason recorded with the event")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func closeAccountCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "close-account <account-id>",
		Short: "Close an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			return runWithApp(func(ctx context.Context, logger domain.Logger, commandBus application.CommandBus) error {
				command := application.CloseAccountCommand{AccountID: accountID, Reason: reason}
				if err := command.Validate(); err != nil {
					return fmt.Errorf("validation failed: %w", err)
				}
				logger.Info("closing account", "accountId", accountID)
				if err := commandBus.Handle(ctx, logger, command); err != nil {
					return fmt.Errorf("failed to close account: %w", err)
				}
				fmt.Printf("Account %s closed\n", accountID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "optional reason recorded with the event")
	return cmd
}

func getAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-account <account-id>",
		Short: "Show an account's current read-model state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]
			return runWithApp(func(ctx context.Context, logger domain.Logger, queryBus application.QueryBus) error {
				query := application.GetAccountQuery{AccountID: accountID}
				if err := query.Validate(); err != nil {
					return fmt.Errorf("validation failed: %w", err)
				}

				result, err := queryBus.Handle(ctx, logger, query)
				if err != nil {
					return fmt.Errorf("failed to get account: %w", err)
				}
				view, ok := result.(application.AccountView)
				if !ok {
					return fmt.Errorf("unexpected result type %T", result)
				}

				fmt.Printf("Account %s\n  Owner:    %s\n  Currency: %s\n  Balance:  %d\n  Closed:   %t\n  Version:  %d\n",
					view.AccountID, view.Owner, view.Currency, view.Balance, view.Closed, view.Version)
				return nil
			})
		},
	}
	return cmd
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Run database migrations",
		Long:  "Create or update the events and account_views tables for the configured sqlite/postgres driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(func(ctx context.Context, logger domain.Logger, db *gorm.DB) error {
				if db == nil {
					return fmt.Errorf("configured driver has no sql database to migrate (memory/dynamodb)")
				}
				logger.Info("running database migrations")
				if err := infrastructure.MigrateDatabase(db); err != nil {
					return fmt.Errorf("failed to run database migrations: %w", err)
				}
				fmt.Println("Database migrated successfully")
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Chronicle Demo CLI v1.0.0")
			fmt.Println("Chronicle - a client-side event-sourcing SDK for Go")
		},
	}
}

// runWithApp starts the fx application, invokes fn with its dependencies,
// and tears the application back down, surfacing fn's error to the caller.
func runWithApp(fn interface{}) error {
	var result error
	done := make(chan struct{})

	var app *fx.App
	switch f := fn.(type) {
	case func(context.Context, domain.Logger, application.CommandBus) error:
		app = pkg.NewApp(fx.Invoke(func(logger domain.Logger, commandBus application.CommandBus) {
			defer close(done)
			result = f(context.Background(), logger, commandBus)
		}))
	case func(context.Context, domain.Logger, application.QueryBus) error:
		app = pkg.NewApp(fx.Invoke(func(logger domain.Logger, queryBus application.QueryBus) {
			defer close(done)
			result = f(context.Background(), logger, queryBus)
		}))
	case func(context.Context, domain.Logger, *gorm.DB) error:
		app = pkg.NewApp(fx.Invoke(func(logger domain.Logger, db *gorm.DB) {
			defer close(done)
			result = f(context.Background(), logger, db)
		}))
	default:
		return fmt.Errorf("unsupported function type %T", fn)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-done

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}

	return result
}
