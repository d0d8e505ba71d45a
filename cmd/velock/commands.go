package main

import (
	"fmt"
	"time"

	"vote-escrow-go/internal/api"
	"vote-escrow-go/internal/models"

	"github.com/spf13/cobra"
)

func (a *app) createCommand() *cobra.Command {
	var duration time.Duration
	var transferable bool

	c := &cobra.Command{
		Use:   "create <amount>",
		Short: "Lock tokens for a duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			result, err := a.services.LockService.CreateLock(c.Context(), api.CreateLockRequest{
				Owner:        owner,
				Amount:       args[0],
				Duration:     duration,
				Transferable: transferable,
			})
			return a.printResult(result, err)
		},
	}
	c.Flags().DurationVar(&duration, "duration", 365*24*time.Hour, "Lock duration")
	c.Flags().BoolVar(&transferable, "transferable", false, "Allow the lock to be transferred")
	return c
}

func (a *app) increaseAmountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "increase-amount <token-id> <amount>",
		Short: "Add tokens to an active lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			result, err := a.services.LockService.IncreaseAmount(c.Context(), api.IncreaseAmountRequest{
				Owner:   owner,
				TokenId: args[0],
				Amount:  args[1],
			})
			return a.printResult(result, err)
		},
	}
}

func (a *app) increaseDurationCommand() *cobra.Command {
	var extend time.Duration
	var until string

	c := &cobra.Command{
		Use:   "increase-duration <token-id>",
		Short: "Move the end of an active lock later",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}

			var newEnd time.Time
			switch {
			case until != "":
				newEnd, err = time.Parse(time.RFC3339, until)
				if err != nil {
					return fmt.Errorf("invalid --until: %w", err)
				}
			case extend > 0:
				lock, err := a.services.Ledger.Lock(c.Context(), owner, args[0])
				if err != nil {
					return err
				}
				newEnd = lock.LockEnd.Add(extend)
			default:
				return fmt.Errorf("one of --until or --extend is required")
			}

			result, err := a.services.LockService.IncreaseDuration(c.Context(), api.IncreaseDurationRequest{
				Owner:   owner,
				TokenId: args[0],
				NewEnd:  newEnd,
			})
			return a.printResult(result, err)
		},
	}
	c.Flags().DurationVar(&extend, "extend", 0, "Extend the current end by this much")
	c.Flags().StringVar(&until, "until", "", "New lock end (RFC3339)")
	return c
}

func (a *app) delegateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delegate <token-id> [delegatee]",
		Short: "Delegate a lock's voting power, or clear the delegation",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			req := api.DelegateRequest{Owner: owner, TokenId: args[0]}
			if len(args) == 2 {
				req.Delegatee = args[1]
			}
			result, err := a.services.LockService.Delegate(c.Context(), req)
			return a.printResult(result, err)
		},
	}
}

func (a *app) transferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <token-id> <recipient>",
		Short: "Transfer a transferable lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			result, err := a.services.LockService.Transfer(c.Context(), api.TransferRequest{
				Owner:     owner,
				TokenId:   args[0],
				Recipient: args[1],
			})
			return a.printResult(result, err)
		},
	}
}

func (a *app) enterQueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enter-queue <token-id>",
		Short: "Place a lock in the exit queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			result, err := a.services.LockService.EnterQueue(c.Context(), api.PositionRequest{Owner: owner, TokenId: args[0]})
			return a.printResult(result, err)
		},
	}
}

func (a *app) withdrawCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <token-id>",
		Short: "Withdraw a ready or expired lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			result, err := a.services.LockService.Withdraw(c.Context(), api.PositionRequest{Owner: owner, TokenId: args[0]})
			return a.printResult(result, err)
		},
	}
}

// printResult reports a command outcome and turns a failed result into a non-zero exit
func (a *app) printResult(result *models.CommandResult, err error) error {
	if err != nil {
		return err
	}
	if a.jsonOutput {
		if err := a.printJSON(result); err != nil {
			return err
		}
	} else if result.Success {
		fmt.Printf("✓ %s succeeded\n", result.Command)
		switch {
		case result.Withdrawal != nil:
			w := result.Withdrawal
			fmt.Printf("  token %s: returned %s (amount %s, fee %s)\n", w.TokenId, w.Returned, w.Amount, w.Fee)
		case result.Entry != nil:
			e := result.Entry
			fmt.Printf("  token %s: queue position %d, estimated ready %s\n",
				e.TokenId, e.Position, e.EstimatedReadyAt.Format(time.RFC3339))
		case result.Lock != nil:
			printLock(*result.Lock, true)
		case result.Pending:
			fmt.Printf("  token %s: confirmed in %s, queue entry not yet readable\n", result.TokenId, result.TxHash)
		default:
			fmt.Printf("  token %s: confirmed, refreshed state not yet available\n", result.TokenId)
		}
	} else {
		retry := ""
		if result.Retryable {
			retry = " (retryable)"
		}
		fmt.Printf("✗ %s failed [%s]%s: %s\n", result.Command, result.ErrorKind, retry, result.Error)
	}

	if !result.Success {
		return fmt.Errorf("%s failed", result.Command)
	}
	return nil
}
