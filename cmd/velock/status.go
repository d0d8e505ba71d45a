package main

import (
	"fmt"
	"time"

	"vote-escrow-go/internal/api"
	"vote-escrow-go/internal/common"

	"github.com/spf13/cobra"
)

func (a *app) statusCommand() *cobra.Command {
	var minimumPower string
	var requireWarmup bool

	c := &cobra.Command{
		Use:   "status",
		Short: "Evaluate governance prerequisites for an account",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			status, err := a.services.LockService.Status(c.Context(), api.StatusRequest{
				Account:               a.owner,
				MinimumPower:          minimumPower,
				RequireWarmupComplete: requireWarmup,
			})
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(status)
			}

			common.PrintHeader("PREREQUISITES: "+status.Account, common.DefaultWidth)
			fmt.Println(common.RequirementLine("wallet", status.Wallet))
			fmt.Println(common.RequirementLine("profile", status.Profile))
			fmt.Println(common.RequirementLine("token lock", status.TokenLock))
			fmt.Println(common.RequirementLine("warmup", status.Warmup))
			fmt.Println(common.RequirementLine("voting power", status.VotingPower))
			fmt.Printf("\nLocks: %d (%d active, %d warming), power %s of %s available\n",
				status.Totals.LockCount,
				status.Totals.ActiveLockCount,
				status.Totals.WarmingLockCount,
				status.Totals.AvailableVotingPower.StringFixed(4),
				status.Totals.TotalVotingPower.StringFixed(4))
			if status.Totals.WarmupRemaining > 0 {
				fmt.Printf("Warmup remaining: %s\n", common.FormatRemaining(status.Totals.WarmupRemaining))
			}

			verdict := "NOT READY"
			if status.IsAllRequirementsMet {
				verdict = "READY"
			}
			common.PrintFooter(verdict, common.DefaultWidth)
			return nil
		},
	}
	c.Flags().StringVar(&minimumPower, "min-power", "", "Minimum available voting power")
	c.Flags().BoolVar(&requireWarmup, "require-warmup", true, "Require a lock past its warmup")
	return c
}

func (a *app) queueCommand() *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "queue",
		Short: "List exit queue entries",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			owner := a.owner
			if all {
				owner = ""
			} else if owner == "" {
				return fmt.Errorf("no account: pass --owner, --all or set WALLET_ADDRESS")
			}

			entries, err := a.services.LockService.ExitQueue(c.Context(), owner)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(entries)
			}

			common.PrintHeader("EXIT QUEUE", common.DefaultWidth)
			for i, e := range entries {
				fmt.Printf("%s #%-4d %-12s %-12s ready=%-5t est. %s (fee %d bps)\n",
					common.BoxPrefix(i == len(entries)-1),
					e.Position,
					common.ShortId(e.TokenId),
					e.Owner,
					e.Ready,
					e.EstimatedReadyAt.Format(time.RFC3339),
					e.ExitFeeBasisPoints)
			}
			common.PrintFooter(fmt.Sprintf("%d entries", len(entries)), common.DefaultWidth)
			return nil
		},
	}
	c.Flags().BoolVar(&all, "all", false, "Show the whole queue")
	return c
}
