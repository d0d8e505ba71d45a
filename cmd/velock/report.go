package main

import (
	"context"
	"fmt"
	"time"

	"vote-escrow-go/internal/common"
	"vote-escrow-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type reportStats struct {
	totalProfiles     int
	totalLocks        int
	profilesWithLocks int
}

func printLock(lock models.TokenLock, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	detail := common.BoxDetailPrefix(isLast)

	fmt.Printf("%s %-12s %-12s: %20s locked, %20s power\n",
		symbol,
		common.ShortId(lock.Id),
		lock.State,
		lock.LockedAmount.String(),
		lock.VotingPower.StringFixed(4))
	fmt.Printf("%s   ends %s, warmup ends %s",
		detail,
		lock.LockEnd.Format("2006-01-02 15:04:05"),
		lock.WarmupEndsAt.Format("2006-01-02 15:04:05"))
	if lock.ExitQueue != nil {
		fmt.Printf(", queue #%d (ready: %t)", lock.ExitQueue.Position, lock.ExitQueue.Ready)
	}
	if lock.DelegatedTo != "" {
		fmt.Printf(", delegated to %s", lock.DelegatedTo)
	}
	fmt.Println()
}

func printLocks(locks []models.TokenLock) {
	for i, lock := range locks {
		printLock(lock, i == len(locks)-1)
	}
}

func printOwnerHeader(title, owner string, view models.LockView) {
	fmt.Printf("\n┌─ %s: %s\n", title, owner)
	fmt.Printf("│  Locks: %d\n", len(view.Locks))
	fmt.Printf("│  Voting power: %s (used %s, available %s)\n",
		view.Breakdown.TotalVotingPower.StringFixed(4),
		view.Breakdown.PowerUsed.StringFixed(4),
		view.Breakdown.PowerAvailable.StringFixed(4))
	common.PrintBoxSeparator(78)
}

func (a *app) locksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "Show an account's locks and voting power",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			view, err := a.services.LockService.GetLocks(c.Context(), owner)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(view)
			}

			balance, err := a.services.LockService.GetWalletBalance(c.Context(), owner)
			if err != nil {
				return err
			}
			printOwnerHeader("Account", owner, view)
			printLocks(view.Locks)
			fmt.Printf("\nWallet balance: %s (as of %s)\n", balance.String(), view.AsOf.Format(time.RFC3339))
			return nil
		},
	}
}

func processProfile(ctx context.Context, a *app, profile models.Profile) (int, error) {
	view, err := a.services.LockService.GetLocks(ctx, profile.Address)
	if err != nil {
		return 0, fmt.Errorf("failed to get locks: %w", err)
	}

	if len(view.Locks) == 0 {
		return 0, nil
	}

	printOwnerHeader("Profile "+profile.Handle, profile.Address, view)
	printLocks(view.Locks)

	return len(view.Locks), nil
}

func processProfilesAndGenerateReport(ctx context.Context, a *app, profiles []models.Profile) reportStats {
	stats := reportStats{}

	for _, profile := range profiles {
		stats.totalProfiles++

		lockCount, err := processProfile(ctx, a, profile)
		if err != nil {
			a.logger.Error("Failed to process profile",
				zap.String("address", profile.Address),
				zap.String("handle", profile.Handle),
				zap.Error(err))
			continue
		}

		if lockCount > 0 {
			stats.profilesWithLocks++
			stats.totalLocks += lockCount
		}
	}

	return stats
}

// reportCommand walks every registered profile on the devnet
func (a *app) reportCommand() *cobra.Command {
	var addressFilter string

	c := &cobra.Command{
		Use:   "report",
		Short: "Print a lock report for every governance profile (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if a.services.Devnet == nil {
				return fmt.Errorf("report requires the sqlite backend")
			}
			ctx := c.Context()

			profiles, err := common.InitializeProfiles(ctx, a.services.Devnet, addressFilter, a.logger)
			if err != nil {
				return err
			}

			common.PrintHeader("LOCK REPORT", common.DefaultWidth)
			stats := processProfilesAndGenerateReport(ctx, a, profiles)

			summary := fmt.Sprintf("SUMMARY: %d profiles with locks (%d total locks across %d profiles queried)",
				stats.profilesWithLocks, stats.totalLocks, stats.totalProfiles)
			common.PrintFooter(summary, common.DefaultWidth)

			a.logger.Info("Lock report completed",
				zap.Int("profiles_queried", stats.totalProfiles),
				zap.Int("profiles_with_locks", stats.profilesWithLocks),
				zap.Int("total_locks", stats.totalLocks))
			return nil
		},
	}
	c.Flags().StringVar(&addressFilter, "address", "", "Filter by specific profile address (optional)")
	return c
}
