package main

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{4,64}$`)
	handleRegex  = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
)

func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !addressRegex.MatchString(address) {
		return fmt.Errorf("invalid address format: %s", address)
	}
	return nil
}

func validateHandle(handle string) error {
	if handle == "" {
		return fmt.Errorf("handle cannot be empty")
	}
	if len(handle) < 2 {
		return fmt.Errorf("handle must be at least 2 characters")
	}
	if !handleRegex.MatchString(handle) {
		return fmt.Errorf("invalid handle format: %s", handle)
	}
	return nil
}

func (a *app) mintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <amount>",
		Short: "Credit liquid tokens to an account (sqlite backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if a.services.Devnet == nil {
				return fmt.Errorf("mint requires the sqlite backend")
			}
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			if err := validateAddress(owner); err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[0])
			if err != nil || !amount.IsPositive() {
				return fmt.Errorf("invalid amount: %s", args[0])
			}

			balance, err := a.services.Devnet.Mint(c.Context(), owner, amount)
			if err != nil {
				return err
			}
			a.logger.Info("Minted tokens",
				zap.String("owner", owner),
				zap.String("amount", amount.String()),
				zap.String("balance", balance.String()))
			fmt.Printf("✓ %s balance: %s\n", owner, balance.String())
			return nil
		},
	}
}

func (a *app) addProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <handle>",
		Short: "Register a governance profile for an account (sqlite backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if a.services.Devnet == nil {
				return fmt.Errorf("profile requires the sqlite backend")
			}
			owner, err := a.requireOwner()
			if err != nil {
				return err
			}
			if err := validateAddress(owner); err != nil {
				return err
			}
			if err := validateHandle(args[0]); err != nil {
				return err
			}

			profile, err := a.services.Devnet.CreateProfile(c.Context(), owner, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Profile %s registered for %s\n", profile.Handle, profile.Address)
			return nil
		},
	}
}
