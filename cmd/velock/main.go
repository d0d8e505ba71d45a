/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"vote-escrow-go/internal/common"
	"vote-escrow-go/internal/config"
	"vote-escrow-go/internal/models"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the state shared by every subcommand for one invocation
type app struct {
	cfg      *models.Config
	services *common.Services
	logger   *zap.Logger
	cleanup  func()

	owner      string
	jsonOutput bool
}

func main() {
	a := &app{}
	err := a.rootCommand().Execute()
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "velock",
		Short:        "Manage vote-escrow token locks",
		SilenceUsage: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return a.setup(c)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.owner, "owner", "", "Account address (default: WALLET_ADDRESS)")
	flags.BoolVar(&a.jsonOutput, "json", false, "Print results as JSON")

	root.AddCommand(
		a.locksCommand(),
		a.reportCommand(),
		a.statusCommand(),
		a.queueCommand(),
		a.createCommand(),
		a.increaseAmountCommand(),
		a.increaseDurationCommand(),
		a.delegateCommand(),
		a.transferCommand(),
		a.enterQueueCommand(),
		a.withdrawCommand(),
		a.mintCommand(),
		a.addProfileCommand(),
	)
	return root
}

func (a *app) setup(c *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	a.logger, a.cleanup = common.InitializeLogger()
	c.SetContext(models.WithCommandContext(c.Context(), &models.CommandContext{
		RequestId: uuid.New().String(),
		Source:    "cli",
	}))

	services, err := common.InitializeServices(c.Context(), cfg, nil)
	if err != nil {
		a.logger.Error("Failed to initialize services", zap.Error(err))
		return err
	}
	a.services = services

	if a.owner == "" {
		a.owner = cfg.Wallet.Address
	}
	return nil
}

func (a *app) close() {
	if a.services != nil {
		a.services.Close()
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}

// requireOwner returns the account the command acts for
func (a *app) requireOwner() (string, error) {
	if a.owner == "" {
		return "", fmt.Errorf("no account: pass --owner or set WALLET_ADDRESS")
	}
	return a.owner, nil
}

func (a *app) printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
