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

package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vote-escrow-go/internal/exitqueue"
	"vote-escrow-go/internal/ledger"
	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/prerequisite"
	"vote-escrow-go/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LockService is the command and query surface used by the CLI and daemons. Commands never
// return an error for domain failures; the outcome, its error kind and the retry hint are
// reported in the CommandResult.
type LockService struct {
	ledger     *ledger.Ledger
	queue      *exitqueue.Manager
	aggregator *prerequisite.Aggregator
	validate   *validator.Validate
}

func NewLockService(l *ledger.Ledger, q *exitqueue.Manager, aggregator *prerequisite.Aggregator) *LockService {
	return &LockService{
		ledger:     l,
		queue:      q,
		aggregator: aggregator,
		validate:   validator.New(),
	}
}

// withRequest tags ctx with a fresh request id unless the caller already did
func withRequest(ctx context.Context) context.Context {
	if models.GetCommandContext(ctx) != nil {
		return ctx
	}
	return models.WithCommandContext(ctx, &models.CommandContext{RequestId: uuid.New().String(), Source: "api"})
}

func (s *LockService) HealthCheck(ctx context.Context) error {
	if _, err := s.ledger.Capabilities(ctx); err != nil {
		return fmt.Errorf("chain health check failed: %w", err)
	}
	return nil
}

func (s *LockService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			msgs := make([]string, 0, len(fields))
			for _, f := range fields {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.ToLower(f.Field()), f.Tag()))
			}
			return fmt.Errorf("invalid request: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", store.ErrInvalidAmount, raw)
	}
	if err := ledger.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func invalid(command, owner, tokenId string, err error) *models.CommandResult {
	return &models.CommandResult{
		Success:   false,
		Command:   command,
		Owner:     owner,
		TokenId:   tokenId,
		ErrorKind: store.KindValidation.String(),
		Error:     err.Error(),
	}
}

func failed(command, owner, tokenId string, err error) *models.CommandResult {
	result := &models.CommandResult{
		Success:   false,
		Command:   command,
		Owner:     owner,
		TokenId:   tokenId,
		ErrorKind: "unknown",
		Error:     err.Error(),
	}
	var e *store.Error
	if errors.As(err, &e) {
		result.ErrorKind = e.Kind.String()
		result.Retryable = e.Retryable()
	}
	return result
}
