package database

import (
	"context"
	"database/sql"
	"fmt"

	"vote-escrow-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Journal account types
const (
	accountWallet   = "wallet"
	accountEscrow   = "escrow"
	accountTreasury = "treasury"

	supplyId = "supply"
	feesId   = "exit_fees"
)

type journalLeg struct {
	accountType string
	accountId   string
	debit       decimal.Decimal
	credit      decimal.Decimal
}

// addJournalEntries writes double-entry legs for one submission. Debits and credits must balance.
func addJournalEntries(ctx context.Context, tx *sql.Tx, submissionId string, legs []journalLeg, now int64) error {
	debits, credits := decimal.Zero, decimal.Zero
	for _, leg := range legs {
		debits = debits.Add(leg.debit)
		credits = credits.Add(leg.credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("unbalanced journal for %s: debits %s, credits %s", submissionId, debits, credits)
	}

	for _, leg := range legs {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), submissionId, leg.accountType, leg.accountId, leg.debit.String(), leg.credit.String(), now)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetJournal returns the legs recorded for a submission, in insertion order.
func (s *Service) GetJournal(ctx context.Context, submissionId string) ([]models.JournalEntry, error) {
	zap.L().Debug("Getting journal entries", zap.String("submission_id", submissionId))

	rows, err := s.db.QueryContext(ctx, queryGetJournalEntries, submissionId)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}
	defer closeRows(rows)

	var entries []models.JournalEntry
	for rows.Next() {
		var entry models.JournalEntry
		var debitStr, creditStr string
		var createdAt int64
		err := rows.Scan(&entry.Id, &entry.SubmissionId, &entry.AccountType, &entry.AccountId,
			&debitStr, &creditStr, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if entry.Debit, err = decimal.NewFromString(debitStr); err != nil {
			return nil, fmt.Errorf("failed to parse debit '%s': %w", debitStr, err)
		}
		if entry.Credit, err = decimal.NewFromString(creditStr); err != nil {
			return nil, fmt.Errorf("failed to parse credit '%s': %w", creditStr, err)
		}
		entry.CreatedAt = fromNanos(createdAt)
		entries = append(entries, entry)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

// AccountTotal returns debits minus credits for one journal account.
func (s *Service) AccountTotal(ctx context.Context, accountType, accountId string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAccountJournal, accountType, accountId)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get account journal: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var debitStr, creditStr string
		if err := rows.Scan(&debitStr, &creditStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		debit, err := decimal.NewFromString(debitStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse debit '%s': %w", debitStr, err)
		}
		credit, err := decimal.NewFromString(creditStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse credit '%s': %w", creditStr, err)
		}
		total = total.Add(debit).Sub(credit)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return total, nil
}
