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

package database

const (
	// Profile queries
	queryGetActiveProfiles = `
		SELECT address, handle, created_at
		FROM profiles
		WHERE active = 1
		ORDER BY created_at`

	queryInsertProfile = `
		INSERT OR IGNORE INTO profiles (address, handle, created_at) VALUES (?, ?, ?)`

	queryGetProfileByAddress = `
		SELECT address, handle, created_at
		FROM profiles
		WHERE LOWER(address) = LOWER(?) AND active = 1`

	// Lock queries
	queryGetOwnerLocks = `
		SELECT id, owner, amount, lock_end, created_at, transferable, delegated_to, version
		FROM locks
		WHERE owner = ?
		ORDER BY created_at, id`

	queryGetLock = `
		SELECT id, owner, amount, lock_end, created_at, transferable, delegated_to, version
		FROM locks
		WHERE id = ?`

	queryInsertLock = `
		INSERT INTO locks (id, owner, amount, lock_end, created_at, transferable, delegated_to, version)
		VALUES (?, ?, ?, ?, ?, ?, '', 1)`

	queryUpdateLockAmount = `
		UPDATE locks SET amount = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryUpdateLockEnd = `
		UPDATE locks SET lock_end = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryUpdateLockDelegate = `
		UPDATE locks SET delegated_to = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryUpdateLockOwner = `
		UPDATE locks SET owner = ?, delegated_to = '', version = version + 1
		WHERE id = ? AND version = ?`

	queryDeleteLock = `
		DELETE FROM locks WHERE id = ? AND version = ?`

	// Exit queue queries
	queryGetQueue = `
		SELECT token_id, owner, sequence, enqueued_at, exit_fee_bps
		FROM exit_queue
		ORDER BY sequence`

	queryGetQueueRecord = `
		SELECT token_id, owner, sequence, enqueued_at, exit_fee_bps
		FROM exit_queue
		WHERE token_id = ?`

	queryInsertQueueRecord = `
		INSERT INTO exit_queue (token_id, owner, sequence, enqueued_at, exit_fee_bps)
		VALUES (?, ?, ?, ?, ?)`

	queryDeleteQueueRecord = `
		DELETE FROM exit_queue WHERE token_id = ?`

	queryNextCounter = `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`

	// Vote commitment queries
	queryInsertCommitment = `
		INSERT INTO vote_commitments (id, owner, proposal_id, power, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, proposal_id) DO UPDATE SET power = excluded.power`

	queryDeleteCommitment = `
		DELETE FROM vote_commitments WHERE owner = ? AND proposal_id = ?`

	queryGetCommitments = `
		SELECT power FROM vote_commitments WHERE owner = ?`

	// Wallet balance queries
	queryGetWalletBalance = `
		SELECT balance, version, updated_at
		FROM wallet_balances
		WHERE owner = ?`

	queryInsertWalletBalance = `
		INSERT INTO wallet_balances (owner, balance, version, updated_at)
		VALUES (?, '0', 1, ?)`

	queryUpdateWalletBalance = `
		UPDATE wallet_balances
		SET balance = ?, version = version + 1, updated_at = ?
		WHERE owner = ? AND version = ?`

	// Journal queries
	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, submission_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetJournalEntries = `
		SELECT id, submission_id, account_type, account_id, debit_amount, credit_amount, created_at
		FROM journal_entries
		WHERE submission_id = ?
		ORDER BY rowid`

	queryGetAccountJournal = `
		SELECT debit_amount, credit_amount
		FROM journal_entries
		WHERE account_type = ? AND account_id = ?`

	// Submission queries
	queryInsertSubmission = `
		INSERT INTO submissions (handle, command, owner, token_id, status, reason, amount, fee, created_at, confirmed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetSubmission = `
		SELECT handle, command, token_id, status, reason, amount, fee, confirmed_at
		FROM submissions
		WHERE handle = ?`
)
