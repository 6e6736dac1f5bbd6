// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package wallet credits prize money and answers balance queries. Balances
// are integer cents so concurrent credits can use a single atomic SQL
// increment; exact decimal amounts live on the winner rows and are rounded
// to cents only when credited here.
package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/votelot/server/db"
	"github.com/votelot/server/models"
)

type Service struct {
	db *sql.DB
}

func NewService(conn *sql.DB) *Service {
	return &Service{db: conn}
}

// Cents rounds a decimal currency amount to integer cents, half away
// from zero.
func Cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Credit adds cents to a user's wallet, creating it on first credit. The
// increment happens in SQL, so concurrent credits to one wallet cannot
// lose updates. Runs on q so disbursement can credit inside its own
// transaction.
func (s *Service) Credit(ctx context.Context, q db.Queryer, userID string, cents int64, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallet (user_id, balance_cents, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance_cents = wallet.balance_cents + $2,
			updated_at = $3`,
		userID, cents, now)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

// RecordTransaction appends one row to the user's transaction history.
func (s *Service) RecordTransaction(ctx context.Context, q db.Queryer, txType string, userID string, cents int64, electionID *string, description string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO wallet_transaction (id, user_id, type, amount_cents, election_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), userID, txType, cents, electionID, description, now)
	if err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}
	return nil
}

// Balance returns the user's balance in cents. A user with no wallet row
// has a balance of zero.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM wallet WHERE user_id = $1`, userID).Scan(&cents)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read wallet balance: %w", err)
	}
	return cents, nil
}

// Transactions returns the user's history, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount_cents, election_id, description, created_at
		FROM wallet_transaction WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.WalletTransaction
	for rows.Next() {
		var tx models.WalletTransaction
		var electionID, description sql.NullString
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.AmountCents, &electionID, &description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		if electionID.Valid {
			tx.ElectionID = &electionID.String
		}
		tx.Description = description.String
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
