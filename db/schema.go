// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend. The schema and all queries run on
// both; the audit ledger uses it to pick the chain-head locking clause.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Open connects to the configured database. dbType is "postgres" or
// "sqlite" (for sqlite the URL is a file path or file: URI).
func Open(dbType, url string) (*sql.DB, Dialect, error) {
	switch dbType {
	case "postgres":
		conn, err := sql.Open("postgres", url)
		return conn, Postgres, err
	case "sqlite", "":
		conn, err := sql.Open("sqlite", url)
		return conn, SQLite, err
	default:
		return nil, "", fmt.Errorf("unknown database type %q", dbType)
	}
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either driver. Races on draws, votes, and audit sequence numbers are
// settled by unique indexes, so callers branch on this.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Elections
CREATE TABLE IF NOT EXISTS election (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('draft', 'open', 'ended')),
    lottery_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    lottery_winner_count INTEGER NOT NULL DEFAULT 0,
    lottery_reward_type TEXT NOT NULL DEFAULT 'monetary' CHECK (lottery_reward_type IN ('monetary', 'non_monetary')),
    lottery_total_pool TEXT NOT NULL DEFAULT '0',
    lottery_prize_description TEXT,
    lottery_prize_distribution TEXT,
    end_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_election_status ON election(status);

-- Votes (one per voter per election)
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    choice TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (election_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_election_id ON vote(election_id);

-- Lottery tickets (minted when a vote is cast, immutable)
CREATE TABLE IF NOT EXISTS lottery_ticket (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    ticket_number INTEGER NOT NULL,
    ball_number INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (election_id, user_id),
    UNIQUE (election_id, ticket_number)
);

CREATE INDEX IF NOT EXISTS idx_ticket_election_id ON lottery_ticket(election_id);

-- Draws (at most one per election; the row's existence is the drawn flag)
CREATE TABLE IF NOT EXISTS draw (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL UNIQUE REFERENCES election(id) ON DELETE CASCADE,
    total_participants INTEGER NOT NULL,
    winner_count INTEGER NOT NULL,
    random_seed TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'completed',
    metadata TEXT NOT NULL,
    drawn_at TIMESTAMP NOT NULL
);

-- Winners (rank 1..N per election, never deleted)
CREATE TABLE IF NOT EXISTS winner (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL REFERENCES election(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    ticket_id TEXT NOT NULL REFERENCES lottery_ticket(id),
    rank INTEGER NOT NULL,
    prize_amount TEXT NOT NULL DEFAULT '0',
    prize_percentage TEXT NOT NULL DEFAULT '0',
    prize_type TEXT NOT NULL,
    prize_description TEXT,
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    claimed_at TIMESTAMP,
    disbursement_status TEXT NOT NULL,
    disbursed_at TIMESTAMP,
    UNIQUE (election_id, rank),
    UNIQUE (election_id, ticket_id)
);

CREATE INDEX IF NOT EXISTS idx_winner_election_id ON winner(election_id);
CREATE INDEX IF NOT EXISTS idx_winner_user_id ON winner(user_id);

-- Audit events (append-only hash chain; seq is the chain order and the
-- fork guard: two appends claiming the same predecessor collide on it)
CREATE TABLE IF NOT EXISTS audit_event (
    id TEXT PRIMARY KEY,
    seq BIGINT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    actor_id TEXT NOT NULL,
    actor_role TEXT NOT NULL,
    election_id TEXT,
    payload TEXT NOT NULL,
    client_ip TEXT,
    user_agent TEXT,
    prev_hash TEXT,
    hash TEXT NOT NULL,
    hashed_at TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_event_election_id ON audit_event(election_id);
CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_event(event_type);

-- Wallets (balance in integer cents, credited by atomic increment)
CREATE TABLE IF NOT EXISTS wallet (
    user_id TEXT PRIMARY KEY,
    balance_cents BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS wallet_transaction (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount_cents BIGINT NOT NULL,
    election_id TEXT,
    description TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wallet_transaction_user_id ON wallet_transaction(user_id);
`
