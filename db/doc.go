// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connection, schema creation, and dialect
detection.

# Opening a Connection

Open selects the driver from the configured database type:

	conn, dialect, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

Production runs on PostgreSQL (lib/pq); tests and local development run on
SQLite (modernc.org/sqlite). All queries use $N placeholders in ascending
first-use order, which bind positionally under both drivers.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - election: Election metadata and lottery configuration
  - vote: One vote per voter per election
  - lottery_ticket: Immutable lottery entries, minted on vote
  - draw: At most one draw per election (UNIQUE on election_id)
  - winner: Ranked winners with prize and disbursement state
  - audit_event: Append-only hash chain (UNIQUE on seq)
  - wallet, wallet_transaction: Integer-cent balances and ledger entries

# Race Arbitration

Concurrent writers are settled by unique indexes, not application locks:
a second draw for the same election, a second vote from the same voter, or
two audit appends claiming the same chain position all fail their INSERT.
IsUniqueViolation recognizes that failure for both drivers.
*/
package db
