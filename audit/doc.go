// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package audit maintains the append-only hash-chained event ledger.

# Chain Structure

Events form a single global chain ordered by seq. Each event's hash is
SHA256 over a canonical serialization of its type, payload, and hashing
timestamp, concatenated with the previous event's hash (nothing for the
genesis event). Any edit, deletion, or reordering of a historical row
invalidates every hash downstream of it.

# Serialized Appends

Appends are serialized through the database rather than an in-process
lock, so multiple server instances can share one chain. On Postgres the
writer locks the chain head row with FOR UPDATE; on both backends the
UNIQUE index on seq is the arbiter of last resort: two writers that
extend the same head collide on seq and the loser retries. AppendTx joins
a caller's transaction instead, so the recorded fact and the recorded
event commit or roll back together.

# Verification and Export

Verify replays the stored chain; VerifyEvents does the same for an
exported copy, so auditors can check a chain they were handed without
database access. Export emits the chain as JSON or CSV.
*/
package audit
