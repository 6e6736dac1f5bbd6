// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/votelot/server/db"
	"github.com/votelot/server/models"
)

// Event types recorded in the ledger.
const (
	EventElectionCreated = "election_created"
	EventVoteCast        = "vote_cast"
	EventElectionEnded   = "election_ended"
	EventLotteryDrawn    = "lottery_drawn"
	EventPrizeClaimed    = "prize_claimed"
	EventPrizeDisbursed  = "prize_disbursed"
)

// appendRetries bounds how often a standalone append re-runs after losing
// a sequence-number race to a concurrent writer.
const appendRetries = 3

var ErrAppendContention = errors.New("audit append lost the sequence race repeatedly")

// Entry is what callers hand the ledger. Everything chain-related (seq,
// prev_hash, hash, timestamps) is computed at append time.
type Entry struct {
	EventType  string
	ActorID    string
	ActorRole  string
	ElectionID *string
	Payload    any
	ClientIP   string
	UserAgent  string
}

// Ledger appends to and verifies a single global hash chain stored in the
// audit_event table. Every event's hash covers its content and its
// predecessor's hash, so editing or deleting any historical row breaks
// every hash after it.
type Ledger struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewLedger(conn *sql.DB, dialect db.Dialect) *Ledger {
	return &Ledger{db: conn, dialect: dialect}
}

// Append writes one event in its own transaction. Two writers that read
// the same chain head both compute the same seq; the UNIQUE(seq) index
// fails the loser, which retries against the new head.
func (l *Ledger) Append(ctx context.Context, e Entry) (*models.AuditEvent, error) {
	for attempt := 0; attempt < appendRetries; attempt++ {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin audit transaction: %w", err)
		}

		event, err := l.appendOne(ctx, tx, e)
		if err != nil {
			tx.Rollback()
			if db.IsUniqueViolation(err) {
				continue
			}
			return nil, err
		}

		if err := tx.Commit(); err != nil {
			if db.IsUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("failed to commit audit event: %w", err)
		}
		return event, nil
	}
	return nil, ErrAppendContention
}

// AppendTx writes one event inside the caller's transaction. No retry:
// a sequence collision aborts the caller's whole transaction, which is
// the point when the event records a state change made in it.
func (l *Ledger) AppendTx(ctx context.Context, tx db.Queryer, e Entry) (*models.AuditEvent, error) {
	return l.appendOne(ctx, tx, e)
}

func (l *Ledger) appendOne(ctx context.Context, q db.Queryer, e Entry) (*models.AuditEvent, error) {
	headQuery := `SELECT seq, hash FROM audit_event ORDER BY seq DESC LIMIT 1`
	if l.dialect == db.Postgres {
		headQuery += ` FOR UPDATE`
	}

	var seq int64 = 1
	var prevHash *string
	var headSeq int64
	var headHash string
	err := q.QueryRowContext(ctx, headQuery).Scan(&headSeq, &headHash)
	switch {
	case err == nil:
		seq = headSeq + 1
		prevHash = &headHash
	case errors.Is(err, sql.ErrNoRows):
		// Empty chain; this event becomes the genesis.
	default:
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	now := time.Now().UTC()
	hashedAt := now.Format(time.RFC3339Nano)
	hash, err := ComputeHash(e.EventType, payload, hashedAt, prevHash)
	if err != nil {
		return nil, err
	}

	event := &models.AuditEvent{
		ID:         uuid.NewString(),
		Seq:        seq,
		EventType:  e.EventType,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		ElectionID: e.ElectionID,
		Payload:    payload,
		ClientIP:   e.ClientIP,
		UserAgent:  e.UserAgent,
		PrevHash:   prevHash,
		Hash:       hash,
		HashedAt:   hashedAt,
		CreatedAt:  now,
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_event (id, seq, event_type, actor_id, actor_role, election_id, payload, client_ip, user_agent, prev_hash, hash, hashed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		event.ID, event.Seq, event.EventType, event.ActorID, event.ActorRole,
		event.ElectionID, string(event.Payload), event.ClientIP, event.UserAgent,
		event.PrevHash, event.Hash, event.HashedAt, event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// chainPreimage is the canonical hashed form of an event. Field order is
// fixed by this struct, so the same event always serializes to the same
// bytes on append and on verify.
type chainPreimage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// ComputeHash hashes one event: SHA256(canonical(type, payload, hashedAt)
// followed by the previous hash, or nothing for the genesis event).
func ComputeHash(eventType string, payload json.RawMessage, hashedAt string, prevHash *string) (string, error) {
	canonical, err := json.Marshal(chainPreimage{
		Type:      eventType,
		Data:      payload,
		Timestamp: hashedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize audit event: %w", err)
	}

	h := sha256.New()
	h.Write(canonical)
	if prevHash != nil {
		h.Write([]byte(*prevHash))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
