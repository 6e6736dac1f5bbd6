// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"fmt"

	"github.com/votelot/server/models"
)

// VerifyResult reports a full-chain check. BrokenSeqs lists the sequence
// numbers where the replay found tampering: a wrong hash, a broken
// predecessor link, or a gap in the numbering.
type VerifyResult struct {
	Valid      bool    `json:"valid"`
	EventCount int     `json:"event_count"`
	BrokenSeqs []int64 `json:"broken_seqs,omitempty"`
}

// Verify replays the whole stored chain and recomputes every hash.
func (l *Ledger) Verify(ctx context.Context) (*VerifyResult, error) {
	events, err := l.chain(ctx)
	if err != nil {
		return nil, err
	}
	result := VerifyEvents(events)
	return &result, nil
}

// VerifyEvents checks a chain already in ascending seq order. It is pure
// so exported chains can be checked offline.
func VerifyEvents(events []models.AuditEvent) VerifyResult {
	result := VerifyResult{Valid: true, EventCount: len(events)}

	var prevSeq int64
	var prevHash *string
	for _, e := range events {
		broken := false

		if e.Seq != prevSeq+1 {
			broken = true
		}

		switch {
		case prevHash == nil && e.PrevHash != nil:
			broken = true
		case prevHash != nil && (e.PrevHash == nil || *e.PrevHash != *prevHash):
			broken = true
		}

		expected, err := ComputeHash(e.EventType, e.Payload, e.HashedAt, e.PrevHash)
		if err != nil || expected != e.Hash {
			broken = true
		}

		if broken {
			result.Valid = false
			result.BrokenSeqs = append(result.BrokenSeqs, e.Seq)
		}

		prevSeq = e.Seq
		hash := e.Hash
		prevHash = &hash
	}
	return result
}

// chain loads every event in chain order.
func (l *Ledger) chain(ctx context.Context) ([]models.AuditEvent, error) {
	return l.chainScoped(ctx, "")
}

func (l *Ledger) chainScoped(ctx context.Context, electionID string) ([]models.AuditEvent, error) {
	query := `
		SELECT id, seq, event_type, actor_id, actor_role, election_id, payload, client_ip, user_agent, prev_hash, hash, hashed_at, created_at
		FROM audit_event`
	args := []any{}
	if electionID != "" {
		query += " WHERE election_id = $1"
		args = append(args, electionID)
	}
	query += " ORDER BY seq ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit chain: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// TrailFilter narrows a Trail query. Zero value means newest 50 events.
type TrailFilter struct {
	ElectionID string
	EventType  string
	Limit      int
	Offset     int
}

// Trail returns events newest-first for display, filtered and paginated.
func (l *Ledger) Trail(ctx context.Context, f TrailFilter) ([]models.AuditEvent, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := `
		SELECT id, seq, event_type, actor_id, actor_role, election_id, payload, client_ip, user_agent, prev_hash, hash, hashed_at, created_at
		FROM audit_event WHERE 1=1`
	args := []any{}
	if f.ElectionID != "" {
		args = append(args, f.ElectionID)
		query += fmt.Sprintf(" AND election_id = $%d", len(args))
	}
	if f.EventType != "" {
		args = append(args, f.EventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}
