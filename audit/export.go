// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/votelot/server/models"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Export streams events to w in chain order, for offline archival or
// independent verification with VerifyEvents. A non-empty electionID
// exports only that election's events; such a slice is a report, not a
// verifiable chain, because links to events outside it are cut.
func (l *Ledger) Export(ctx context.Context, w io.Writer, format, electionID string) error {
	events, err := l.chainScoped(ctx, electionID)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)

	case FormatCSV:
		cw := csv.NewWriter(w)
		header := []string{"seq", "id", "event_type", "actor_id", "actor_role", "election_id", "payload", "client_ip", "user_agent", "prev_hash", "hash", "hashed_at"}
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, e := range events {
			electionID := ""
			if e.ElectionID != nil {
				electionID = *e.ElectionID
			}
			prevHash := ""
			if e.PrevHash != nil {
				prevHash = *e.PrevHash
			}
			record := []string{
				strconv.FormatInt(e.Seq, 10), e.ID, e.EventType, e.ActorID, e.ActorRole,
				electionID, string(e.Payload), e.ClientIP, e.UserAgent, prevHash, e.Hash, e.HashedAt,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func scanEvents(rows *sql.Rows) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var electionID, clientIP, userAgent, prevHash sql.NullString
		var payload string
		if err := rows.Scan(&e.ID, &e.Seq, &e.EventType, &e.ActorID, &e.ActorRole,
			&electionID, &payload, &clientIP, &userAgent, &prevHash,
			&e.Hash, &e.HashedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if electionID.Valid {
			e.ElectionID = &electionID.String
		}
		e.ClientIP = clientIP.String
		e.UserAgent = userAgent.String
		if prevHash.Valid {
			e.PrevHash = &prevHash.String
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}
