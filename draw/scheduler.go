// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/votelot/server/lottery"
)

// Scheduler sweeps for elections whose end time has passed without a draw
// and draws them automatically. Sweeps are idempotent: an election another
// instance drew first just fails the AlreadyDrawn guard and is skipped.
type Scheduler struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      *slog.Logger
}

func NewScheduler(coordinator *Coordinator, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{coordinator: coordinator, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	drawn, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Error("auto-draw sweep failed", "error", err)
		return
	}
	if drawn > 0 {
		s.logger.Info("auto-draw sweep completed", "drawn", drawn)
	}
}

// SweepOnce draws every eligible election and returns how many draws
// succeeded. One election failing does not stop the sweep.
func (s *Scheduler) SweepOnce(ctx context.Context) (int, error) {
	rows, err := s.coordinator.db.QueryContext(ctx, `
		SELECT e.id FROM election e
		LEFT JOIN draw d ON d.election_id = e.id
		WHERE e.lottery_enabled AND e.end_at <= $1 AND d.id IS NULL
		ORDER BY e.end_at ASC`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to find undrawn elections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan election id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	drawn := 0
	for _, id := range ids {
		_, err := s.coordinator.ExecuteDraw(ctx, Request{ElectionID: id, Auto: true})
		switch {
		case err == nil:
			drawn++
		case errors.Is(err, ErrAlreadyDrawn), errors.Is(err, ErrDrawInProgress):
			// Another instance got there first.
		case errors.Is(err, lottery.ErrNoParticipants):
			s.logger.Info("skipping auto-draw with no participants", "election_id", id)
		default:
			s.logger.Error("auto-draw failed", "election_id", id, "error", err)
		}
	}
	return drawn, nil
}
