// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package notify delivers winner notifications. Delivery is best effort
// and runs after the draw commits; a draw's validity never depends on
// anyone being told about it.
package notify

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/votelot/server/models"
)

// Notifier is implemented by delivery channels. LogNotifier is the
// built-in one; mail or push channels plug in behind the same interface.
type Notifier interface {
	NotifyWinner(ctx context.Context, winner models.WinnerRecord, electionTitle string) error
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyWinner(_ context.Context, winner models.WinnerRecord, electionTitle string) error {
	prize := winner.PrizeDescription
	if winner.PrizeType == models.RewardMonetary {
		if amount, err := decimal.NewFromString(winner.PrizeAmount); err == nil {
			prize = "$" + humanize.CommafWithDigits(amount.InexactFloat64(), 2)
		} else {
			prize = winner.PrizeAmount
		}
	}

	n.logger.Info("winner notification",
		"user_id", winner.UserID,
		"election", electionTitle,
		"rank", humanize.Ordinal(winner.Rank),
		"prize", prize,
	)
	return nil
}
