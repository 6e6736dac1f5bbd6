// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lottery

import (
	"errors"
	"sort"

	"github.com/votelot/server/models"
)

var (
	ErrNoParticipants     = errors.New("no lottery participants")
	ErrInvalidWinnerCount = errors.New("winner count must be at least 1")
)

// Selection is the outcome of one draw. Winners is in rank order: index 0
// is rank 1. Seed is the hex seed the whole shuffle was derived from.
type Selection struct {
	Winners []models.LotteryTicket
	Seed    string
}

// SelectWinners picks winnerCount winners from the ticket pool. The seed is
// generated first and every shuffle decision is derived from it, so the
// published seed fully determines the result. A winner count larger than the
// pool is clamped to the pool size.
func SelectWinners(tickets []models.LotteryTicket, winnerCount int) (*Selection, error) {
	seed, err := RandomSeedHex()
	if err != nil {
		return nil, err
	}
	winners, err := shuffleWinners(seed, tickets, winnerCount)
	if err != nil {
		return nil, err
	}
	return &Selection{Winners: winners, Seed: seed}, nil
}

// VerifySelection replays a draw from its published seed and returns the
// winner list it produces. Matching the recorded winners proves the draw
// was not tampered with after the fact.
func VerifySelection(seed string, tickets []models.LotteryTicket, winnerCount int) ([]models.LotteryTicket, error) {
	return shuffleWinners(seed, tickets, winnerCount)
}

func shuffleWinners(seed string, tickets []models.LotteryTicket, winnerCount int) ([]models.LotteryTicket, error) {
	if len(tickets) == 0 {
		return nil, ErrNoParticipants
	}
	if winnerCount < 1 {
		return nil, ErrInvalidWinnerCount
	}
	if winnerCount > len(tickets) {
		winnerCount = len(tickets)
	}

	src, err := NewSeededSource(seed)
	if err != nil {
		return nil, err
	}

	// Canonical order before shuffling, so the replay is independent of
	// whatever order the tickets were loaded in.
	pool := make([]models.LotteryTicket, len(tickets))
	copy(pool, tickets)
	sort.Slice(pool, func(i, j int) bool {
		return pool[i].TicketNumber < pool[j].TicketNumber
	})

	// Fisher-Yates, every swap index drawn from the seeded stream.
	for i := len(pool) - 1; i >= 1; i-- {
		j, err := src.UniformInt(0, i)
		if err != nil {
			return nil, err
		}
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:winnerCount], nil
}
