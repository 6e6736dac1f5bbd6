// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lottery

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votelot/server/models"
)

func makeTickets(n int) []models.LotteryTicket {
	tickets := make([]models.LotteryTicket, n)
	for i := range tickets {
		tickets[i] = models.LotteryTicket{
			ID:           fmt.Sprintf("ticket-%d", i+1),
			ElectionID:   "election-1",
			UserID:       fmt.Sprintf("user-%d", i+1),
			TicketNumber: i + 1,
			BallNumber:   BallNumber(fmt.Sprintf("user-%d", i+1)),
		}
	}
	return tickets
}

func TestSelectWinners(t *testing.T) {
	t.Run("winners are distinct tickets from the pool", func(t *testing.T) {
		tickets := makeTickets(20)
		sel, err := SelectWinners(tickets, 5)
		require.NoError(t, err)
		require.Len(t, sel.Winners, 5)
		require.Len(t, sel.Seed, 64)

		seen := make(map[string]bool)
		valid := make(map[string]bool)
		for _, tk := range tickets {
			valid[tk.ID] = true
		}
		for _, w := range sel.Winners {
			assert.False(t, seen[w.ID], "ticket %s selected twice", w.ID)
			assert.True(t, valid[w.ID], "ticket %s not in the pool", w.ID)
			seen[w.ID] = true
		}
	})

	t.Run("winner count clamps to pool size", func(t *testing.T) {
		sel, err := SelectWinners(makeTickets(3), 10)
		require.NoError(t, err)
		assert.Len(t, sel.Winners, 3)
	})

	t.Run("empty pool", func(t *testing.T) {
		_, err := SelectWinners(nil, 1)
		assert.ErrorIs(t, err, ErrNoParticipants)
	})

	t.Run("zero winner count", func(t *testing.T) {
		_, err := SelectWinners(makeTickets(5), 0)
		assert.ErrorIs(t, err, ErrInvalidWinnerCount)
	})
}

func TestVerifySelection(t *testing.T) {
	tickets := makeTickets(50)
	sel, err := SelectWinners(tickets, 7)
	require.NoError(t, err)

	t.Run("replay reproduces the draw", func(t *testing.T) {
		replayed, err := VerifySelection(sel.Seed, tickets, 7)
		require.NoError(t, err)
		require.Len(t, replayed, 7)
		for i, w := range replayed {
			assert.Equal(t, sel.Winners[i].ID, w.ID, "rank %d diverged", i+1)
		}
	})

	t.Run("replay ignores ticket load order", func(t *testing.T) {
		reversed := make([]models.LotteryTicket, len(tickets))
		for i, tk := range tickets {
			reversed[len(tickets)-1-i] = tk
		}
		replayed, err := VerifySelection(sel.Seed, reversed, 7)
		require.NoError(t, err)
		for i, w := range replayed {
			assert.Equal(t, sel.Winners[i].ID, w.ID, "rank %d diverged", i+1)
		}
	})

	t.Run("different seed gives a different draw", func(t *testing.T) {
		other, err := RandomSeedHex()
		require.NoError(t, err)
		replayed, err := VerifySelection(other, tickets, 7)
		require.NoError(t, err)

		same := true
		for i := range replayed {
			if replayed[i].ID != sel.Winners[i].ID {
				same = false
				break
			}
		}
		assert.False(t, same, "two seeds produced an identical 7-of-50 draw")
	})
}

func TestSelectionUniformity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping selection frequency test in short mode")
	}

	// Single-winner draws from a pool of 10: each ticket should win about
	// a tenth of the time.
	const draws = 20000
	tickets := makeTickets(10)
	wins := make(map[string]int)
	for i := 0; i < draws; i++ {
		sel, err := SelectWinners(tickets, 1)
		require.NoError(t, err)
		wins[sel.Winners[0].ID]++
	}

	expected := float64(draws) / float64(len(tickets))
	for _, tk := range tickets {
		assert.InDelta(t, expected, float64(wins[tk.ID]), expected*0.1,
			"ticket %s won %d of %d", tk.ID, wins[tk.ID], draws)
	}
}
