// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/lock"
	"github.com/votelot/server/lottery"
	"github.com/votelot/server/models"
	"github.com/votelot/server/notify"
	"github.com/votelot/server/rolesvc"
	"github.com/votelot/server/testutil"
	"github.com/votelot/server/wallet"
)

func setupCoordinator(t *testing.T) (*Coordinator, *sql.DB) {
	t.Helper()
	conn, dialect := testutil.SetupTestDB(t)
	logger := slog.Default()
	ledger := audit.NewLedger(conn, dialect)
	walletSvc := wallet.NewService(conn)
	roles := rolesvc.StaticChecker{
		"admin-1":   {rolesvc.RoleAdmin},
		"manager-1": {rolesvc.RoleManager},
		"voter-1":   {"voter"},
	}
	return NewCoordinator(conn, dialect, ledger, walletSvc, roles, lock.NewNoopManager(), notify.NewLogNotifier(logger), logger), conn
}

func TestExecuteDrawBasic(t *testing.T) {
	c, conn := setupCoordinator(t)
	electionID := testutil.CreateTestElection(t, conn, models.StatusEnded,
		testutil.WithWinnerCount(3),
		testutil.WithPool("1000"),
		testutil.WithDistribution([]models.PrizeTier{
			{Rank: 1, Percentage: decimal.NewFromInt(50)},
			{Rank: 2, Percentage: decimal.NewFromInt(30)},
			{Rank: 3, Percentage: decimal.NewFromInt(20)},
		}))
	testutil.AddTestVoters(t, conn, electionID, 10)

	result, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	require.NoError(t, err)

	assert.Equal(t, 10, result.TotalParticipants)
	require.Len(t, result.Winners, 3)
	require.Len(t, result.RandomSeed, 64)

	t.Run("winners ranked without gaps and credited", func(t *testing.T) {
		amounts := map[int]string{1: "500", 2: "300", 3: "200"}
		for i, w := range result.Winners {
			assert.Equal(t, i+1, w.Rank)
			assert.Equal(t, models.DisbursementPendingApproval, w.DisbursementStatus)
			want := decimal.RequireFromString(amounts[w.Rank])
			got := decimal.RequireFromString(w.PrizeAmount)
			assert.True(t, got.Equal(want), "rank %d amount %s, want %s", w.Rank, got, want)

			balance, err := wallet.NewService(conn).Balance(context.Background(), w.UserID)
			require.NoError(t, err)
			assert.Equal(t, wallet.Cents(want), balance)
		}
	})

	t.Run("draw is reproducible from the published seed", func(t *testing.T) {
		rows, err := conn.Query(`SELECT id, election_id, user_id, ticket_number, ball_number, created_at FROM lottery_ticket WHERE election_id = $1`, electionID)
		require.NoError(t, err)
		defer rows.Close()
		var tickets []models.LotteryTicket
		for rows.Next() {
			var tk models.LotteryTicket
			require.NoError(t, rows.Scan(&tk.ID, &tk.ElectionID, &tk.UserID, &tk.TicketNumber, &tk.BallNumber, &tk.CreatedAt))
			tickets = append(tickets, tk)
		}

		replayed, err := lottery.VerifySelection(result.RandomSeed, tickets, 3)
		require.NoError(t, err)
		for i, tk := range replayed {
			assert.Equal(t, result.Winners[i].TicketID, tk.ID, "rank %d diverged on replay", i+1)
		}
	})

	t.Run("audit event appended", func(t *testing.T) {
		var count int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM audit_event WHERE event_type = $1 AND election_id = $2`,
			audit.EventLotteryDrawn, electionID).Scan(&count))
		assert.Equal(t, 1, count)
	})
}

func TestExecuteDrawPreconditions(t *testing.T) {
	c, conn := setupCoordinator(t)

	t.Run("election not found", func(t *testing.T) {
		_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: "missing", ActorID: "admin-1"})
		assert.ErrorIs(t, err, ErrElectionNotFound)
	})

	t.Run("unauthorized actor", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, conn, models.StatusEnded)
		_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "voter-1"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("auto draw refuses before end time", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, conn, models.StatusOpen)
		testutil.AddTestVoters(t, conn, electionID, 2)
		_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, Auto: true})
		assert.ErrorIs(t, err, ErrElectionNotEnded)
	})

	t.Run("manual draw may run before end time", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, conn, models.StatusOpen)
		testutil.AddTestVoters(t, conn, electionID, 2)
		result, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "manager-1"})
		require.NoError(t, err)
		assert.Len(t, result.Winners, 1)

		var metadata string
		require.NoError(t, conn.QueryRow(`SELECT metadata FROM draw WHERE election_id = $1`, electionID).Scan(&metadata))
		assert.Contains(t, metadata, `"before_end":true`)
	})

	t.Run("lottery disabled", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, conn, models.StatusEnded, testutil.WithLotteryDisabled())
		_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
		assert.ErrorIs(t, err, ErrLotteryNotEnabled)
	})

	t.Run("empty ticket pool", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, conn, models.StatusEnded)
		_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
		assert.ErrorIs(t, err, lottery.ErrNoParticipants)
	})

	t.Run("role service outage denies manual draws", func(t *testing.T) {
		down := NewCoordinator(c.db, c.dialect, c.ledger, c.wallet, failingChecker{}, c.locks, c.notifier, c.logger)
		electionID := testutil.CreateTestElection(t, conn, models.StatusEnded)
		testutil.AddTestVoters(t, conn, electionID, 2)
		_, err := down.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

type failingChecker struct{}

func (failingChecker) RolesFor(context.Context, string) (rolesvc.Roles, error) {
	return nil, rolesvc.ErrUnavailable
}

func TestExecuteDrawIdempotent(t *testing.T) {
	c, conn := setupCoordinator(t)
	electionID := testutil.CreateTestElection(t, conn, models.StatusEnded)
	testutil.AddTestVoters(t, conn, electionID, 5)

	_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	require.NoError(t, err)

	_, err = c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	assert.ErrorIs(t, err, ErrAlreadyDrawn)

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM winner WHERE election_id = $1`, electionID).Scan(&count))
	assert.Equal(t, 1, count, "second attempt must not add winners")
}

func TestExecuteDrawRollsBackAtomically(t *testing.T) {
	c, conn := setupCoordinator(t)
	electionID := testutil.CreateTestElection(t, conn, models.StatusEnded,
		testutil.WithWinnerCount(3), testutil.WithPool("900"))
	testutil.AddTestVoters(t, conn, electionID, 6)

	injected := errors.New("winner insert blew up")
	c.winnerInsertHook = func(rank int) error {
		if rank == 3 {
			return injected
		}
		return nil
	}

	_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	require.ErrorIs(t, err, injected)

	for _, table := range []string{"draw", "winner"} {
		var count int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE election_id = $1`, electionID).Scan(&count))
		assert.Zero(t, count, "%s rows survived the rollback", table)
	}
	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM wallet_transaction`).Scan(&count))
	assert.Zero(t, count, "wallet credits survived the rollback")
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM audit_event`).Scan(&count))
	assert.Zero(t, count, "audit event survived the rollback")

	// The failed attempt left NOT_DRAWN state; a retry succeeds.
	c.winnerInsertHook = nil
	result, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Len(t, result.Winners, 3)
}

func TestExecuteDrawNonMonetary(t *testing.T) {
	c, conn := setupCoordinator(t)
	electionID := testutil.CreateTestElection(t, conn, models.StatusEnded,
		testutil.WithWinnerCount(2), testutil.WithNonMonetaryPrize("concert tickets"))
	testutil.AddTestVoters(t, conn, electionID, 4)

	result, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	require.NoError(t, err)
	require.Len(t, result.Winners, 2)

	for _, w := range result.Winners {
		assert.Equal(t, models.RewardNonMonetary, w.PrizeType)
		assert.Equal(t, "concert tickets", w.PrizeDescription)
		assert.Equal(t, models.DisbursementPendingClaim, w.DisbursementStatus)
		assert.True(t, decimal.RequireFromString(w.PrizeAmount).IsZero())

		balance, err := wallet.NewService(conn).Balance(context.Background(), w.UserID)
		require.NoError(t, err)
		assert.Zero(t, balance, "non-monetary prizes must not touch wallets")
	}
}

func TestExecuteDrawClampsWinnerCount(t *testing.T) {
	c, conn := setupCoordinator(t)
	electionID := testutil.CreateTestElection(t, conn, models.StatusEnded,
		testutil.WithWinnerCount(10), testutil.WithPool("100"))
	testutil.AddTestVoters(t, conn, electionID, 3)

	result, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Len(t, result.Winners, 3, "winner count larger than the pool clamps")
}

func TestExecuteDrawLockContention(t *testing.T) {
	c, conn := setupCoordinator(t)
	c.locks = heldLock{}
	electionID := testutil.CreateTestElection(t, conn, models.StatusEnded)
	testutil.AddTestVoters(t, conn, electionID, 2)

	_, err := c.ExecuteDraw(context.Background(), Request{ElectionID: electionID, ActorID: "admin-1"})
	assert.ErrorIs(t, err, ErrDrawInProgress)
}

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, lock.ErrAlreadyLocked
}
