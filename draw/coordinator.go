// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/db"
	"github.com/votelot/server/lock"
	"github.com/votelot/server/lottery"
	"github.com/votelot/server/models"
	"github.com/votelot/server/notify"
	"github.com/votelot/server/rolesvc"
	"github.com/votelot/server/wallet"
)

var (
	ErrElectionNotFound  = errors.New("election not found")
	ErrUnauthorized      = errors.New("not authorized to trigger a draw")
	ErrElectionNotEnded  = errors.New("election has not ended yet")
	ErrLotteryNotEnabled = errors.New("lottery is not enabled for this election")
	ErrAlreadyDrawn      = errors.New("lottery already drawn for this election")
	ErrDrawInProgress    = errors.New("a draw for this election is already in progress")
)

const lockTTL = 30 * time.Second

// Request describes one draw attempt. Auto draws have no actor; manual
// draws carry the triggering user for authorization and the audit trail.
type Request struct {
	ElectionID string
	ActorID    string
	Auto       bool
	ClientIP   string
	UserAgent  string
}

// Coordinator runs the whole draw as one transaction: winner selection,
// prize allocation, wallet credits, and the audit entry commit together
// or not at all. A failed draw leaves the election undrawn and retryable.
type Coordinator struct {
	db       *sql.DB
	dialect  db.Dialect
	ledger   *audit.Ledger
	wallet   *wallet.Service
	roles    rolesvc.Checker
	locks    lock.Manager
	notifier notify.Notifier
	logger   *slog.Logger

	// Test seam; fires before each winner row insert.
	winnerInsertHook func(rank int) error
}

func NewCoordinator(
	conn *sql.DB,
	dialect db.Dialect,
	ledger *audit.Ledger,
	walletSvc *wallet.Service,
	roles rolesvc.Checker,
	locks lock.Manager,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		db:       conn,
		dialect:  dialect,
		ledger:   ledger,
		wallet:   walletSvc,
		roles:    roles,
		locks:    locks,
		notifier: notifier,
		logger:   logger,
	}
}

// ExecuteDraw validates preconditions, selects winners, allocates prizes,
// credits wallets, and appends the lottery_drawn audit event, all inside
// one transaction. The unique index on draw(election_id) settles races
// between concurrent attempts; the loser rolls back cleanly.
func (c *Coordinator) ExecuteDraw(ctx context.Context, req Request) (*models.DrawResult, error) {
	actorRole := "system"
	if !req.Auto {
		roles, err := c.roles.RolesFor(ctx, req.ActorID)
		if err != nil {
			// Role service down: deny rather than guess.
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		if !roles.CanManageDraws() {
			return nil, ErrUnauthorized
		}
		if roles.Has(rolesvc.RoleAdmin) {
			actorRole = rolesvc.RoleAdmin
		} else {
			actorRole = rolesvc.RoleManager
		}
	}

	release, err := c.locks.Acquire(ctx, req.ElectionID, lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrAlreadyLocked) {
			return nil, ErrDrawInProgress
		}
		return nil, err
	}
	defer release()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin draw transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	election, err := loadElection(ctx, tx, req.ElectionID)
	if err != nil {
		return nil, err
	}
	beforeEnd := now.Before(election.EndAt)
	if req.Auto && beforeEnd {
		return nil, ErrElectionNotEnded
	}
	if !election.LotteryEnabled {
		return nil, ErrLotteryNotEnabled
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM draw WHERE election_id = $1`, req.ElectionID).Scan(&exists)
	if err == nil {
		return nil, ErrAlreadyDrawn
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for existing draw: %w", err)
	}

	tickets, err := loadTickets(ctx, tx, req.ElectionID)
	if err != nil {
		return nil, err
	}

	selection, err := lottery.SelectWinners(tickets, election.LotteryWinnerCount)
	if err != nil {
		return nil, err
	}

	reward, err := lottery.RewardFor(*election)
	if err != nil {
		return nil, err
	}
	shares, err := lottery.Allocate(selection.Winners, reward)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(models.DrawMetadata{
		RewardType:       election.LotteryRewardType,
		TotalPool:        election.LotteryTotalPool,
		Distribution:     election.LotteryDistribution,
		PrizeDescription: election.LotteryPrizeDesc,
		AutoDrawn:        req.Auto,
		BeforeEnd:        beforeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draw metadata: %w", err)
	}

	drawID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO draw (id, election_id, total_participants, winner_count, random_seed, status, metadata, drawn_at)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6, $7)`,
		drawID, req.ElectionID, len(tickets), len(selection.Winners), selection.Seed, string(metadata), now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyDrawn
		}
		return nil, fmt.Errorf("failed to persist draw: %w", err)
	}

	winners := make([]models.WinnerRecord, 0, len(shares))
	for _, share := range shares {
		if c.winnerInsertHook != nil {
			if err := c.winnerInsertHook(share.Rank); err != nil {
				return nil, err
			}
		}

		record := models.WinnerRecord{
			ID:              uuid.NewString(),
			ElectionID:      req.ElectionID,
			UserID:          share.Ticket.UserID,
			TicketID:        share.Ticket.ID,
			Rank:            share.Rank,
			PrizeAmount:     share.Amount.String(),
			PrizePercentage: share.Percentage.String(),
			PrizeType:       share.Type,
		}
		if share.Type == models.RewardMonetary {
			record.DisbursementStatus = models.DisbursementPendingApproval
		} else {
			record.PrizeDescription = share.Description
			record.DisbursementStatus = models.DisbursementPendingClaim
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO winner (id, election_id, user_id, ticket_id, rank, prize_amount, prize_percentage, prize_type, prize_description, disbursement_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			record.ID, record.ElectionID, record.UserID, record.TicketID, record.Rank,
			record.PrizeAmount, record.PrizePercentage, record.PrizeType,
			record.PrizeDescription, record.DisbursementStatus)
		if err != nil {
			return nil, fmt.Errorf("failed to persist winner rank %d: %w", share.Rank, err)
		}

		if cents := wallet.Cents(share.Amount); share.Type == models.RewardMonetary && cents > 0 {
			if err := c.wallet.Credit(ctx, tx, record.UserID, cents, now); err != nil {
				return nil, err
			}
			desc := fmt.Sprintf("Prize for rank %d in election %s", share.Rank, election.Title)
			if err := c.wallet.RecordTransaction(ctx, tx, models.TxPrizeWon, record.UserID, cents, &req.ElectionID, desc, now); err != nil {
				return nil, err
			}
		}

		winners = append(winners, record)
	}

	actorID := req.ActorID
	if req.Auto {
		actorID = "scheduler"
	}
	_, err = c.ledger.AppendTx(ctx, tx, audit.Entry{
		EventType:  audit.EventLotteryDrawn,
		ActorID:    actorID,
		ActorRole:  actorRole,
		ElectionID: &req.ElectionID,
		Payload: map[string]any{
			"draw_id":            drawID,
			"random_seed":        selection.Seed,
			"total_participants": len(tickets),
			"winners":            winners,
			"auto_drawn":         req.Auto,
			"before_end":         beforeEnd,
		},
		ClientIP:  req.ClientIP,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append draw audit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyDrawn
		}
		return nil, fmt.Errorf("failed to commit draw: %w", err)
	}

	result := &models.DrawResult{
		DrawID:            drawID,
		ElectionID:        req.ElectionID,
		TotalParticipants: len(tickets),
		Winners:           winners,
		RandomSeed:        selection.Seed,
	}

	// Best effort, after commit; a dead notification channel must never
	// undo or block a completed draw.
	go c.notifyWinners(winners, election.Title)

	c.logger.Info("lottery drawn",
		"election_id", req.ElectionID,
		"draw_id", drawID,
		"participants", len(tickets),
		"winners", len(winners),
		"auto", req.Auto,
	)
	return result, nil
}

func (c *Coordinator) notifyWinners(winners []models.WinnerRecord, electionTitle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range winners {
		if err := c.notifier.NotifyWinner(ctx, w, electionTitle); err != nil {
			c.logger.Warn("winner notification failed",
				"user_id", w.UserID, "election_id", w.ElectionID, "error", err)
		}
	}
}

func loadElection(ctx context.Context, q db.Queryer, electionID string) (*models.Election, error) {
	var e models.Election
	var prizeDesc, distribution sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, title, status, lottery_enabled, lottery_winner_count, lottery_reward_type, lottery_total_pool, lottery_prize_description, lottery_prize_distribution, end_at, created_at
		FROM election WHERE id = $1`, electionID).Scan(
		&e.ID, &e.Title, &e.Status, &e.LotteryEnabled, &e.LotteryWinnerCount,
		&e.LotteryRewardType, &e.LotteryTotalPool, &prizeDesc, &distribution,
		&e.EndAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrElectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load election: %w", err)
	}
	e.LotteryPrizeDesc = prizeDesc.String
	if distribution.Valid && distribution.String != "" {
		if err := json.Unmarshal([]byte(distribution.String), &e.LotteryDistribution); err != nil {
			return nil, fmt.Errorf("failed to parse prize distribution: %w", err)
		}
	}
	return &e, nil
}

func loadTickets(ctx context.Context, q db.Queryer, electionID string) ([]models.LotteryTicket, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, election_id, user_id, ticket_number, ball_number, created_at
		FROM lottery_ticket WHERE election_id = $1 ORDER BY ticket_number ASC`, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.LotteryTicket
	for rows.Next() {
		var t models.LotteryTicket
		if err := rows.Scan(&t.ID, &t.ElectionID, &t.UserID, &t.TicketNumber, &t.BallNumber, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
