// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/auth"
	"github.com/votelot/server/config"
	"github.com/votelot/server/db"
	"github.com/votelot/server/lottery"
	"github.com/votelot/server/middleware"
	"github.com/votelot/server/models"
)

type VoteHandler struct {
	db     *sql.DB
	cfg    config.Config
	ledger *audit.Ledger
}

func NewVoteHandler(conn *sql.DB, cfg config.Config, ledger *audit.Ledger) *VoteHandler {
	return &VoteHandler{db: conn, cfg: cfg, ledger: ledger}
}

// castRetries bounds retries when two first-time voters race for the same
// ticket number.
const castRetries = 3

// CastVote handles POST /elections/{id}/votes. The vote, its lottery
// ticket, and the vote_cast audit event commit in one transaction.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Choice == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "choice is required")
		return
	}

	election, err := loadElection(h.db, electionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if err != nil {
		slog.Error("failed to query election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if election.Status != models.StatusOpen || time.Now().After(election.EndAt) {
		middleware.ErrorResponse(w, http.StatusConflict, "Election is not open for voting")
		return
	}

	var resp models.CastVoteResponse
	for attempt := 0; attempt < castRetries; attempt++ {
		resp, err = h.castOnce(r, election, userID, req.Choice)
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err) {
			// Either a duplicate vote or a lost ticket-number race. A
			// duplicate vote shows up as an existing row now.
			var exists int
			checkErr := h.db.QueryRow(`SELECT 1 FROM vote WHERE election_id = $1 AND user_id = $2`,
				electionID, userID).Scan(&exists)
			if checkErr == nil {
				middleware.ErrorResponse(w, http.StatusConflict, "Already voted in this election")
				return
			}
			continue
		}
		break
	}
	if err != nil {
		slog.Error("failed to cast vote", "election_id", electionID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast vote")
		return
	}

	slog.Info("vote cast", "election_id", electionID, "ticket_number", resp.TicketNumber)
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

func (h *VoteHandler) castOnce(r *http.Request, election *models.Election, userID, choice string) (models.CastVoteResponse, error) {
	ctx := r.Context()
	now := time.Now().UTC()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return models.CastVoteResponse{}, err
	}
	defer tx.Rollback()

	voteID, err := auth.GenerateID(16)
	if err != nil {
		return models.CastVoteResponse{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (id, election_id, user_id, choice, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		voteID, election.ID, userID, choice, now)
	if err != nil {
		return models.CastVoteResponse{}, err
	}

	resp := models.CastVoteResponse{VoteID: voteID}
	if election.LotteryEnabled {
		var ticketNumber int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ticket_number), 0) + 1 FROM lottery_ticket WHERE election_id = $1`,
			election.ID).Scan(&ticketNumber)
		if err != nil {
			return models.CastVoteResponse{}, err
		}

		ticketID, err := auth.GenerateID(16)
		if err != nil {
			return models.CastVoteResponse{}, err
		}
		ballNumber := lottery.BallNumber(userID)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lottery_ticket (id, election_id, user_id, ticket_number, ball_number, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			ticketID, election.ID, userID, ticketNumber, ballNumber, now)
		if err != nil {
			return models.CastVoteResponse{}, err
		}

		resp.TicketID = ticketID
		resp.TicketNumber = ticketNumber
		resp.BallNumber = ballNumber
	}

	// The ballot choice stays out of the audit trail; the trail proves a
	// vote happened, not what it was.
	payload := map[string]any{"vote_id": voteID}
	if resp.TicketID != "" {
		payload["ticket_number"] = resp.TicketNumber
	}
	_, err = h.ledger.AppendTx(ctx, tx, audit.Entry{
		EventType:  audit.EventVoteCast,
		ActorID:    userID,
		ActorRole:  "voter",
		ElectionID: &election.ID,
		Payload:    payload,
		ClientIP:   auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		return models.CastVoteResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.CastVoteResponse{}, err
	}
	return resp, nil
}

// GetMyTicket handles GET /elections/{id}/tickets/me
func (h *VoteHandler) GetMyTicket(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var t models.LotteryTicket
	err := h.db.QueryRow(`
		SELECT id, election_id, user_id, ticket_number, ball_number, created_at
		FROM lottery_ticket WHERE election_id = $1 AND user_id = $2`,
		electionID, userID).Scan(&t.ID, &t.ElectionID, &t.UserID, &t.TicketNumber, &t.BallNumber, &t.CreatedAt)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No ticket for this election")
		return
	}
	if err != nil {
		slog.Error("failed to query ticket", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, t)
}
