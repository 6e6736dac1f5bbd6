// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/votelot/server/auth"
	"github.com/votelot/server/config"
	"github.com/votelot/server/draw"
	"github.com/votelot/server/lottery"
	"github.com/votelot/server/middleware"
	"github.com/votelot/server/models"
)

type DrawHandler struct {
	db          *sql.DB
	cfg         config.Config
	coordinator *draw.Coordinator
}

func NewDrawHandler(conn *sql.DB, cfg config.Config, coordinator *draw.Coordinator) *DrawHandler {
	return &DrawHandler{db: conn, cfg: cfg, coordinator: coordinator}
}

// ExecuteDraw handles POST /elections/{id}/draw
func (h *DrawHandler) ExecuteDraw(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	result, err := h.coordinator.ExecuteDraw(r.Context(), draw.Request{
		ElectionID: electionID,
		ActorID:    userID,
		ClientIP:   auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, draw.ErrElectionNotFound):
			middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		case errors.Is(err, draw.ErrUnauthorized):
			middleware.ErrorResponse(w, http.StatusForbidden, "Admin or election manager role required")
		case errors.Is(err, draw.ErrLotteryNotEnabled):
			middleware.ErrorResponse(w, http.StatusConflict, "Lottery is not enabled for this election")
		case errors.Is(err, draw.ErrAlreadyDrawn):
			middleware.ErrorResponse(w, http.StatusConflict, "Lottery already drawn for this election")
		case errors.Is(err, draw.ErrDrawInProgress):
			middleware.ErrorResponse(w, http.StatusConflict, "A draw is already in progress")
		case errors.Is(err, lottery.ErrNoParticipants):
			middleware.ErrorResponse(w, http.StatusConflict, "No lottery participants")
		default:
			slog.Error("draw failed", "election_id", electionID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Draw failed")
		}
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, result)
}

// GetDraw handles GET /elections/{id}/draw
func (h *DrawHandler) GetDraw(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")

	record, winners, err := h.loadDraw(electionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No draw for this election")
		return
	}
	if err != nil {
		slog.Error("failed to load draw", "election_id", electionID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"draw":    record,
		"winners": winners,
	})
}

// VerifyDraw handles GET /elections/{id}/draw/verify. It replays the
// recorded seed over the recorded tickets and reports whether the stored
// winner list matches.
func (h *DrawHandler) VerifyDraw(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")

	record, winners, err := h.loadDraw(electionID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "No draw for this election")
		return
	}
	if err != nil {
		slog.Error("failed to load draw", "election_id", electionID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT id, election_id, user_id, ticket_number, ball_number, created_at
		FROM lottery_ticket WHERE election_id = $1 ORDER BY ticket_number ASC`, electionID)
	if err != nil {
		slog.Error("failed to load tickets", "election_id", electionID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	var tickets []models.LotteryTicket
	for rows.Next() {
		var t models.LotteryTicket
		if err := rows.Scan(&t.ID, &t.ElectionID, &t.UserID, &t.TicketNumber, &t.BallNumber, &t.CreatedAt); err != nil {
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		tickets = append(tickets, t)
	}

	expected, err := lottery.VerifySelection(record.RandomSeed, tickets, record.WinnerCount)
	if err != nil {
		slog.Error("failed to replay draw", "election_id", electionID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Replay failed")
		return
	}

	resp := models.VerifyDrawResponse{
		RandomSeed: record.RandomSeed,
		Expected:   make([]string, 0, len(expected)),
		Recorded:   make([]string, 0, len(winners)),
	}
	for _, t := range expected {
		resp.Expected = append(resp.Expected, t.ID)
	}
	for _, win := range winners {
		resp.Recorded = append(resp.Recorded, win.TicketID)
	}
	resp.Verified = len(resp.Expected) == len(resp.Recorded)
	if resp.Verified {
		for i := range resp.Expected {
			if resp.Expected[i] != resp.Recorded[i] {
				resp.Verified = false
				break
			}
		}
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

func (h *DrawHandler) loadDraw(electionID string) (*models.DrawRecord, []models.WinnerRecord, error) {
	var record models.DrawRecord
	var metadata string
	err := h.db.QueryRow(`
		SELECT id, election_id, total_participants, winner_count, random_seed, status, metadata, drawn_at
		FROM draw WHERE election_id = $1`, electionID).Scan(
		&record.ID, &record.ElectionID, &record.TotalParticipants, &record.WinnerCount,
		&record.RandomSeed, &record.Status, &metadata, &record.DrawnAt)
	if err != nil {
		return nil, nil, err
	}
	record.Metadata = json.RawMessage(metadata)

	rows, err := h.db.Query(`
		SELECT id, election_id, user_id, ticket_id, rank, prize_amount, prize_percentage, prize_type, prize_description, claimed, claimed_at, disbursement_status, disbursed_at
		FROM winner WHERE election_id = $1 ORDER BY rank ASC`, electionID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var winners []models.WinnerRecord
	for rows.Next() {
		win, err := scanWinner(rows)
		if err != nil {
			return nil, nil, err
		}
		winners = append(winners, win)
	}
	return &record, winners, rows.Err()
}
