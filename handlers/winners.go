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
	"github.com/votelot/server/middleware"
	"github.com/votelot/server/models"
	"github.com/votelot/server/rolesvc"
)

type WinnerHandler struct {
	db     *sql.DB
	cfg    config.Config
	ledger *audit.Ledger
	roles  rolesvc.Checker
}

func NewWinnerHandler(conn *sql.DB, cfg config.Config, ledger *audit.Ledger, roles rolesvc.Checker) *WinnerHandler {
	return &WinnerHandler{db: conn, cfg: cfg, ledger: ledger, roles: roles}
}

// ClaimPrize handles POST /winners/{id}/claim. Only the winning user can
// claim, and only once; the claimed flag never goes back down.
func (h *WinnerHandler) ClaimPrize(w http.ResponseWriter, r *http.Request) {
	winnerID := r.PathValue("id")
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	winner, err := h.loadWinner(winnerID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Winner not found")
		return
	}
	if err != nil {
		slog.Error("failed to query winner", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if winner.UserID != userID {
		middleware.ErrorResponse(w, http.StatusForbidden, "Not your prize")
		return
	}
	if winner.Claimed {
		middleware.ErrorResponse(w, http.StatusConflict, "Prize already claimed")
		return
	}

	now := time.Now().UTC()
	result, err := h.db.Exec(`
		UPDATE winner SET claimed = TRUE, claimed_at = $1 WHERE id = $2 AND claimed = FALSE
	`, now, winnerID)
	if err != nil {
		slog.Error("failed to claim prize", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim prize")
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Prize already claimed")
		return
	}

	_, err = h.ledger.Append(r.Context(), audit.Entry{
		EventType:  audit.EventPrizeClaimed,
		ActorID:    userID,
		ActorRole:  "voter",
		ElectionID: &winner.ElectionID,
		Payload: map[string]any{
			"winner_id": winnerID,
			"rank":      winner.Rank,
		},
		ClientIP:  auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		slog.Error("failed to append prize_claimed audit event", "error", err)
	}

	winner.Claimed = true
	winner.ClaimedAt = &now
	middleware.JSONResponse(w, http.StatusOK, winner)
}

// DisbursePrize handles POST /winners/{id}/disburse. Admin approval that
// moves the prize into its terminal disbursement state.
func (h *WinnerHandler) DisbursePrize(w http.ResponseWriter, r *http.Request) {
	winnerID := r.PathValue("id")
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	roles, err := h.roles.RolesFor(r.Context(), userID)
	if err != nil {
		slog.Warn("role lookup failed, denying disbursement", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusForbidden, "Role service unavailable")
		return
	}
	if !roles.Has(rolesvc.RoleAdmin) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Admin role required")
		return
	}

	winner, err := h.loadWinner(winnerID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Winner not found")
		return
	}
	if err != nil {
		slog.Error("failed to query winner", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if winner.DisbursementStatus == models.DisbursementDisbursed {
		middleware.ErrorResponse(w, http.StatusConflict, "Prize already disbursed")
		return
	}

	now := time.Now().UTC()
	result, err := h.db.Exec(`
		UPDATE winner SET disbursement_status = $1, disbursed_at = $2 WHERE id = $3 AND disbursement_status != $1
	`, models.DisbursementDisbursed, now, winnerID)
	if err != nil {
		slog.Error("failed to disburse prize", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to disburse prize")
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		middleware.ErrorResponse(w, http.StatusConflict, "Prize already disbursed")
		return
	}

	_, err = h.ledger.Append(r.Context(), audit.Entry{
		EventType:  audit.EventPrizeDisbursed,
		ActorID:    userID,
		ActorRole:  rolesvc.RoleAdmin,
		ElectionID: &winner.ElectionID,
		Payload: map[string]any{
			"winner_id":    winnerID,
			"rank":         winner.Rank,
			"prize_amount": winner.PrizeAmount,
		},
		ClientIP:  auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		slog.Error("failed to append prize_disbursed audit event", "error", err)
	}

	slog.Info("prize disbursed", "winner_id", winnerID, "by", userID)
	winner.DisbursementStatus = models.DisbursementDisbursed
	winner.DisbursedAt = &now
	middleware.JSONResponse(w, http.StatusOK, winner)
}

func (h *WinnerHandler) loadWinner(winnerID string) (*models.WinnerRecord, error) {
	rows, err := h.db.Query(`
		SELECT id, election_id, user_id, ticket_id, rank, prize_amount, prize_percentage, prize_type, prize_description, claimed, claimed_at, disbursement_status, disbursed_at
		FROM winner WHERE id = $1`, winnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	win, err := scanWinner(rows)
	if err != nil {
		return nil, err
	}
	return &win, nil
}

func scanWinner(rows *sql.Rows) (models.WinnerRecord, error) {
	var win models.WinnerRecord
	var prizeDesc sql.NullString
	var claimedAt, disbursedAt sql.NullTime
	err := rows.Scan(&win.ID, &win.ElectionID, &win.UserID, &win.TicketID, &win.Rank,
		&win.PrizeAmount, &win.PrizePercentage, &win.PrizeType, &prizeDesc,
		&win.Claimed, &claimedAt, &win.DisbursementStatus, &disbursedAt)
	if err != nil {
		return win, err
	}
	win.PrizeDescription = prizeDesc.String
	if claimedAt.Valid {
		win.ClaimedAt = &claimedAt.Time
	}
	if disbursedAt.Valid {
		win.DisbursedAt = &disbursedAt.Time
	}
	return win, nil
}
