// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/auth"
	"github.com/votelot/server/config"
	"github.com/votelot/server/lottery"
	"github.com/votelot/server/middleware"
	"github.com/votelot/server/models"
	"github.com/votelot/server/rolesvc"
)

type ElectionHandler struct {
	db     *sql.DB
	cfg    config.Config
	ledger *audit.Ledger
	roles  rolesvc.Checker
}

func NewElectionHandler(db *sql.DB, cfg config.Config, ledger *audit.Ledger, roles rolesvc.Checker) *ElectionHandler {
	return &ElectionHandler{db: db, cfg: cfg, ledger: ledger, roles: roles}
}

// CreateElection handles POST /elections
func (h *ElectionHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.EndAt.IsZero() || req.EndAt.Before(time.Now()) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "end_at must be in the future")
		return
	}

	if req.LotteryEnabled {
		if req.LotteryWinnerCount < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "lottery_winner_count must be at least 1")
			return
		}
		switch req.LotteryRewardType {
		case models.RewardMonetary:
			if _, err := lottery.RewardFor(models.Election{
				LotteryRewardType: models.RewardMonetary,
				LotteryTotalPool:  req.LotteryTotalPool,
			}); err != nil {
				middleware.ErrorResponse(w, http.StatusBadRequest, "lottery_total_pool must be a decimal number")
				return
			}
		case models.RewardNonMonetary:
			if req.LotteryPrizeDesc == "" {
				middleware.ErrorResponse(w, http.StatusBadRequest, "lottery_prize_description is required for non-monetary rewards")
				return
			}
		default:
			middleware.ErrorResponse(w, http.StatusBadRequest, "lottery_reward_type must be monetary or non_monetary")
			return
		}
		if err := lottery.ValidateDistribution(req.LotteryDistribution); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.LotteryDistribution) > 0 && !lottery.DistributionComplete(req.LotteryDistribution, req.LotteryWinnerCount) {
			// Legal but probably a mistake; uncovered ranks equal-split.
			slog.Warn("prize distribution does not cover all ranks",
				"title", req.Title, "winner_count", req.LotteryWinnerCount)
		}
	}

	electionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate election ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	distribution, err := json.Marshal(req.LotteryDistribution)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid prize distribution")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO election (id, title, status, lottery_enabled, lottery_winner_count, lottery_reward_type, lottery_total_pool, lottery_prize_description, lottery_prize_distribution, end_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, electionID, req.Title, models.StatusOpen, req.LotteryEnabled, req.LotteryWinnerCount,
		req.LotteryRewardType, poolOrZero(req.LotteryTotalPool), req.LotteryPrizeDesc,
		string(distribution), req.EndAt.UTC(), time.Now().UTC())
	if err != nil {
		slog.Error("failed to insert election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	_, err = h.ledger.Append(r.Context(), audit.Entry{
		EventType:  audit.EventElectionCreated,
		ActorID:    userID,
		ActorRole:  "creator",
		ElectionID: &electionID,
		Payload: map[string]any{
			"title":           req.Title,
			"lottery_enabled": req.LotteryEnabled,
			"winner_count":    req.LotteryWinnerCount,
			"end_at":          req.EndAt.UTC(),
		},
		ClientIP:  auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		slog.Error("failed to append election_created audit event", "error", err)
	}

	slog.Info("election created", "election_id", electionID, "creator", userID, "lottery", req.LotteryEnabled)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateElectionResponse{
		ElectionID: electionID,
	})
}

func poolOrZero(pool string) string {
	if pool == "" {
		return "0"
	}
	return pool
}

// GetElection handles GET /elections/{id}
func (h *ElectionHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")

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

	var one int
	err = h.db.QueryRow(`SELECT 1 FROM draw WHERE election_id = $1`, electionID).Scan(&one)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("failed to query draw", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	election.Drawn = err == nil

	middleware.JSONResponse(w, http.StatusOK, election)
}

// EndElection handles POST /elections/{id}/end
func (h *ElectionHandler) EndElection(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("id")
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	roles, err := h.roles.RolesFor(r.Context(), userID)
	if err != nil {
		slog.Warn("role lookup failed, denying end request", "user_id", userID, "error", err)
		middleware.ErrorResponse(w, http.StatusForbidden, "Role service unavailable")
		return
	}
	if !roles.CanManageDraws() {
		middleware.ErrorResponse(w, http.StatusForbidden, "Admin or election manager role required")
		return
	}

	result, err := h.db.Exec(`
		UPDATE election SET status = $1, end_at = $2 WHERE id = $3 AND status = $4
	`, models.StatusEnded, time.Now().UTC(), electionID, models.StatusOpen)
	if err != nil {
		slog.Error("failed to end election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		var exists int
		if h.db.QueryRow(`SELECT 1 FROM election WHERE id = $1`, electionID).Scan(&exists) == sql.ErrNoRows {
			middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		} else {
			middleware.ErrorResponse(w, http.StatusConflict, "Election is not open")
		}
		return
	}

	_, err = h.ledger.Append(r.Context(), audit.Entry{
		EventType:  audit.EventElectionEnded,
		ActorID:    userID,
		ActorRole:  firstRole(roles),
		ElectionID: &electionID,
		Payload:    map[string]any{"election_id": electionID},
		ClientIP:   auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		slog.Error("failed to append election_ended audit event", "error", err)
	}

	slog.Info("election ended", "election_id", electionID, "by", userID)
	w.WriteHeader(http.StatusNoContent)
}

func firstRole(roles rolesvc.Roles) string {
	if roles.Has(rolesvc.RoleAdmin) {
		return rolesvc.RoleAdmin
	}
	if roles.Has(rolesvc.RoleManager) {
		return rolesvc.RoleManager
	}
	return "voter"
}

func loadElection(db *sql.DB, electionID string) (*models.Election, error) {
	var e models.Election
	var prizeDesc, distribution sql.NullString
	err := db.QueryRow(`
		SELECT id, title, status, lottery_enabled, lottery_winner_count, lottery_reward_type, lottery_total_pool, lottery_prize_description, lottery_prize_distribution, end_at, created_at
		FROM election WHERE id = $1`, electionID).Scan(
		&e.ID, &e.Title, &e.Status, &e.LotteryEnabled, &e.LotteryWinnerCount,
		&e.LotteryRewardType, &e.LotteryTotalPool, &prizeDesc, &distribution,
		&e.EndAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.LotteryPrizeDesc = prizeDesc.String
	if distribution.Valid && distribution.String != "" {
		if jsonErr := json.Unmarshal([]byte(distribution.String), &e.LotteryDistribution); jsonErr != nil {
			return nil, jsonErr
		}
	}
	return &e, nil
}
