// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/votelot/server/middleware"
	"github.com/votelot/server/models"
	"github.com/votelot/server/wallet"
)

type WalletHandler struct {
	wallet *wallet.Service
}

func NewWalletHandler(svc *wallet.Service) *WalletHandler {
	return &WalletHandler{wallet: svc}
}

// GetWallet handles GET /wallet
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	balance, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		slog.Error("failed to read wallet balance", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := h.wallet.Transactions(r.Context(), userID, limit)
	if err != nil {
		slog.Error("failed to read wallet transactions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if txs == nil {
		txs = []models.WalletTransaction{}
	}

	middleware.JSONResponse(w, http.StatusOK, models.WalletResponse{
		UserID:       userID,
		BalanceCents: balance,
		Transactions: txs,
	})
}
