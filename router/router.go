// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/config"
	"github.com/votelot/server/draw"
	"github.com/votelot/server/handlers"
	"github.com/votelot/server/middleware"
	"github.com/votelot/server/rolesvc"
	"github.com/votelot/server/wallet"
)

// Deps are the shared services the handlers hang off of.
type Deps struct {
	DB          *sql.DB
	Cfg         config.Config
	Ledger      *audit.Ledger
	Wallet      *wallet.Service
	Roles       rolesvc.Checker
	Coordinator *draw.Coordinator
}

func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	electionHandler := handlers.NewElectionHandler(d.DB, d.Cfg, d.Ledger, d.Roles)
	voteHandler := handlers.NewVoteHandler(d.DB, d.Cfg, d.Ledger)
	drawHandler := handlers.NewDrawHandler(d.DB, d.Cfg, d.Coordinator)
	winnerHandler := handlers.NewWinnerHandler(d.DB, d.Cfg, d.Ledger, d.Roles)
	walletHandler := handlers.NewWalletHandler(d.Wallet)
	auditHandler := handlers.NewAuditHandler(d.Ledger)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Election management
	mux.HandleFunc("POST /elections", middleware.WithLogging(electionHandler.CreateElection))
	mux.HandleFunc("GET /elections/{id}", middleware.WithLogging(electionHandler.GetElection))
	mux.HandleFunc("POST /elections/{id}/end", middleware.WithLogging(electionHandler.EndElection))

	// Voting and tickets
	mux.HandleFunc("POST /elections/{id}/votes", middleware.WithLogging(voteHandler.CastVote))
	mux.HandleFunc("GET /elections/{id}/tickets/me", middleware.WithLogging(voteHandler.GetMyTicket))

	// Lottery draws
	mux.HandleFunc("POST /elections/{id}/draw", middleware.WithLogging(drawHandler.ExecuteDraw))
	mux.HandleFunc("GET /elections/{id}/draw", middleware.WithLogging(drawHandler.GetDraw))
	mux.HandleFunc("GET /elections/{id}/draw/verify", middleware.WithLogging(drawHandler.VerifyDraw))

	// Prizes and wallets
	mux.HandleFunc("POST /winners/{id}/claim", middleware.WithLogging(winnerHandler.ClaimPrize))
	mux.HandleFunc("POST /winners/{id}/disburse", middleware.WithLogging(winnerHandler.DisbursePrize))
	mux.HandleFunc("GET /wallet", middleware.WithLogging(walletHandler.GetWallet))

	// Audit trail
	mux.HandleFunc("GET /audit", middleware.WithLogging(auditHandler.GetTrail))
	mux.HandleFunc("GET /audit/verify", middleware.WithLogging(auditHandler.VerifyChain))
	mux.HandleFunc("GET /audit/export", middleware.WithLogging(auditHandler.ExportTrail))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("votelot API v1"))
	})

	return mux
}
