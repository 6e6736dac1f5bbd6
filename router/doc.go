// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Votelot API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Deps{DB: db, Cfg: cfg, ...})

# Endpoints

Health:

	GET /health

Election management (privileged actions require roles via X-User-ID):

	POST /elections               - Create election
	GET  /elections/{id}          - Get election details
	POST /elections/{id}/end      - End voting

Voting:

	POST /elections/{id}/votes      - Cast vote (mints lottery ticket)
	GET  /elections/{id}/tickets/me - Get caller's ticket

Draws:

	POST /elections/{id}/draw        - Execute draw (admin/manager)
	GET  /elections/{id}/draw        - Get draw result
	GET  /elections/{id}/draw/verify - Replay selection from stored seed

Prizes and wallets:

	POST /winners/{id}/claim    - Claim prize (winner only)
	POST /winners/{id}/disburse - Approve disbursement (admin only)
	GET  /wallet                - Balance and transactions

Audit:

	GET /audit        - Filtered event trail
	GET /audit/verify - Verify chain integrity
	GET /audit/export - Export trail as JSON or CSV

# Handler Initialization

The router creates handler instances with dependency injection:

	electionHandler := handlers.NewElectionHandler(deps.DB, deps.Cfg, deps.Ledger, deps.Roles)
	voteHandler := handlers.NewVoteHandler(deps.DB, deps.Cfg, deps.Ledger)
	drawHandler := handlers.NewDrawHandler(deps.DB, deps.Cfg, deps.Coordinator)
	...

All handlers receive the database connection and configuration; handlers
that append audit events also receive the ledger.
*/
package router
