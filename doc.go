// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Votelot API server.

Votelot is an election backend whose votes double as lottery tickets: when
an election ends, a provably fair draw selects winners, allocates a prize
pool, credits wallets, and records everything in a tamper-evident audit
chain.

# Starting the Server

The server is configured through environment variables (optionally via a
.env file or votelot.yaml):

	DATABASE_URL=postgres://... IP_HASH_SALT=... go run main.go

Required settings:

  - DATABASE_URL: connection string (postgres URL or sqlite path)
  - IP_HASH_SALT: secret for hashing client IPs in the audit trail

Optional settings:

  - PORT: server port (default: 3320)
  - DATABASE_TYPE: postgres (default) or sqlite
  - ROLE_SERVICE_URL: external role service; unset means no one holds
    privileged roles
  - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: enable the distributed draw lock
  - DRAW_SWEEP_INTERVAL: auto-draw sweep cadence (default: 1h)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (elections, votes, draws, winners,
    wallet, audit)
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers, request identity
  - models: request/response and domain types
  - lottery: uniform randomness, seeded winner selection, prize allocation
  - draw: the atomic draw transaction and the auto-draw scheduler
  - audit: the append-only hash-chained event ledger
  - wallet: prize credits and balance queries
  - rolesvc: role service client with circuit breaker
  - lock: Redis draw lock
  - notify: best-effort winner notifications
  - db: connection handling and schema creation
  - config: configuration loading and validation

See package documentation for each component.
*/
package main
