// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateElectionRequest: title, end_at, lottery settings
  - CastVoteRequest: choice
  - ExecuteDrawRequest: empty body, identity from headers

# Response Types

Types for JSON responses:

  - CreateElectionResponse: election_id
  - CastVoteResponse: vote_id, ticket_number
  - WalletResponse: balance_cents, transactions
  - VerifyDrawResponse: verified, expected vs recorded winners
  - ErrorResponse: error, message

# Domain Types

Internal data structures:

  - Election: election metadata, lifecycle, and lottery configuration
  - PrizeTier: rank and percentage of the prize pool
  - LotteryTicket: ticket minted for a vote
  - DrawRecord: a completed draw with its random seed
  - DrawMetadata: reward details stored alongside a draw
  - WinnerRecord: a winning ticket with prize and disbursement state
  - AuditEvent: one hash-chained ledger entry
  - WalletTransaction: a wallet credit with its source

# Constants

Election status values:

	StatusDraft = "draft"
	StatusOpen  = "open"
	StatusEnded = "ended"

Reward types:

	RewardMonetary    = "monetary"
	RewardNonMonetary = "non_monetary"

Disbursement status values:

	DisbursementPendingApproval = "pending_approval"
	DisbursementPendingClaim    = "pending_claim"
	DisbursementDisbursed       = "disbursed"

Wallet transaction types:

	TxPrizeWon = "prize_won"
*/
package models
