package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Election status constants
const (
	StatusDraft = "draft"
	StatusOpen  = "open"
	StatusEnded = "ended"
)

// Reward type constants
const (
	RewardMonetary    = "monetary"
	RewardNonMonetary = "non_monetary"
)

// Winner disbursement lifecycle
const (
	DisbursementPendingApproval = "pending_approval"
	DisbursementPendingClaim    = "pending_claim"
	DisbursementDisbursed       = "disbursed"
)

// Wallet transaction types
const (
	TxPrizeWon = "prize_won"
)

// Request types

type CreateElectionRequest struct {
	Title               string      `json:"title"`
	EndAt               time.Time   `json:"end_at"`
	LotteryEnabled      bool        `json:"lottery_enabled"`
	LotteryWinnerCount  int         `json:"lottery_winner_count"`
	LotteryRewardType   string      `json:"lottery_reward_type"`
	LotteryTotalPool    string      `json:"lottery_total_pool"`
	LotteryPrizeDesc    string      `json:"lottery_prize_description"`
	LotteryDistribution []PrizeTier `json:"lottery_prize_distribution"`
}

type CastVoteRequest struct {
	Choice string `json:"choice"`
}

type ExecuteDrawRequest struct {
	WinnerCount int `json:"winner_count,omitempty"`
}

// Response types

type CreateElectionResponse struct {
	ElectionID string `json:"election_id"`
}

type CastVoteResponse struct {
	VoteID       string `json:"vote_id"`
	TicketID     string `json:"ticket_id,omitempty"`
	TicketNumber int    `json:"ticket_number,omitempty"`
	BallNumber   int    `json:"ball_number,omitempty"`
}

type WalletResponse struct {
	UserID       string              `json:"user_id"`
	BalanceCents int64               `json:"balance_cents"`
	Transactions []WalletTransaction `json:"transactions"`
}

type VerifyDrawResponse struct {
	Verified   bool     `json:"verified"`
	RandomSeed string   `json:"random_seed"`
	Expected   []string `json:"expected_ticket_ids"`
	Recorded   []string `json:"recorded_ticket_ids"`
}

// Domain types

type Election struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title"`
	Status              string      `json:"status"`
	LotteryEnabled      bool        `json:"lottery_enabled"`
	LotteryWinnerCount  int         `json:"lottery_winner_count"`
	LotteryRewardType   string      `json:"lottery_reward_type"`
	LotteryTotalPool    string      `json:"lottery_total_pool"`
	LotteryPrizeDesc    string      `json:"lottery_prize_description"`
	LotteryDistribution []PrizeTier `json:"lottery_prize_distribution"`
	EndAt               time.Time   `json:"end_at"`
	CreatedAt           time.Time   `json:"created_at"`
	Drawn               bool        `json:"drawn"`
}

// PrizeTier maps one rank to its percentage share of the prize pool.
type PrizeTier struct {
	Rank       int             `json:"rank"`
	Percentage decimal.Decimal `json:"percentage"`
}

type LotteryTicket struct {
	ID           string    `json:"id"`
	ElectionID   string    `json:"election_id"`
	UserID       string    `json:"user_id"`
	TicketNumber int       `json:"ticket_number"`
	BallNumber   int       `json:"ball_number"`
	CreatedAt    time.Time `json:"created_at"`
}

type DrawRecord struct {
	ID                string          `json:"id"`
	ElectionID        string          `json:"election_id"`
	TotalParticipants int             `json:"total_participants"`
	WinnerCount       int             `json:"winner_count"`
	RandomSeed        string          `json:"random_seed"`
	Status            string          `json:"status"`
	Metadata          json.RawMessage `json:"metadata"`
	DrawnAt           time.Time       `json:"drawn_at"`
}

// DrawMetadata is the snapshot persisted with every draw so the terms of the
// lottery at draw time survive later edits to the election.
type DrawMetadata struct {
	RewardType       string      `json:"reward_type"`
	TotalPool        string      `json:"total_pool"`
	Distribution     []PrizeTier `json:"distribution"`
	PrizeDescription string      `json:"prize_description,omitempty"`
	AutoDrawn        bool        `json:"auto_drawn"`
	BeforeEnd        bool        `json:"before_end,omitempty"`
}

type WinnerRecord struct {
	ID                 string     `json:"id"`
	ElectionID         string     `json:"election_id"`
	UserID             string     `json:"user_id"`
	TicketID           string     `json:"ticket_id"`
	Rank               int        `json:"rank"`
	PrizeAmount        string     `json:"prize_amount"`
	PrizePercentage    string     `json:"prize_percentage"`
	PrizeType          string     `json:"prize_type"`
	PrizeDescription   string     `json:"prize_description,omitempty"`
	Claimed            bool       `json:"claimed"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
	DisbursementStatus string     `json:"disbursement_status"`
	DisbursedAt        *time.Time `json:"disbursed_at,omitempty"`
}

type DrawResult struct {
	DrawID            string         `json:"draw_id"`
	ElectionID        string         `json:"election_id"`
	TotalParticipants int            `json:"total_participants"`
	Winners           []WinnerRecord `json:"winners"`
	RandomSeed        string         `json:"random_seed"`
}

type AuditEvent struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	EventType  string          `json:"event_type"`
	ActorID    string          `json:"actor_id"`
	ActorRole  string          `json:"actor_role"`
	ElectionID *string         `json:"election_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ClientIP   string          `json:"client_ip,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	PrevHash   *string         `json:"previous_hash"`
	Hash       string          `json:"hash"`
	HashedAt   string          `json:"hashed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

type WalletTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	ElectionID  *string   `json:"election_id,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
