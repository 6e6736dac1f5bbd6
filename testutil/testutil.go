// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/votelot/server/auth"
	"github.com/votelot/server/config"
	"github.com/votelot/server/db"
	"github.com/votelot/server/lottery"
	"github.com/votelot/server/models"
)

var testDBSerial atomic.Int64

// SetupTestDB creates a fresh in-memory SQLite database with the full
// schema. Each call gets its own named database, so parallel tests never
// share state; cache=shared keeps it alive across the pool's connections.
func SetupTestDB(t *testing.T) (*sql.DB, db.Dialect) {
	t.Helper()

	name := fmt.Sprintf("votelot_test_%d", testDBSerial.Add(1))
	url := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)

	conn, dialect, err := db.Open("sqlite", url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn, dialect
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() config.Config {
	return config.Config{
		Port:         3320,
		DatabaseType: "sqlite",
		DatabaseURL:  ":memory:",
		IPHashSalt:   "test-ip-salt",
	}
}

// CreateTestElection creates an election and returns its ID.
// status should be "draft", "open", or "ended".
func CreateTestElection(t *testing.T, conn *sql.DB, status string, opts ...ElectionOption) string {
	t.Helper()

	e := models.Election{
		Title:              "Test Election",
		Status:             status,
		LotteryEnabled:     true,
		LotteryWinnerCount: 1,
		LotteryRewardType:  models.RewardMonetary,
		LotteryTotalPool:   "100",
		EndAt:              time.Now().Add(24 * time.Hour),
		CreatedAt:          time.Now(),
	}
	if status == models.StatusEnded {
		e.EndAt = time.Now().Add(-time.Hour)
	}
	for _, opt := range opts {
		opt(&e)
	}

	id, _ := auth.GenerateID(16)
	dist, err := json.Marshal(e.LotteryDistribution)
	if err != nil {
		t.Fatalf("Failed to marshal distribution: %v", err)
	}

	_, err = conn.Exec(`
		INSERT INTO election (id, title, status, lottery_enabled, lottery_winner_count, lottery_reward_type, lottery_total_pool, lottery_prize_description, lottery_prize_distribution, end_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, id, e.Title, e.Status, e.LotteryEnabled, e.LotteryWinnerCount, e.LotteryRewardType,
		e.LotteryTotalPool, e.LotteryPrizeDesc, string(dist), e.EndAt, e.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}

	return id
}

// ElectionOption adjusts the test election before insert.
type ElectionOption func(*models.Election)

func WithWinnerCount(n int) ElectionOption {
	return func(e *models.Election) { e.LotteryWinnerCount = n }
}

func WithPool(pool string) ElectionOption {
	return func(e *models.Election) { e.LotteryTotalPool = pool }
}

func WithDistribution(tiers []models.PrizeTier) ElectionOption {
	return func(e *models.Election) { e.LotteryDistribution = tiers }
}

func WithNonMonetaryPrize(desc string) ElectionOption {
	return func(e *models.Election) {
		e.LotteryRewardType = models.RewardNonMonetary
		e.LotteryPrizeDesc = desc
		e.LotteryTotalPool = "0"
	}
}

func WithLotteryDisabled() ElectionOption {
	return func(e *models.Election) { e.LotteryEnabled = false }
}

func WithEndAt(at time.Time) ElectionOption {
	return func(e *models.Election) { e.EndAt = at }
}

// AddTestVoter records a vote and mints the matching lottery ticket, the
// way the voting handler does, and returns the ticket ID.
func AddTestVoter(t *testing.T, conn *sql.DB, electionID, userID string) string {
	t.Helper()

	voteID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO vote (id, election_id, user_id, choice, created_at)
		VALUES ($1, $2, $3, 'yes', $4)
	`, voteID, electionID, userID, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	var next int
	err = conn.QueryRow(`SELECT COALESCE(MAX(ticket_number), 0) + 1 FROM lottery_ticket WHERE election_id = $1`, electionID).Scan(&next)
	if err != nil {
		t.Fatalf("Failed to compute ticket number: %v", err)
	}

	ticketID, _ := auth.GenerateID(16)
	_, err = conn.Exec(`
		INSERT INTO lottery_ticket (id, election_id, user_id, ticket_number, ball_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ticketID, electionID, userID, next, lottery.BallNumber(userID), time.Now())
	if err != nil {
		t.Fatalf("Failed to create test ticket: %v", err)
	}

	return ticketID
}

// AddTestVoters adds n voters named user-1..user-n.
func AddTestVoters(t *testing.T, conn *sql.DB, electionID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		AddTestVoter(t, conn, electionID, fmt.Sprintf("user-%d", i))
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
