// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/models"
	"github.com/votelot/server/testutil"
)

func castVote(t *testing.T, handler *VoteHandler, electionID, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var headers map[string]string
	if userID != "" {
		headers = asUser(userID)
	}
	req := testutil.MakeRequest("POST", "/elections/"+electionID+"/votes",
		models.CastVoteRequest{Choice: "alice"}, headers)
	req.SetPathValue("id", electionID)
	w := httptest.NewRecorder()
	handler.CastVote(w, req)
	return w
}

func TestCastVote(t *testing.T) {
	env := newTestEnv(t)
	handler := NewVoteHandler(env.db, env.cfg, env.ledger)
	electionID := testutil.CreateTestElection(t, env.db, models.StatusOpen)

	t.Run("vote mints a lottery ticket", func(t *testing.T) {
		w := castVote(t, handler, electionID, "user-1")
		testutil.AssertStatus(t, w, http.StatusCreated)

		var resp models.CastVoteResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.VoteID == "" {
			t.Error("Expected non-empty vote_id")
		}
		if resp.TicketID == "" {
			t.Error("Expected a lottery ticket")
		}
		if resp.TicketNumber != 1 {
			t.Errorf("Expected ticket number 1, got %d", resp.TicketNumber)
		}

		var count int
		if err := env.db.QueryRow(`SELECT COUNT(*) FROM audit_event WHERE event_type = $1 AND election_id = $2`,
			audit.EventVoteCast, electionID).Scan(&count); err != nil {
			t.Fatalf("Failed to query audit events: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 vote_cast audit event, got %d", count)
		}
	})

	t.Run("ticket numbers are dense and sequential", func(t *testing.T) {
		w := castVote(t, handler, electionID, "user-2")
		testutil.AssertStatus(t, w, http.StatusCreated)
		var resp models.CastVoteResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.TicketNumber != 2 {
			t.Errorf("Expected ticket number 2, got %d", resp.TicketNumber)
		}
	})

	t.Run("duplicate vote rejected", func(t *testing.T) {
		w := castVote(t, handler, electionID, "user-1")
		testutil.AssertStatus(t, w, http.StatusConflict)

		var votes int
		if err := env.db.QueryRow(`SELECT COUNT(*) FROM vote WHERE election_id = $1 AND user_id = 'user-1'`,
			electionID).Scan(&votes); err != nil {
			t.Fatalf("Failed to count votes: %v", err)
		}
		if votes != 1 {
			t.Errorf("Expected 1 vote, got %d", votes)
		}
	})

	t.Run("missing user header", func(t *testing.T) {
		w := castVote(t, handler, electionID, "")
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("election not found", func(t *testing.T) {
		w := castVote(t, handler, "missing", "user-3")
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("ended election rejects votes", func(t *testing.T) {
		ended := testutil.CreateTestElection(t, env.db, models.StatusEnded)
		w := castVote(t, handler, ended, "user-3")
		testutil.AssertStatus(t, w, http.StatusConflict)
	})

	t.Run("empty choice rejected", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/elections/"+electionID+"/votes",
			models.CastVoteRequest{}, asUser("user-4"))
		req.SetPathValue("id", electionID)
		w := httptest.NewRecorder()
		handler.CastVote(w, req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("no ticket when lottery disabled", func(t *testing.T) {
		plain := testutil.CreateTestElection(t, env.db, models.StatusOpen, testutil.WithLotteryDisabled())
		w := castVote(t, handler, plain, "user-5")
		testutil.AssertStatus(t, w, http.StatusCreated)

		var resp models.CastVoteResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.TicketID != "" {
			t.Error("Expected no ticket for a lottery-disabled election")
		}
	})
}

func TestGetMyTicket(t *testing.T) {
	env := newTestEnv(t)
	handler := NewVoteHandler(env.db, env.cfg, env.ledger)
	electionID := testutil.CreateTestElection(t, env.db, models.StatusOpen)
	testutil.AddTestVoter(t, env.db, electionID, "user-1")

	t.Run("own ticket", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/elections/"+electionID+"/tickets/me", nil, asUser("user-1"))
		req.SetPathValue("id", electionID)
		w := httptest.NewRecorder()
		handler.GetMyTicket(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)
		var ticket models.LotteryTicket
		testutil.AssertJSON(t, w, &ticket)
		if ticket.UserID != "user-1" || ticket.TicketNumber != 1 {
			t.Errorf("Unexpected ticket %+v", ticket)
		}
	})

	t.Run("no ticket", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/elections/"+electionID+"/tickets/me", nil, asUser("user-2"))
		req.SetPathValue("id", electionID)
		w := httptest.NewRecorder()
		handler.GetMyTicket(w, req)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}
