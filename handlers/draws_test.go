// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/votelot/server/models"
	"github.com/votelot/server/testutil"
)

func executeDraw(t *testing.T, handler *DrawHandler, electionID, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.MakeRequest("POST", "/elections/"+electionID+"/draw", nil, asUser(userID))
	req.SetPathValue("id", electionID)
	w := httptest.NewRecorder()
	handler.ExecuteDraw(w, req)
	return w
}

func TestExecuteDrawEndpoint(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDrawHandler(env.db, env.cfg, env.coordinator)

	t.Run("admin draws an ended election", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded)
		testutil.AddTestVoters(t, env.db, electionID, 5)

		w := executeDraw(t, handler, electionID, "admin-1")
		testutil.AssertStatus(t, w, http.StatusCreated)

		var result models.DrawResult
		testutil.AssertJSON(t, w, &result)
		if result.TotalParticipants != 5 {
			t.Errorf("Expected 5 participants, got %d", result.TotalParticipants)
		}
		if len(result.Winners) != 1 {
			t.Fatalf("Expected 1 winner, got %d", len(result.Winners))
		}
		if len(result.RandomSeed) != 64 {
			t.Errorf("Expected 64-char seed, got %q", result.RandomSeed)
		}
	})

	t.Run("plain voter forbidden", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded)
		testutil.AddTestVoters(t, env.db, electionID, 2)
		w := executeDraw(t, handler, electionID, "user-1")
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	t.Run("second draw conflicts", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded)
		testutil.AddTestVoters(t, env.db, electionID, 2)
		testutil.AssertStatus(t, executeDraw(t, handler, electionID, "admin-1"), http.StatusCreated)
		testutil.AssertStatus(t, executeDraw(t, handler, electionID, "admin-1"), http.StatusConflict)
	})

	t.Run("no participants", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded)
		w := executeDraw(t, handler, electionID, "admin-1")
		testutil.AssertStatus(t, w, http.StatusConflict)
	})

	t.Run("lottery disabled", func(t *testing.T) {
		electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded, testutil.WithLotteryDisabled())
		w := executeDraw(t, handler, electionID, "admin-1")
		testutil.AssertStatus(t, w, http.StatusConflict)
	})

	t.Run("election not found", func(t *testing.T) {
		w := executeDraw(t, handler, "missing", "admin-1")
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestGetDraw(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDrawHandler(env.db, env.cfg, env.coordinator)
	electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded)
	testutil.AddTestVoters(t, env.db, electionID, 3)

	t.Run("before draw", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/elections/"+electionID+"/draw", nil, nil)
		req.SetPathValue("id", electionID)
		w := httptest.NewRecorder()
		handler.GetDraw(w, req)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("after draw", func(t *testing.T) {
		testutil.AssertStatus(t, executeDraw(t, handler, electionID, "admin-1"), http.StatusCreated)

		req := testutil.MakeRequest("GET", "/elections/"+electionID+"/draw", nil, nil)
		req.SetPathValue("id", electionID)
		w := httptest.NewRecorder()
		handler.GetDraw(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp struct {
			Draw    models.DrawRecord     `json:"draw"`
			Winners []models.WinnerRecord `json:"winners"`
		}
		testutil.AssertJSON(t, w, &resp)
		if resp.Draw.ElectionID != electionID {
			t.Errorf("Wrong election on draw record: %s", resp.Draw.ElectionID)
		}
		if len(resp.Winners) != 1 {
			t.Errorf("Expected 1 winner, got %d", len(resp.Winners))
		}
	})
}

func TestVerifyDraw(t *testing.T) {
	env := newTestEnv(t)
	handler := NewDrawHandler(env.db, env.cfg, env.coordinator)
	electionID := testutil.CreateTestElection(t, env.db, models.StatusEnded, testutil.WithWinnerCount(2))
	testutil.AddTestVoters(t, env.db, electionID, 6)
	testutil.AssertStatus(t, executeDraw(t, handler, electionID, "admin-1"), http.StatusCreated)

	verify := func() models.VerifyDrawResponse {
		req := testutil.MakeRequest("GET", "/elections/"+electionID+"/draw/verify", nil, nil)
		req.SetPathValue("id", electionID)
		w := httptest.NewRecorder()
		handler.VerifyDraw(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.VerifyDrawResponse
		testutil.AssertJSON(t, w, &resp)
		return resp
	}

	t.Run("untampered draw verifies", func(t *testing.T) {
		resp := verify()
		if !resp.Verified {
			t.Errorf("Expected verified draw, got expected=%v recorded=%v", resp.Expected, resp.Recorded)
		}
		if len(resp.Expected) != 2 {
			t.Errorf("Expected 2 replayed winners, got %d", len(resp.Expected))
		}
	})

	t.Run("tampered winner fails verification", func(t *testing.T) {
		var otherTicket string
		err := env.db.QueryRow(`
			SELECT id FROM lottery_ticket
			WHERE election_id = $1 AND id NOT IN (SELECT ticket_id FROM winner WHERE election_id = $1)
			LIMIT 1`, electionID).Scan(&otherTicket)
		if err != nil {
			t.Fatalf("Failed to find a losing ticket: %v", err)
		}
		var swapped string
		if err := env.db.QueryRow(`SELECT user_id FROM lottery_ticket WHERE id = $1`, otherTicket).Scan(&swapped); err != nil {
			t.Fatalf("Failed to load ticket owner: %v", err)
		}
		if _, err := env.db.Exec(`UPDATE winner SET ticket_id = $1, user_id = $2 WHERE election_id = $3 AND rank = 1`,
			otherTicket, swapped, electionID); err != nil {
			t.Fatalf("Failed to tamper with winner: %v", err)
		}

		resp := verify()
		if resp.Verified {
			t.Error("Expected tampered draw to fail verification")
		}
	})
}
