// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/votelot/server/audit"
	"github.com/votelot/server/middleware"
	"github.com/votelot/server/models"
)

type AuditHandler struct {
	ledger *audit.Ledger
}

func NewAuditHandler(ledger *audit.Ledger) *AuditHandler {
	return &AuditHandler{ledger: ledger}
}

// GetTrail handles GET /audit
func (h *AuditHandler) GetTrail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	events, err := h.ledger.Trail(r.Context(), audit.TrailFilter{
		ElectionID: query.Get("election_id"),
		EventType:  query.Get("event_type"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		slog.Error("failed to query audit trail", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{"events": events})
}

// VerifyChain handles GET /audit/verify
func (h *AuditHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.Verify(r.Context())
	if err != nil {
		slog.Error("failed to verify audit chain", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Verification failed")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, result)
}

// ExportTrail handles GET /audit/export
func (h *AuditHandler) ExportTrail(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case audit.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit_trail.csv"`)
	case audit.FormatJSON, "":
		w.Header().Set("Content-Type", "application/json")
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	if err := h.ledger.Export(r.Context(), w, format, r.URL.Query().Get("election_id")); err != nil {
		slog.Error("failed to export audit trail", "error", err)
	}
}
