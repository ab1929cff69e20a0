// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/session"
	"github.com/ManuGH/namewhisk/internal/store"
)

const maxInvocationBody = 64 << 10

// maxBudgetMs is the largest budget that still fits a time.Duration.
const maxBudgetMs = math.MaxInt64 / int64(time.Millisecond)

// InvocationRequest is the body of POST /v1/invocations.
type InvocationRequest struct {
	ChannelID string          `json:"channelId"`
	Options   json.RawMessage `json:"options,omitempty"`
	// BudgetMs is the remaining execution time granted to the session.
	BudgetMs int64 `json:"budgetMs,omitempty"`
}

// InvocationResponse is returned with 202 Accepted.
type InvocationResponse struct {
	SessionID string         `json:"sessionId"`
	ChannelID string         `json:"channelId"`
	Topics    session.Topics `json:"topics"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvocationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvocationBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, fmt.Errorf("%w: %v", session.ErrInvalidInvocation, err))
		return
	}
	if req.BudgetMs < 0 {
		writeErrorCode(w, http.StatusBadRequest, fmt.Errorf("%w: budgetMs must not be negative", session.ErrInvalidInvocation))
		return
	}
	if req.BudgetMs > maxBudgetMs {
		writeErrorCode(w, http.StatusBadRequest, fmt.Errorf("%w: budgetMs must not exceed %d", session.ErrInvalidInvocation, maxBudgetMs))
		return
	}

	inv := session.Invocation{ChannelID: req.ChannelID, Options: req.Options}
	coord, err := s.invoker.Invoke(r.Context(), inv, time.Duration(req.BudgetMs)*time.Millisecond)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "invocation.rejected").
			Str(log.FieldChannelID, req.ChannelID).
			Msg("invocation rejected")
		writeErrorCode(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, InvocationResponse{
		SessionID: coord.SessionID(),
		ChannelID: req.ChannelID,
		Topics:    coord.Topics(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorCode(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		writeErrorCode(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

func (s *Server) handleLiveSessions(w http.ResponseWriter, _ *http.Request) {
	live := s.invoker.Live()
	if live == nil {
		live = []LiveSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": live})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"live":   len(s.invoker.Live()),
	})
}
