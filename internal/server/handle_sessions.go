package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/playperu/cityhunt/internal/hunt"
)

const maxChallengesPerSession = 50

// CreateSessionRequest is the request body for POST /api/sessions.
type CreateSessionRequest struct {
	SessionID  string          `json:"sessionId,omitempty"`
	Theme      hunt.Theme      `json:"theme"`
	Difficulty hunt.Difficulty `json:"difficulty"`
	Count      int             `json:"count"`
}

type SessionResponse struct {
	SessionID  string          `json:"sessionId"`
	Challenges []ChallengeView `json:"challenges"`
}

func handleCreateSession(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Count < 1 || req.Count > maxChallengesPerSession {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxChallengesPerSession))
			return
		}

		req.SessionID = strings.TrimSpace(req.SessionID)
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		} else {
			existing, err := deps.Store.ListChallenges(r.Context(), req.SessionID)
			if err != nil {
				writeEngineError(w, logger, r, err)
				return
			}
			if len(existing) > 0 {
				writeError(w, http.StatusConflict, "session already has challenges")
				return
			}
		}

		challenges, err := deps.Generator.Generate(r.Context(), deps.Store, req.SessionID, req.Theme, req.Difficulty, req.Count)
		if err != nil {
			writeEngineError(w, logger, r, err)
			return
		}

		logger.Info("session generated",
			"session_id", req.SessionID,
			"theme", req.Theme,
			"difficulty", req.Difficulty,
			"count", len(challenges),
		)
		writeJSON(w, http.StatusCreated, SessionResponse{
			SessionID:  req.SessionID,
			Challenges: challengeViews(challenges),
		})
	}
}

func handleListChallenges(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		challenges, err := deps.Store.ListChallenges(r.Context(), sessionID)
		if err != nil {
			writeEngineError(w, logger, r, err)
			return
		}
		if len(challenges) == 0 {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		writeJSON(w, http.StatusOK, SessionResponse{
			SessionID:  sessionID,
			Challenges: challengeViews(challenges),
		})
	}
}
