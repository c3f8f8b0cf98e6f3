package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/cityhunt/internal/hunt"
)

type ChallengeProgress struct {
	Challenge ChallengeView `json:"challenge"`
	Progress  ProgressView  `json:"progress"`
}

// StandingResponse is the player's view of a session.
type StandingResponse struct {
	SessionID        string              `json:"sessionId"`
	PlayerID         string              `json:"playerId"`
	Score            int                 `json:"score"`
	CurrentChallenge *ChallengeView      `json:"currentChallenge"`
	SessionComplete  bool                `json:"sessionComplete"`
	Challenges       []ChallengeProgress `json:"challenges"`
}

func handleProgress(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		playerID := chi.URLParam(r, "playerID")

		st, err := deps.Dispatcher.Standing(r.Context(), sessionID, playerID)
		if err != nil {
			writeEngineError(w, logger, r, err)
			return
		}
		if len(st.Challenges) == 0 {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		resp := StandingResponse{
			SessionID:        sessionID,
			PlayerID:         playerID,
			Score:            st.Score,
			CurrentChallenge: optionalView(st.Current),
			SessionComplete:  st.Complete(),
			Challenges:       make([]ChallengeProgress, len(st.Challenges)),
		}
		for i, c := range st.Challenges {
			rec, ok := st.Progress[c.ID]
			if !ok {
				rec = hunt.PlayerProgress{ChallengeID: c.ID, Status: hunt.StatusNotStarted}
			}
			resp.Challenges[i] = ChallengeProgress{
				Challenge: challengeView(c),
				Progress:  progressView(rec),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSkip(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		playerID := chi.URLParam(r, "playerID")
		challengeID := chi.URLParam(r, "challengeID")

		out, err := deps.Dispatcher.Skip(r.Context(), sessionID, playerID, challengeID, deps.Now().UTC())
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			writeEngineError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomeResponse(out))
	}
}
