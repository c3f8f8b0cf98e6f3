package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/cityhunt/internal/leaderboard"
)

type LeaderboardResponse struct {
	SessionID string              `json:"sessionId"`
	Entries   []leaderboard.Entry `json:"entries"`
}

func handleLeaderboard(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Leaderboard == nil {
			writeError(w, http.StatusNotFound, "leaderboard is not enabled")
			return
		}

		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		sessionID := chi.URLParam(r, "sessionID")
		entries, err := deps.Leaderboard.Top(r.Context(), sessionID, limit)
		if err != nil {
			writeEngineError(w, logger, r, err)
			return
		}
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		writeJSON(w, http.StatusOK, LeaderboardResponse{SessionID: sessionID, Entries: entries})
	}
}
