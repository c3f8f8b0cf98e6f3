package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/playperu/cityhunt/internal/hunt"
)

// SubmissionRequest is the request body for POST /api/submissions.
type SubmissionRequest struct {
	ChallengeID string             `json:"challengeId"`
	PlayerID    string             `json:"playerId"`
	Type        hunt.ChallengeType `json:"type"`
	Payload     hunt.Payload       `json:"payload"`
}

func (req SubmissionRequest) validate() error {
	switch {
	case strings.TrimSpace(req.ChallengeID) == "":
		return errors.New("challengeId is required")
	case strings.TrimSpace(req.PlayerID) == "":
		return errors.New("playerId is required")
	case req.Type != "" && !req.Type.Valid():
		return errors.New("unknown submission type")
	}
	return nil
}

func handleSubmit(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmissionRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		out, err := deps.Dispatcher.Submit(r.Context(), hunt.Submission{
			ChallengeID: req.ChallengeID,
			PlayerID:    req.PlayerID,
			Type:        req.Type,
			Payload:     req.Payload,
			SubmittedAt: deps.Now().UTC(),
		})
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing was written.
			return
		}
		if err != nil {
			writeEngineError(w, logger, r, err)
			return
		}

		writeJSON(w, http.StatusOK, outcomeResponse(out))
	}
}
