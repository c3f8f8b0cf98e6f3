package server

import (
	"time"

	"github.com/playperu/cityhunt/internal/engine"
	"github.com/playperu/cityhunt/internal/hunt"
)

// ChallengeView is what players see of a challenge. Answers, keywords,
// tokens and target coordinates stay on the server.
type ChallengeView struct {
	ID               string             `json:"id"`
	Position         int                `json:"position"`
	Type             hunt.ChallengeType `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Points           int                `json:"points"`
	TimeLimitSeconds *int               `json:"timeLimitSeconds,omitempty"`
	Prompt           string             `json:"prompt,omitempty"`
	RadiusMeters     float64            `json:"radiusMeters,omitempty"`
	RequiredElements []string           `json:"requiredElements,omitempty"`
}

func challengeView(c hunt.Challenge) ChallengeView {
	v := ChallengeView{
		ID:               c.ID,
		Position:         c.Position,
		Type:             c.Type,
		Title:            c.Title,
		Description:      c.Description,
		Points:           c.Points,
		Prompt:           c.Data.Prompt,
		RequiredElements: c.Data.RequiredElements,
	}
	if c.Type == hunt.TypeLocation {
		v.RadiusMeters = c.Data.RadiusMeters
	}
	if c.TimeLimit != nil {
		secs := int(*c.TimeLimit / time.Second)
		v.TimeLimitSeconds = &secs
	}
	return v
}

func challengeViews(cs []hunt.Challenge) []ChallengeView {
	out := make([]ChallengeView, len(cs))
	for i, c := range cs {
		out[i] = challengeView(c)
	}
	return out
}

func optionalView(c *hunt.Challenge) *ChallengeView {
	if c == nil {
		return nil
	}
	v := challengeView(*c)
	return &v
}

type ProgressView struct {
	ChallengeID  string              `json:"challengeId"`
	Status       hunt.ProgressStatus `json:"status"`
	IsCorrect    bool                `json:"isCorrect"`
	PointsEarned int                 `json:"pointsEarned"`
	Attempts     int                 `json:"attempts"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	CompletedAt  *time.Time          `json:"completedAt,omitempty"`
}

func progressView(p hunt.PlayerProgress) ProgressView {
	return ProgressView{
		ChallengeID:  p.ChallengeID,
		Status:       p.Status,
		IsCorrect:    p.IsCorrect,
		PointsEarned: p.PointsEarned,
		Attempts:     p.Attempts,
		StartedAt:    p.StartedAt,
		CompletedAt:  p.CompletedAt,
	}
}

// OutcomeResponse is returned by the submission and skip endpoints.
type OutcomeResponse struct {
	Result           hunt.ValidationResult `json:"result"`
	Progress         ProgressView          `json:"progress"`
	ScoreDelta       int                   `json:"scoreDelta"`
	Score            int                   `json:"score"`
	CurrentChallenge *ChallengeView        `json:"currentChallenge"`
	SessionComplete  bool                  `json:"sessionComplete"`
	AlreadyFinalized bool                  `json:"alreadyFinalized,omitempty"`
}

func outcomeResponse(out engine.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Result:           out.Result,
		Progress:         progressView(out.Progress),
		ScoreDelta:       out.ScoreDelta,
		Score:            out.Score,
		CurrentChallenge: optionalView(out.Current),
		SessionComplete:  out.SessionComplete,
		AlreadyFinalized: out.Finalized,
	}
}
