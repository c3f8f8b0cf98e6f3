// Package engine routes submissions to their validator, records the outcome
// through the progress tracker and announces score changes.
//
// Only hunt.ErrChallengeNotFound, hunt.ErrGraderUnavailable and
// hunt.ErrStorageConflict escape Submit as errors. Malformed payloads and
// submissions to finalized challenges resolve to a regular Outcome so the
// player always gets feedback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playperu/cityhunt/internal/hunt"
	"github.com/playperu/cityhunt/internal/progress"
	"github.com/playperu/cityhunt/internal/validate"
)

// Publisher receives score events after they are committed.
type Publisher interface {
	Publish(ctx context.Context, ev hunt.ScoreEvent) error
}

// Outcome is what a caller learns from one submission.
type Outcome struct {
	Result     hunt.ValidationResult
	Progress   hunt.PlayerProgress
	ScoreDelta int
	Score      int

	// Current is the player's next open challenge in the session, nil once
	// every challenge is finalized.
	Current         *hunt.Challenge
	SessionComplete bool

	// Finalized is set when the submission hit a completed or skipped
	// challenge and nothing was written.
	Finalized bool

	// Rejected is set when the submission did not fit the challenge and was
	// answered without being recorded. It wraps hunt.ErrMalformedSubmission.
	Rejected error
}

type Dispatcher struct {
	store      progress.Store
	tracker    *progress.Tracker
	validators validate.Set
	publisher  Publisher
	logger     *slog.Logger
}

// New builds a dispatcher. publisher may be nil.
func New(store progress.Store, validators validate.Set, publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		tracker:    progress.NewTracker(store),
		validators: validators,
		publisher:  publisher,
		logger:     logger,
	}
}

// Submit validates sub and commits the resulting progress.
func (d *Dispatcher) Submit(ctx context.Context, sub hunt.Submission) (Outcome, error) {
	ch, err := d.store.LoadChallenge(ctx, sub.ChallengeID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading challenge %q: %w", sub.ChallengeID, err)
	}

	prev, err := d.store.LoadProgress(ctx, sub.PlayerID, ch.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading progress: %w", err)
	}
	if prev.Status.Final() {
		return d.finalized(ctx, ch, prev), nil
	}

	if res, rerr := d.precheck(ch, sub); rerr != nil {
		d.logger.Info("submission rejected",
			"challenge_id", ch.ID,
			"player_id", sub.PlayerID,
			"error", rerr,
		)
		out := Outcome{Result: res, Progress: prev, Rejected: rerr}
		return d.withStanding(ctx, ch.SessionID, sub.PlayerID, out), nil
	}

	res, err := d.validators[ch.Type].Validate(ctx, ch, sub)
	if err != nil {
		d.logger.Warn("validation failed",
			"challenge_id", ch.ID,
			"player_id", sub.PlayerID,
			"type", ch.Type,
			"error", err,
		)
		return Outcome{Progress: prev}, err
	}

	tn, err := d.tracker.Record(ctx, ch, sub, res)
	switch {
	case errors.Is(err, hunt.ErrAlreadyFinalized):
		// Another submission finalized the record after our read.
		cur, lerr := d.store.LoadProgress(ctx, sub.PlayerID, ch.ID)
		if lerr != nil {
			return Outcome{}, fmt.Errorf("loading progress: %w", lerr)
		}
		return d.finalized(ctx, ch, cur), nil
	case err != nil:
		return Outcome{Result: res, Progress: prev}, err
	}

	d.logger.Info("submission recorded",
		"session_id", ch.SessionID,
		"challenge_id", ch.ID,
		"player_id", sub.PlayerID,
		"correct", res.IsCorrect,
		"confidence", res.Confidence,
		"attempts", tn.Progress.Attempts,
		"score_delta", tn.ScoreDelta,
	)

	if tn.ScoreDelta != 0 {
		d.publish(ctx, hunt.ScoreEvent{
			SessionID:   ch.SessionID,
			PlayerID:    sub.PlayerID,
			ChallengeID: ch.ID,
			Position:    ch.Position,
			Delta:       tn.ScoreDelta,
			Total:       tn.Score,
			At:          sub.SubmittedAt,
		})
	}

	out := Outcome{
		Result:     res,
		Progress:   tn.Progress,
		ScoreDelta: tn.ScoreDelta,
		Score:      tn.Score,
	}
	return d.withStanding(ctx, ch.SessionID, sub.PlayerID, out), nil
}

// Skip gives up on a challenge of sessionID. The record becomes skipped and
// earns nothing. Skipping a finalized challenge returns
// hunt.ErrAlreadyFinalized.
func (d *Dispatcher) Skip(ctx context.Context, sessionID, playerID, challengeID string, at time.Time) (Outcome, error) {
	ch, err := d.store.LoadChallenge(ctx, challengeID)
	if err == nil && ch.SessionID != sessionID {
		err = hunt.ErrChallengeNotFound
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("loading challenge %q: %w", challengeID, err)
	}

	tn, err := d.tracker.Skip(ctx, ch, playerID, at)
	if err != nil {
		return Outcome{Progress: tn.Progress}, err
	}
	d.logger.Info("challenge skipped",
		"session_id", ch.SessionID,
		"challenge_id", ch.ID,
		"player_id", playerID,
	)

	out := Outcome{
		Result:   hunt.ValidationResult{Explanation: "Challenge skipped."},
		Progress: tn.Progress,
		Score:    tn.Score,
	}
	return d.withStanding(ctx, ch.SessionID, playerID, out), nil
}

// Standing reports a player's records, score and current challenge.
func (d *Dispatcher) Standing(ctx context.Context, sessionID, playerID string) (progress.Standing, error) {
	return d.tracker.Standing(ctx, sessionID, playerID)
}

// precheck rejects submissions whose declared type or payload does not fit
// the challenge. Rejected submissions are not recorded; the error wraps
// hunt.ErrMalformedSubmission.
func (d *Dispatcher) precheck(ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error) {
	var msg string
	switch {
	case sub.Type != "" && sub.Type != ch.Type:
		msg = fmt.Sprintf("this challenge expects a %s submission.", ch.Type)
	case d.validators[ch.Type] == nil:
		msg = fmt.Sprintf("%s challenges cannot be validated.", ch.Type)
	default:
		msg = validate.MissingPayload(ch.Type, sub.Payload)
	}
	if msg == "" {
		return hunt.ValidationResult{}, nil
	}
	return validate.Malformed(msg), fmt.Errorf("%w: %s", hunt.ErrMalformedSubmission, msg)
}

func (d *Dispatcher) finalized(ctx context.Context, ch hunt.Challenge, rec hunt.PlayerProgress) Outcome {
	explanation := "You already completed this challenge."
	if rec.Status == hunt.StatusSkipped {
		explanation = "You skipped this challenge."
	}
	out := Outcome{
		Result:    hunt.ValidationResult{Explanation: explanation},
		Progress:  rec,
		Finalized: true,
	}
	return d.withStanding(ctx, ch.SessionID, rec.PlayerID, out)
}

// withStanding fills in score and current challenge. The submission is
// already settled at this point, so a read failure only costs those fields.
func (d *Dispatcher) withStanding(ctx context.Context, sessionID, playerID string, out Outcome) Outcome {
	st, err := d.tracker.Standing(ctx, sessionID, playerID)
	if err != nil {
		d.logger.Warn("loading standing failed",
			"session_id", sessionID,
			"player_id", playerID,
			"error", err,
		)
		return out
	}
	out.Score = st.Score
	out.Current = st.Current
	out.SessionComplete = st.Complete()
	return out
}

func (d *Dispatcher) publish(ctx context.Context, ev hunt.ScoreEvent) {
	if d.publisher == nil {
		return
	}
	// Delivery outlives the request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.publisher.Publish(ctx, ev); err != nil {
		d.logger.Warn("publishing score event failed",
			"session_id", ev.SessionID,
			"player_id", ev.PlayerID,
			"error", err,
		)
	}
}
