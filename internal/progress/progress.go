// Package progress owns the per-(player, challenge) state machine and the
// player score ledger. It is the only writer of progress records.
//
// Status moves forward only:
//
//	not_started -> in_progress -> completed
//	                           -> skipped
//
// completed and skipped are terminal. Every write goes through
// Store.CommitProgress, which applies the record and the score delta in one
// atomic step guarded by the record version.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/playperu/cityhunt/internal/hunt"
)

// Store is the durable state the tracker reads and writes.
type Store interface {
	LoadChallenge(ctx context.Context, id string) (hunt.Challenge, error)
	ListChallenges(ctx context.Context, sessionID string) ([]hunt.Challenge, error)

	// LoadProgress returns the stored record, or a not_started record with
	// Version 0 when none exists.
	LoadProgress(ctx context.Context, playerID, challengeID string) (hunt.PlayerProgress, error)
	ListProgress(ctx context.Context, sessionID, playerID string) ([]hunt.PlayerProgress, error)

	// CommitProgress stores rec if the stored version still equals
	// rec.Version, bumping it by one, and adds scoreDelta to the player's
	// score in the same transaction. It returns the new score total.
	// A version mismatch yields hunt.ErrStorageConflict; a terminal stored
	// record yields hunt.ErrAlreadyFinalized.
	CommitProgress(ctx context.Context, rec hunt.PlayerProgress, scoreDelta int) (int, error)

	Score(ctx context.Context, playerID string) (int, error)
}

// Transition is the committed result of one tracker step.
type Transition struct {
	Progress   hunt.PlayerProgress
	ScoreDelta int
	Score      int
}

type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Next computes the record that follows prev after a validated submission,
// and the score delta it earns. It does not touch storage.
func Next(prev hunt.PlayerProgress, ch hunt.Challenge, sub hunt.Submission, res hunt.ValidationResult) (hunt.PlayerProgress, int, error) {
	if prev.Status.Final() {
		return prev, 0, hunt.ErrAlreadyFinalized
	}

	answer, err := json.Marshal(sub.Payload)
	if err != nil {
		return prev, 0, fmt.Errorf("encoding answer: %w", err)
	}

	next := prev
	next.PlayerID = sub.PlayerID
	next.ChallengeID = ch.ID
	next.SessionID = ch.SessionID
	next.SubmittedAnswer = string(answer)
	next.IsCorrect = res.IsCorrect
	next.Attempts = prev.Attempts + 1
	if next.StartedAt == nil {
		at := sub.SubmittedAt
		next.StartedAt = &at
	}

	if res.IsCorrect {
		at := sub.SubmittedAt
		next.Status = hunt.StatusCompleted
		next.PointsEarned = ch.Points
		next.CompletedAt = &at
		return next, ch.Points, nil
	}

	next.Status = hunt.StatusInProgress
	next.PointsEarned = 0
	if res.PartialCredit != nil {
		next.PointsEarned = max(0, min(*res.PartialCredit, ch.Points))
	}
	next.CompletedAt = nil
	return next, 0, nil
}

// Record applies a validation result for sub against ch and commits it.
func (t *Tracker) Record(ctx context.Context, ch hunt.Challenge, sub hunt.Submission, res hunt.ValidationResult) (Transition, error) {
	prev, err := t.store.LoadProgress(ctx, sub.PlayerID, ch.ID)
	if err != nil {
		return Transition{}, fmt.Errorf("loading progress: %w", err)
	}

	next, delta, err := Next(prev, ch, sub, res)
	if err != nil {
		return Transition{Progress: prev}, err
	}
	return t.commit(ctx, next, delta)
}

// Skip finalizes the player's record for ch as skipped without awarding
// points.
func (t *Tracker) Skip(ctx context.Context, ch hunt.Challenge, playerID string, at time.Time) (Transition, error) {
	prev, err := t.store.LoadProgress(ctx, playerID, ch.ID)
	if err != nil {
		return Transition{}, fmt.Errorf("loading progress: %w", err)
	}
	if prev.Status.Final() {
		return Transition{Progress: prev}, hunt.ErrAlreadyFinalized
	}

	next := prev
	next.PlayerID = playerID
	next.ChallengeID = ch.ID
	next.SessionID = ch.SessionID
	next.Status = hunt.StatusSkipped
	next.IsCorrect = false
	next.PointsEarned = 0
	if next.StartedAt == nil {
		next.StartedAt = &at
	}
	next.CompletedAt = &at
	return t.commit(ctx, next, 0)
}

func (t *Tracker) commit(ctx context.Context, next hunt.PlayerProgress, delta int) (Transition, error) {
	// A caller that has already given up must not leave a write behind.
	if err := ctx.Err(); err != nil {
		return Transition{}, err
	}
	total, err := t.store.CommitProgress(ctx, next, delta)
	if err != nil {
		if errors.Is(err, hunt.ErrAlreadyFinalized) || errors.Is(err, hunt.ErrStorageConflict) {
			return Transition{}, err
		}
		return Transition{}, fmt.Errorf("committing progress: %w", err)
	}
	next.Version++
	return Transition{Progress: next, ScoreDelta: delta, Score: total}, nil
}

// Standing is a player's position within a session.
type Standing struct {
	Challenges []hunt.Challenge
	Progress   map[string]hunt.PlayerProgress
	Current    *hunt.Challenge
	Score      int
}

// Complete reports whether every challenge is finalized.
func (s Standing) Complete() bool { return s.Current == nil }

// Standing loads the session's challenges and the player's records and works
// out the current challenge.
func (t *Tracker) Standing(ctx context.Context, sessionID, playerID string) (Standing, error) {
	challenges, err := t.store.ListChallenges(ctx, sessionID)
	if err != nil {
		return Standing{}, fmt.Errorf("listing challenges: %w", err)
	}
	records, err := t.store.ListProgress(ctx, sessionID, playerID)
	if err != nil {
		return Standing{}, fmt.Errorf("listing progress: %w", err)
	}
	score, err := t.store.Score(ctx, playerID)
	if err != nil {
		return Standing{}, fmt.Errorf("loading score: %w", err)
	}

	byChallenge := make(map[string]hunt.PlayerProgress, len(records))
	for _, r := range records {
		byChallenge[r.ChallengeID] = r
	}
	return Standing{
		Challenges: challenges,
		Progress:   byChallenge,
		Current:    Current(challenges, byChallenge),
		Score:      score,
	}, nil
}

// Current returns the lowest-position challenge whose record is not
// finalized, or nil when the player has finished the session.
func Current(challenges []hunt.Challenge, progress map[string]hunt.PlayerProgress) *hunt.Challenge {
	ordered := append([]hunt.Challenge(nil), challenges...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	for _, ch := range ordered {
		if !progress[ch.ID].Status.Final() {
			return &ch
		}
	}
	return nil
}
