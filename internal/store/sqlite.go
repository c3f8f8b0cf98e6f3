package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/cityhunt/internal/database"
	"github.com/playperu/cityhunt/internal/hunt"
)

const timeLayout = time.RFC3339Nano

// SQLite implements the engine store on the tables created by the
// migrations package. Challenge parameters live in a JSONB column.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// SaveChallenges inserts a generated sequence in one transaction. The
// (session_id, position) unique index rejects duplicate positions.
func (s *SQLite) SaveChallenges(ctx context.Context, challenges []hunt.Challenge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range challenges {
		data, err := json.Marshal(c.Data)
		if err != nil {
			return fmt.Errorf("encoding challenge data: %w", err)
		}
		var limit sql.NullInt64
		if c.TimeLimit != nil {
			limit = sql.NullInt64{Int64: c.TimeLimit.Milliseconds(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO challenges (id, session_id, position, template_id, type, title, description, points, data, time_limit_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, jsonb(?), ?)
		`, c.ID, c.SessionID, c.Position, c.TemplateID, string(c.Type), c.Title, c.Description, c.Points, string(data), limit)
		if err != nil {
			return fmt.Errorf("inserting challenge %d: %w", c.Position, err)
		}
	}
	return tx.Commit()
}

const challengeColumns = `id, session_id, position, template_id, type, title, description, points, json(data), time_limit_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row scanner) (hunt.Challenge, error) {
	var c hunt.Challenge
	var typ, data string
	var limit sql.NullInt64
	if err := row.Scan(&c.ID, &c.SessionID, &c.Position, &c.TemplateID, &typ, &c.Title, &c.Description, &c.Points, &data, &limit); err != nil {
		return c, err
	}
	c.Type = hunt.ChallengeType(typ)
	if err := json.Unmarshal([]byte(data), &c.Data); err != nil {
		return c, fmt.Errorf("decoding challenge data: %w", err)
	}
	if limit.Valid {
		d := time.Duration(limit.Int64) * time.Millisecond
		c.TimeLimit = &d
	}
	return c, nil
}

func (s *SQLite) LoadChallenge(ctx context.Context, id string) (hunt.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return c, hunt.ErrChallengeNotFound
	}
	return c, err
}

func (s *SQLite) ListChallenges(ctx context.Context, sessionID string) ([]hunt.Challenge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE session_id = ? ORDER BY position`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hunt.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const progressColumns = `player_id, challenge_id, session_id, status, submitted_answer, is_correct,
	points_earned, attempts, started_at, completed_at, version`

func scanProgress(row scanner) (hunt.PlayerProgress, error) {
	var p hunt.PlayerProgress
	var status string
	var started, completed sql.NullString
	err := row.Scan(&p.PlayerID, &p.ChallengeID, &p.SessionID, &status, &p.SubmittedAnswer, &p.IsCorrect,
		&p.PointsEarned, &p.Attempts, &started, &completed, &p.Version)
	if err != nil {
		return p, err
	}
	p.Status = hunt.ProgressStatus(status)
	if p.StartedAt, err = parseTime(started); err != nil {
		return p, err
	}
	if p.CompletedAt, err = parseTime(completed); err != nil {
		return p, err
	}
	return p, nil
}

func (s *SQLite) LoadProgress(ctx context.Context, playerID, challengeID string) (hunt.PlayerProgress, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM player_progress WHERE player_id = ? AND challenge_id = ?`,
		playerID, challengeID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.PlayerProgress{
			PlayerID:    playerID,
			ChallengeID: challengeID,
			Status:      hunt.StatusNotStarted,
		}, nil
	}
	return p, err
}

func (s *SQLite) ListProgress(ctx context.Context, sessionID, playerID string) ([]hunt.PlayerProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM player_progress WHERE session_id = ? AND player_id = ? ORDER BY challenge_id`,
		sessionID, playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hunt.PlayerProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CommitProgress writes first so the transaction takes the write lock before
// it reads anything; the version predicate is the compare-and-swap.
func (s *SQLite) CommitProgress(ctx context.Context, rec hunt.PlayerProgress, scoreDelta int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, commitErr("beginning transaction", err)
	}
	defer tx.Rollback()

	args := []any{
		string(rec.Status), rec.SubmittedAnswer, boolInt(rec.IsCorrect), rec.PointsEarned, rec.Attempts,
		formatTime(rec.StartedAt), formatTime(rec.CompletedAt),
	}

	var result sql.Result
	if rec.Version == 0 {
		result, err = tx.ExecContext(ctx, `
			INSERT INTO player_progress (status, submitted_answer, is_correct, points_earned, attempts,
				started_at, completed_at, player_id, challenge_id, session_id, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT (player_id, challenge_id) DO NOTHING
		`, append(args, rec.PlayerID, rec.ChallengeID, rec.SessionID)...)
	} else {
		result, err = tx.ExecContext(ctx, `
			UPDATE player_progress
			SET status = ?, submitted_answer = ?, is_correct = ?, points_earned = ?, attempts = ?,
				started_at = ?, completed_at = ?, version = version + 1
			WHERE player_id = ? AND challenge_id = ? AND version = ?
				AND status NOT IN ('completed', 'skipped')
		`, append(args, rec.PlayerID, rec.ChallengeID, rec.Version)...)
	}
	if err != nil {
		return 0, commitErr("writing progress", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, s.conflictReason(ctx, tx, rec)
	}

	var total int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO player_scores (player_id, score) VALUES (?, ?)
		ON CONFLICT (player_id) DO UPDATE SET score = score + excluded.score
		RETURNING score
	`, rec.PlayerID, scoreDelta).Scan(&total)
	if err != nil {
		return 0, commitErr("updating score", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, commitErr("committing", err)
	}
	return total, nil
}

// commitErr reports lock contention as a retryable storage conflict.
func commitErr(op string, err error) error {
	if database.IsBusy(err) {
		return fmt.Errorf("%s: %w: %v", op, hunt.ErrStorageConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// conflictReason tells a finalized record apart from a lost race.
func (s *SQLite) conflictReason(ctx context.Context, tx *sql.Tx, rec hunt.PlayerProgress) error {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM player_progress WHERE player_id = ? AND challenge_id = ?`,
		rec.PlayerID, rec.ChallengeID,
	).Scan(&status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if hunt.ProgressStatus(status).Final() {
		return hunt.ErrAlreadyFinalized
	}
	return hunt.ErrStorageConflict
}

func (s *SQLite) Score(ctx context.Context, playerID string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM player_scores WHERE player_id = ?`, playerID,
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return score, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
