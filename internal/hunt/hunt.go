// Package hunt defines the core domain types shared by the validation and
// progression engine. It has no dependencies outside the standard library.
package hunt

import (
	"time"
)

type ChallengeType string

const (
	TypeText     ChallengeType = "text"
	TypePhoto    ChallengeType = "photo"
	TypeLocation ChallengeType = "location"
	TypeQR       ChallengeType = "qr"
	TypeAIPrompt ChallengeType = "ai-prompt"
)

func (t ChallengeType) Valid() bool {
	switch t {
	case TypeText, TypePhoto, TypeLocation, TypeQR, TypeAIPrompt:
		return true
	}
	return false
}

type Theme string

const (
	ThemeUrban  Theme = "urban"
	ThemeNature Theme = "nature"
	ThemeIndoor Theme = "indoor"
	ThemeMixed  Theme = "mixed"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeUrban, ThemeNature, ThemeIndoor, ThemeMixed:
		return true
	}
	return false
}

// Difficulty is ordered: easy < medium < hard < expert.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Rank returns the ordinal of d starting at 0, or -1 for unknown values.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 0
	case DifficultyMedium:
		return 1
	case DifficultyHard:
		return 2
	case DifficultyExpert:
		return 3
	}
	return -1
}

func (d Difficulty) Valid() bool { return d.Rank() >= 0 }

type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Params holds the type-specific validation parameters of a template. The
// same struct is copied into Challenge.Data at generation time.
type Params struct {
	CorrectAnswer     string       `json:"correctAnswer,omitempty" yaml:"correct_answer"`
	Keywords          []string     `json:"keywords,omitempty" yaml:"keywords"`
	Target            *Coordinates `json:"target,omitempty" yaml:"target"`
	RadiusMeters      float64      `json:"radiusMeters,omitempty" yaml:"radius_meters"`
	ExpectedToken     string       `json:"expectedToken,omitempty" yaml:"expected_token"`
	Prompt            string       `json:"prompt,omitempty" yaml:"prompt"`
	AcceptableAnswers []string     `json:"acceptableAnswers,omitempty" yaml:"acceptable_answers"`
	RequiredElements  []string     `json:"requiredElements,omitempty" yaml:"required_elements"`
	Hints             []string     `json:"hints,omitempty" yaml:"hints"`
}

func (p Params) clone() Params {
	c := p
	c.Keywords = append([]string(nil), p.Keywords...)
	c.AcceptableAnswers = append([]string(nil), p.AcceptableAnswers...)
	c.RequiredElements = append([]string(nil), p.RequiredElements...)
	c.Hints = append([]string(nil), p.Hints...)
	if p.Target != nil {
		t := *p.Target
		c.Target = &t
	}
	return c
}

type ChallengeTemplate struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	Type             ChallengeType `yaml:"type"`
	Difficulty       Difficulty    `yaml:"difficulty"`
	Theme            Theme         `yaml:"theme"`
	Points           int           `yaml:"points"`
	EstimatedMinutes int           `yaml:"estimated_minutes"`
	TimeLimit        time.Duration `yaml:"time_limit"`
	Params           Params        `yaml:"params"`
}

// Materialize binds t to a session position. Params are deep-copied so the
// challenge never aliases catalog memory.
func (t ChallengeTemplate) Materialize(id, sessionID string, position int) Challenge {
	c := Challenge{
		ID:          id,
		SessionID:   sessionID,
		Position:    position,
		TemplateID:  t.ID,
		Type:        t.Type,
		Title:       t.Name,
		Description: t.Description,
		Points:      t.Points,
		Data:        t.Params.clone(),
	}
	if t.TimeLimit > 0 {
		limit := t.TimeLimit
		c.TimeLimit = &limit
	}
	return c
}

type Challenge struct {
	ID          string
	SessionID   string
	Position    int
	TemplateID  string
	Type        ChallengeType
	Title       string
	Description string
	Points      int
	Data        Params
	TimeLimit   *time.Duration
}

// Payload is the type-specific part of a submission. Only the field matching
// the submission type is read.
type Payload struct {
	Text     string       `json:"text,omitempty"`
	ImageRef string       `json:"imageRef,omitempty"`
	Location *Coordinates `json:"location,omitempty"`
	Token    string       `json:"token,omitempty"`
}

type Submission struct {
	ChallengeID string
	PlayerID    string
	Type        ChallengeType
	Payload     Payload
	SubmittedAt time.Time
}

type ValidationResult struct {
	IsCorrect     bool     `json:"isCorrect"`
	Confidence    float64  `json:"confidence"`
	Explanation   string   `json:"explanation"`
	PartialCredit *int     `json:"partialCredit,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
}

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusSkipped    ProgressStatus = "skipped"
)

// Final reports whether s is terminal.
func (s ProgressStatus) Final() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// PlayerProgress is the durable per-(player, challenge) record. Version is
// bumped on every write and used for compare-and-swap; zero means the record
// has never been stored.
type PlayerProgress struct {
	PlayerID        string
	ChallengeID     string
	SessionID       string
	Status          ProgressStatus
	SubmittedAnswer string
	IsCorrect       bool
	PointsEarned    int
	Attempts        int
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Version         int
}

// ScoreEvent is emitted after a committed transition that changed the
// player's cumulative score.
type ScoreEvent struct {
	SessionID   string    `json:"sessionId"`
	PlayerID    string    `json:"playerId"`
	ChallengeID string    `json:"challengeId"`
	Position    int       `json:"position"`
	Delta       int       `json:"delta"`
	Total       int       `json:"total"`
	At          time.Time `json:"at"`
}
