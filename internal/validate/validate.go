// Package validate implements the per-type submission validators.
//
// Every validator honours the same contract: malformed input produces an
// incorrect, zero-confidence result with an explanation and never an error.
// The only error a validator returns wraps hunt.ErrGraderUnavailable.
package validate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/playperu/cityhunt/internal/hunt"
)

// Validator judges one submission against one challenge.
type Validator interface {
	Validate(ctx context.Context, ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error)
}

// Grader scores photo and free-form submissions. Implementations may be
// slow and may fail.
type Grader interface {
	GradePhoto(ctx context.Context, imageRef string, requiredElements []string) (float64, error)
	GradeSemantic(ctx context.Context, answer, prompt string) (float64, error)
}

// Thresholds are the tunable decision constants of the validators.
type Thresholds struct {
	TextCorrect          float64 `env:"TEXT_CORRECT" envDefault:"0.8"`
	TextPartial          float64 `env:"TEXT_PARTIAL" envDefault:"0.6"`
	KeywordCoverage      float64 `env:"KEYWORD_COVERAGE" envDefault:"0.5"`
	PhotoCorrect         float64 `env:"PHOTO_CORRECT" envDefault:"0.75"`
	SemanticCorrect      float64 `env:"SEMANTIC_CORRECT" envDefault:"0.6"`
	AcceptableConfidence float64 `env:"ACCEPTABLE_CONFIDENCE" envDefault:"0.95"`
	DefaultRadiusMeters  float64 `env:"DEFAULT_RADIUS_METERS" envDefault:"100"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		TextCorrect:          0.8,
		TextPartial:          0.6,
		KeywordCoverage:      0.5,
		PhotoCorrect:         0.75,
		SemanticCorrect:      0.6,
		AcceptableConfidence: 0.95,
		DefaultRadiusMeters:  100,
	}
}

// Set maps each challenge type to its validator.
type Set map[hunt.ChallengeType]Validator

// NewSet wires the standard validators. Grader calls are bounded by
// graderTimeout when it is positive.
func NewSet(g Grader, t Thresholds, graderTimeout time.Duration) Set {
	return Set{
		hunt.TypeText:     Text{Thresholds: t},
		hunt.TypeLocation: Location{Thresholds: t},
		hunt.TypeQR:       QR{},
		hunt.TypePhoto:    Photo{Grader: g, Thresholds: t, Timeout: graderTimeout},
		hunt.TypeAIPrompt: AIPrompt{Grader: g, Thresholds: t, Timeout: graderTimeout},
	}
}

// Malformed returns the result used for submissions missing the payload
// their type requires.
func Malformed(explanation string) hunt.ValidationResult {
	return hunt.ValidationResult{
		IsCorrect:   false,
		Confidence:  0,
		Explanation: explanation,
	}
}

// MissingPayload returns the explanation for a payload that lacks the field
// required by typ, or "" when the payload is usable. It mirrors the first
// check of each validator.
func MissingPayload(typ hunt.ChallengeType, p hunt.Payload) string {
	switch typ {
	case hunt.TypeText, hunt.TypeAIPrompt:
		if strings.TrimSpace(p.Text) == "" {
			return "answer not provided."
		}
	case hunt.TypePhoto:
		if strings.TrimSpace(p.ImageRef) == "" {
			return "photo not provided."
		}
	case hunt.TypeLocation:
		if p.Location == nil {
			return "location not provided."
		}
	case hunt.TypeQR:
		if p.Token == "" {
			return "QR code not provided."
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func graderUnavailable(what string, err error) error {
	return fmt.Errorf("grading %s: %w: %w", what, hunt.ErrGraderUnavailable, err)
}
