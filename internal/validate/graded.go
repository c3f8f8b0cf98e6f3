package validate

import (
	"context"
	"strings"
	"time"

	"github.com/playperu/cityhunt/internal/hunt"
)

// Photo delegates to the grader and accepts confidences above
// Thresholds.PhotoCorrect.
type Photo struct {
	Grader     Grader
	Thresholds Thresholds
	Timeout    time.Duration
}

func (v Photo) Validate(ctx context.Context, ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error) {
	ref := strings.TrimSpace(sub.Payload.ImageRef)
	if ref == "" {
		return Malformed("photo not provided."), nil
	}

	gctx, cancel := withTimeout(ctx, v.Timeout)
	defer cancel()

	conf, err := v.Grader.GradePhoto(gctx, ref, ch.Data.RequiredElements)
	if err != nil {
		return hunt.ValidationResult{}, graderUnavailable("photo", err)
	}
	conf = clamp01(conf)

	if conf > v.Thresholds.PhotoCorrect {
		return hunt.ValidationResult{IsCorrect: true, Confidence: conf, Explanation: "Great shot! Photo accepted."}, nil
	}
	suggestions := []string{"Make sure the subject is clearly visible."}
	if len(ch.Data.RequiredElements) > 0 {
		suggestions = append(suggestions, "Include: "+strings.Join(ch.Data.RequiredElements, ", ")+".")
	}
	return hunt.ValidationResult{
		IsCorrect:   false,
		Confidence:  conf,
		Explanation: "We could not confirm the photo matches the challenge.",
		Suggestions: append(suggestions, ch.Data.Hints...),
	}, nil
}

// AIPrompt accepts answers containing one of the acceptable answers and
// otherwise asks the grader for a semantic judgement.
type AIPrompt struct {
	Grader     Grader
	Thresholds Thresholds
	Timeout    time.Duration
}

func (v AIPrompt) Validate(ctx context.Context, ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error) {
	answer := strings.TrimSpace(sub.Payload.Text)
	if answer == "" {
		return Malformed("answer not provided."), nil
	}

	lowered := strings.ToLower(answer)
	for _, acc := range ch.Data.AcceptableAnswers {
		if acc != "" && strings.Contains(lowered, strings.ToLower(acc)) {
			return hunt.ValidationResult{
				IsCorrect:   true,
				Confidence:  v.Thresholds.AcceptableConfidence,
				Explanation: "Correct!",
			}, nil
		}
	}

	prompt := ch.Data.Prompt
	if prompt == "" {
		prompt = ch.Description
	}

	gctx, cancel := withTimeout(ctx, v.Timeout)
	defer cancel()

	conf, err := v.Grader.GradeSemantic(gctx, answer, prompt)
	if err != nil {
		return hunt.ValidationResult{}, graderUnavailable("answer", err)
	}
	conf = clamp01(conf)

	if conf > v.Thresholds.SemanticCorrect {
		return hunt.ValidationResult{IsCorrect: true, Confidence: conf, Explanation: "Good reasoning, answer accepted."}, nil
	}
	return hunt.ValidationResult{
		IsCorrect:   false,
		Confidence:  conf,
		Explanation: "Your answer does not quite address the question.",
		Suggestions: hintsOrDefault(ch, "Re-read the prompt and be more specific."),
	}, nil
}
