package validate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/playperu/cityhunt/internal/hunt"
	"github.com/playperu/cityhunt/internal/measure"
)

// Text judges free-text answers, either against a canonical answer or by
// keyword coverage.
type Text struct {
	Thresholds Thresholds
}

func (v Text) Validate(_ context.Context, ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error) {
	answer := sub.Payload.Text
	if strings.TrimSpace(answer) == "" {
		return Malformed("answer not provided."), nil
	}

	data := ch.Data
	switch {
	case data.CorrectAnswer != "":
		return v.againstAnswer(ch, answer), nil
	case len(data.Keywords) > 0:
		return v.byKeywords(ch, answer), nil
	}

	// Open-response challenge: any answer counts.
	return hunt.ValidationResult{
		IsCorrect:   true,
		Confidence:  1,
		Explanation: "Answer recorded.",
	}, nil
}

func (v Text) againstAnswer(ch hunt.Challenge, answer string) hunt.ValidationResult {
	if measure.Normalize(answer) == measure.Normalize(ch.Data.CorrectAnswer) {
		return hunt.ValidationResult{IsCorrect: true, Confidence: 1, Explanation: "Correct!"}
	}

	sim := measure.StringSimilarity(answer, ch.Data.CorrectAnswer)
	if sim > v.Thresholds.TextCorrect {
		return hunt.ValidationResult{
			IsCorrect:   true,
			Confidence:  sim,
			Explanation: "Correct! Watch the spelling next time.",
		}
	}

	res := hunt.ValidationResult{
		IsCorrect:   false,
		Confidence:  sim,
		Explanation: "That is not the answer we were looking for.",
		Suggestions: hintsOrDefault(ch, "Check the clue again for details you might have missed."),
	}
	if sim > v.Thresholds.TextPartial && sim < v.Thresholds.TextCorrect {
		credit := min(int(math.Round(float64(ch.Points)*sim)), ch.Points)
		res.PartialCredit = &credit
		res.Explanation = fmt.Sprintf("Very close! You earn %d partial points.", credit)
	}
	return res
}

func (v Text) byKeywords(ch hunt.Challenge, answer string) hunt.ValidationResult {
	lowered := strings.ToLower(answer)
	var matched int
	var missing []string
	for _, kw := range ch.Data.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			matched++
		} else {
			missing = append(missing, kw)
		}
	}

	coverage := float64(matched) / float64(len(ch.Data.Keywords))
	res := hunt.ValidationResult{
		IsCorrect:   coverage >= v.Thresholds.KeywordCoverage,
		Confidence:  coverage,
		Explanation: fmt.Sprintf("Your answer covers %d of %d key points.", matched, len(ch.Data.Keywords)),
	}
	if !res.IsCorrect {
		res.Suggestions = hintsOrDefault(ch, "Describe more of what you observed.")
	}
	return res
}

func hintsOrDefault(ch hunt.Challenge, fallback string) []string {
	if len(ch.Data.Hints) > 0 {
		return append([]string(nil), ch.Data.Hints...)
	}
	return []string{fallback}
}
