package validate

import (
	"context"

	"github.com/playperu/cityhunt/internal/hunt"
)

// QR compares the scanned token byte for byte. A challenge without an
// expected token accepts any scan as proof of presence.
type QR struct{}

func (QR) Validate(_ context.Context, ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error) {
	token := sub.Payload.Token
	if token == "" {
		return Malformed("QR code not provided."), nil
	}

	expected := ch.Data.ExpectedToken
	if expected == "" || token == expected {
		return hunt.ValidationResult{IsCorrect: true, Confidence: 1, Explanation: "Code accepted."}, nil
	}
	return hunt.ValidationResult{
		IsCorrect:   false,
		Confidence:  0,
		Explanation: "This code does not belong to this challenge.",
		Suggestions: hintsOrDefault(ch, "Look for another code nearby."),
	}, nil
}
