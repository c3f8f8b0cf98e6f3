package validate

import (
	"context"
	"fmt"
	"math"

	"github.com/playperu/cityhunt/internal/hunt"
	"github.com/playperu/cityhunt/internal/measure"
)

// Location accepts submissions within the challenge radius of its target.
type Location struct {
	Thresholds Thresholds
}

func (v Location) Validate(_ context.Context, ch hunt.Challenge, sub hunt.Submission) (hunt.ValidationResult, error) {
	pos := sub.Payload.Location
	if pos == nil {
		return Malformed("location not provided."), nil
	}
	target := ch.Data.Target
	if target == nil {
		return Malformed("challenge has no target location."), nil
	}

	radius := ch.Data.RadiusMeters
	if radius <= 0 {
		radius = v.Thresholds.DefaultRadiusMeters
	}

	dist := measure.GeoDistanceMeters(pos.Lat, pos.Lng, target.Lat, target.Lng)
	res := hunt.ValidationResult{
		IsCorrect:  dist <= radius,
		Confidence: math.Max(0, 1-dist/(2*radius)),
	}
	if res.IsCorrect {
		res.Explanation = fmt.Sprintf("You made it! %.0f m from the target.", dist)
		return res, nil
	}
	res.Explanation = fmt.Sprintf("You are %.0f m from the target; get within %.0f m.", dist, radius)
	res.Suggestions = hintsOrDefault(ch, "Move closer to the marked spot and try again.")
	return res, nil
}
