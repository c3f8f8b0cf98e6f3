// Package measure holds the pure string and geometry functions the
// validators are built on.
package measure

import (
	"math"
	"strings"
	"unicode/utf8"
)

// EarthRadiusMeters is the spherical Earth radius used by GeoDistanceMeters.
const EarthRadiusMeters = 6_371_000.0

// Normalize trims surrounding whitespace and case-folds s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// StringSimilarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over
// the normalized runes of a and b. Two empty strings are identical.
func StringSimilarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// GeoDistanceMeters returns the haversine great-circle distance between two
// points given in decimal degrees.
func GeoDistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := radians(lat1)
	φ2 := radians(lat2)
	Δφ := radians(lat2 - lat1)
	Δλ := radians(lng2 - lng1)

	h := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	// Rounding can push h marginally outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
