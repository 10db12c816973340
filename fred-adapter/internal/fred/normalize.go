package fred

import (
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"

	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

// ParseValue converts a raw FRED value into a float. The "." sentinel, blanks,
// non-numeric text and non-finite numbers all come back as missing; it never fails.
func ParseValue(raw string) null.Float {
	s := strings.TrimSpace(raw)
	if s == "" || s == missingSentinel {
		return null.Float{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// Normalize maps raw observations to model observations, keeping order and length.
func Normalize(raw []RawObservation) []model.Observation {
	out := make([]model.Observation, len(raw))
	for i, o := range raw {
		out[i] = model.Observation{
			Date:  strings.TrimSpace(o.Date),
			Value: ParseValue(string(o.Value)),
		}
	}
	return out
}
