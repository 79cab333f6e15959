package labels

import (
	"errors"
	"fmt"
)

// ErrUnknownScheme is returned when a map option does not name a threshold table.
var ErrUnknownScheme = errors.New("unknown category scheme")

// Scheme selects the threshold table used to bucket a score in [0.0, 5.0].
type Scheme int

const (
	// ThreeLevels buckets scores as [0, 3.2) Bassa, [3.2, 3.8) Media, [3.8, 5] Alta.
	ThreeLevels Scheme = 0
	// FourLevels buckets scores in steps of 1.25: Bassa, Media, Alta, Molto Alta.
	FourLevels Scheme = 1
)

var (
	threeLevelNames = []string{"Bassa", "Media", "Alta"}
	fourLevelNames  = []string{"Bassa", "Media", "Alta", "Molto Alta"}

	// Lower bounds of every bucket after the first. A value equal to a bound
	// belongs to the upper bucket.
	threeLevelBounds = []float64{3.2, 3.8}
	fourLevelBounds  = []float64{1.25, 2.5, 3.75}
)

// ParseScheme converts the numeric map option used on the command line.
func ParseScheme(option int) (Scheme, error) {
	switch Scheme(option) {
	case ThreeLevels, FourLevels:
		return Scheme(option), nil
	default:
		return 0, fmt.Errorf("%w: map option must be 0 or 1, got %d", ErrUnknownScheme, option)
	}
}

// Categories returns a fresh copy of the ordered label list for the scheme.
func (s Scheme) Categories() []string {
	var names []string
	switch s {
	case FourLevels:
		names = fourLevelNames
	default:
		names = threeLevelNames
	}
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Index maps a score to its category index. The mapping is total: values
// below the first bound land in bucket 0 and values at or above the last
// bound land in the top bucket.
func (s Scheme) Index(value float64) int {
	bounds := threeLevelBounds
	if s == FourLevels {
		bounds = fourLevelBounds
	}
	for i, bound := range bounds {
		if value < bound {
			return i
		}
	}
	return len(bounds)
}

func (s Scheme) String() string {
	switch s {
	case ThreeLevels:
		return "three-levels"
	case FourLevels:
		return "four-levels"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}
