package labels

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrLabelIndex is returned when the correct index does not point into the choices.
var ErrLabelIndex = errors.New("label index out of range")

// ChoiceSet is the list of answers presented for one record and the position
// of the correct one.
type ChoiceSet struct {
	Choices []string
	Label   int
}

// Correct returns the label string the set points at.
func (c ChoiceSet) Correct() string {
	return c.Choices[c.Label]
}

// Shuffler permutes answer choices so a model cannot learn positional bias.
// A disabled Shuffler returns the choices in their original order.
type Shuffler struct {
	enabled bool
	rng     *rand.Rand
}

// NewShuffler builds a Shuffler. A nil source draws a fresh random seed, so
// two runs produce different orderings.
func NewShuffler(enabled bool, src rand.Source) *Shuffler {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Shuffler{enabled: enabled, rng: rand.New(src)}
}

// SeededSource returns a deterministic source for reproducible runs.
func SeededSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed)
}

// Enabled reports whether choices are permuted.
func (s *Shuffler) Enabled() bool {
	return s.enabled
}

// Shuffle returns a copy of choices, permuted when the Shuffler is enabled,
// together with the new index of choices[label].
func (s *Shuffler) Shuffle(choices []string, label int) (ChoiceSet, error) {
	if label < 0 || label >= len(choices) {
		return ChoiceSet{}, fmt.Errorf("%w: %d not in [0, %d)", ErrLabelIndex, label, len(choices))
	}

	out := make([]string, len(choices))
	if !s.enabled {
		copy(out, choices)
		return ChoiceSet{Choices: out, Label: label}, nil
	}

	// Permuting positions rather than strings keeps the correct index exact
	// even if two labels were ever spelled the same.
	perm := s.rng.Perm(len(choices))
	newLabel := -1
	for i, src := range perm {
		out[i] = choices[src]
		if src == label {
			newLabel = i
		}
	}
	return ChoiceSet{Choices: out, Label: newLabel}, nil
}
