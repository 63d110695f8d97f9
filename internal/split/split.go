// Package split assigns each class's samples to train, val and test.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Name identifies one output split.
type Name string

const (
	Train Name = "train"
	Val   Name = "val"
	Test  Name = "test"
)

// All lists the splits in output order.
var All = []Name{Train, Val, Test}

// ParseName validates a split directory name.
func ParseName(s string) (Name, error) {
	for _, n := range All {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown split %q", s)
}

// ErrInvalidRatios is returned for ratio triples that are negative or do
// not sum to one.
var ErrInvalidRatios = errors.New("invalid split ratios")

// Ratios holds the train, val and test fractions.
type Ratios [3]float64

// DefaultRatios is 80/10/10.
var DefaultRatios = Ratios{0.8, 0.1, 0.1}

const ratioTolerance = 1e-9

// Validate checks that every ratio is non-negative and that they sum to 1.
func (r Ratios) Validate() error {
	sum := 0.0
	for i, v := range r {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: ratio %d is %g", ErrInvalidRatios, i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > ratioTolerance {
		return fmt.Errorf("%w: sum is %g", ErrInvalidRatios, sum)
	}
	return nil
}

// Sizes returns how many of n samples land in each split. The cut points
// are floor(n*r0) and floor(n*(r0+r1)); test takes the remainder.
func Sizes(n int, r Ratios) (train, val, test int) {
	a := int(math.Floor(float64(n) * r[0]))
	b := int(math.Floor(float64(n) * (r[0] + r[1])))
	if b > n {
		b = n
	}
	return a, b - a, n - b
}

// Result is one class's split.
type Result struct {
	Train []string
	Val   []string
	Test  []string
}

// Of returns the members of the named split.
func (r Result) Of(name Name) []string {
	switch name {
	case Train:
		return r.Train
	case Val:
		return r.Val
	case Test:
		return r.Test
	default:
		return nil
	}
}

// Len returns the total number of members.
func (r Result) Len() int {
	return len(r.Train) + len(r.Val) + len(r.Test)
}

// Splitter shuffles and cuts sample lists. Successive calls to Split draw
// from one random stream, so a seed and a fixed class order reproduce the
// whole dataset split.
type Splitter struct {
	ratios Ratios
	seed   uint64
	rng    *rand.Rand
}

// New returns a Splitter with an explicit seed.
func New(ratios Ratios, seed uint64) (*Splitter, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{
		ratios: ratios,
		seed:   seed,
		rng:    rand.New(rand.NewPCG(seed, 0)),
	}, nil
}

// NewFromEntropy returns a Splitter seeded from process entropy. Seed
// reports the value drawn so the split can be recorded and replayed.
func NewFromEntropy(ratios Ratios) (*Splitter, error) {
	return New(ratios, rand.Uint64())
}

// Seed returns the seed the splitter was created with.
func (s *Splitter) Seed() uint64 {
	return s.seed
}

// Ratios returns the configured ratios.
func (s *Splitter) Ratios() Ratios {
	return s.ratios
}

// Split shuffles a copy of paths and cuts it into train, val and test.
// Every input appears in exactly one output. Fewer than three inputs may
// leave splits empty.
func (s *Splitter) Split(paths []string) Result {
	shuffled := make([]string, len(paths))
	copy(shuffled, paths)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	train, val, _ := Sizes(len(shuffled), s.ratios)

	return Result{
		Train: shuffled[:train],
		Val:   shuffled[train : train+val],
		Test:  shuffled[train+val:],
	}
}
