// Package augment produces the extra training samples written next to
// every train-split feature file: a left-right mirror and a jittered copy.
package augment

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ayusman/mudra/internal/feature"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSigma is the standard deviation of the jitter noise.
const DefaultSigma = 0.003

// ErrUnsupportedLength is returned by Mirror for vectors that match no layout.
var ErrUnsupportedLength = errors.New("unsupported vector length")

// Mirror returns v reflected left to right: every x becomes 1-x and the
// left and right hand blocks trade places.
//
// For pose+hands vectors the pose block keeps its landmark order, so pose
// left/right landmarks are not swapped even though their x is reflected.
// Models trained on existing feature files depend on this, so it stays.
func Mirror(v feature.Vector) (feature.Vector, error) {
	out := v.Clone()

	var handsAt int
	switch len(v) {
	case feature.HandsOnlySize:
		handsAt = 0
	case feature.PoseAndHandsSize:
		handsAt = feature.PoseBlock
		for i := 0; i < feature.PoseBlock; i += feature.PoseFields {
			out[i] = 1 - out[i]
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedLength, len(v))
	}

	for i := handsAt; i < len(out); i += feature.HandFields {
		out[i] = 1 - out[i]
	}

	left := out[handsAt : handsAt+feature.HandBlock]
	right := out[handsAt+feature.HandBlock:]
	for i := range left {
		left[i], right[i] = right[i], left[i]
	}

	return out, nil
}

// MirrorSequence mirrors every frame of seq.
func MirrorSequence(seq feature.Sequence) (feature.Sequence, error) {
	out := make(feature.Sequence, len(seq))
	for i, v := range seq {
		m, err := Mirror(v)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

// Jitter adds independent zero-mean Gaussian noise to every value.
// A Jitter is not safe for concurrent use.
type Jitter struct {
	noise distuv.Normal
}

// NewJitter returns a Jitter with standard deviation sigma whose noise is
// fully determined by seed.
func NewJitter(sigma float64, seed uint64) (*Jitter, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("noise sigma must be positive, got %g", sigma)
	}
	return &Jitter{
		noise: distuv.Normal{
			Mu:    0,
			Sigma: sigma,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}, nil
}

// Sigma returns the configured standard deviation.
func (j *Jitter) Sigma() float64 {
	return j.noise.Sigma
}

// Apply returns a noisy copy of v.
func (j *Jitter) Apply(v feature.Vector) feature.Vector {
	out := make(feature.Vector, len(v))
	for i, x := range v {
		out[i] = x + j.noise.Rand()
	}
	return out
}

// ApplySequence returns a noisy copy of every frame of seq.
func (j *Jitter) ApplySequence(seq feature.Sequence) feature.Sequence {
	out := make(feature.Sequence, len(seq))
	for i, v := range seq {
		out[i] = j.Apply(v)
	}
	return out
}
