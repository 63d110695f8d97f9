package feature

import (
	"fmt"

	"github.com/ayusman/mudra/internal/landmark"
)

// Vector is one frame's features.
type Vector []float64

// Sequence is the per-frame vectors of one video, in frame order.
type Sequence []Vector

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Rows returns the sequence as plain rows, sharing storage.
func (s Sequence) Rows() [][]float64 {
	rows := make([][]float64, len(s))
	for i, v := range s {
		rows[i] = v
	}
	return rows
}

// Encode flattens set into a vector of the given layout. Absent groups are
// zero blocks. Encode is pure and never fails for a known layout.
func Encode(set *landmark.Set, layout Layout) (Vector, error) {
	size := layout.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLayout, int(layout))
	}

	v := make(Vector, 0, size)

	if layout == PoseAndHands {
		if set.HasPose() {
			for _, p := range set.Pose {
				v = append(v, p.X, p.Y, p.Z, p.Visibility)
			}
		} else {
			v = append(v, make([]float64, PoseBlock)...)
		}
	}

	var left, right *[landmark.NumHand]landmark.Point3D
	if set != nil {
		left, right = set.LeftHand, set.RightHand
	}
	v = appendHand(v, left)
	v = appendHand(v, right)

	return v, nil
}

func appendHand(v Vector, hand *[landmark.NumHand]landmark.Point3D) Vector {
	if hand == nil {
		return append(v, make([]float64, HandBlock)...)
	}
	for _, p := range hand {
		v = append(v, p.X, p.Y, p.Z)
	}
	return v
}
