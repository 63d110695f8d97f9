// Package feature turns landmark sets into the fixed-length vectors that
// are stored on disk and fed to classifiers.
//
// Two layouts exist. HandsOnly (126 values) is left hand then right hand,
// each 21 points of x, y, z. PoseAndHands (258 values) prefixes the hands
// with 33 pose points of x, y, z, visibility. Groups the detector did not
// find are written as zeros so the length never varies within a layout.
package feature

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/mudra/internal/landmark"
)

// Block sizes in values.
const (
	PoseFields = 4
	HandFields = 3

	PoseBlock = landmark.NumPose * PoseFields // 132
	HandBlock = landmark.NumHand * HandFields // 63

	HandsOnlySize    = 2 * HandBlock           // 126
	PoseAndHandsSize = PoseBlock + 2*HandBlock // 258
)

// ErrUnknownLayout is returned for layout names or values that are not defined.
var ErrUnknownLayout = errors.New("unknown feature layout")

// Layout selects which landmark groups make up a vector.
type Layout int

const (
	// HandsOnly is used for static (single image) signs.
	HandsOnly Layout = iota + 1
	// PoseAndHands is used for dynamic (video) signs.
	PoseAndHands
)

// Size returns the vector length for the layout, or 0 if it is unknown.
func (l Layout) Size() int {
	switch l {
	case HandsOnly:
		return HandsOnlySize
	case PoseAndHands:
		return PoseAndHandsSize
	default:
		return 0
	}
}

func (l Layout) String() string {
	switch l {
	case HandsOnly:
		return "hands_only"
	case PoseAndHands:
		return "pose_and_hands"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout accepts the names produced by String. "static" and "dynamic"
// are accepted as aliases.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hands_only", "static":
		return HandsOnly, nil
	case "pose_and_hands", "dynamic":
		return PoseAndHands, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
	}
}

// LayoutForSize maps a vector length back to its layout.
func LayoutForSize(n int) (Layout, error) {
	switch n {
	case HandsOnlySize:
		return HandsOnly, nil
	case PoseAndHandsSize:
		return PoseAndHands, nil
	default:
		return 0, fmt.Errorf("%w: no layout has %d values", ErrUnknownLayout, n)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Layout) MarshalText() ([]byte, error) {
	if l.Size() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLayout, int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Layout) UnmarshalText(text []byte) error {
	parsed, err := ParseLayout(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
