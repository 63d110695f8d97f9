package feature

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		size   int
	}{
		{name: "hands_only", layout: HandsOnly, size: 126},
		{name: "pose_and_hands", layout: PoseAndHands, size: 258},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.layout.Size())
			assert.Equal(t, tt.name, tt.layout.String())

			parsed, err := ParseLayout(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.layout, parsed)

			fromSize, err := LayoutForSize(tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.layout, fromSize)
		})
	}

	t.Run("aliases", func(t *testing.T) {
		l, err := ParseLayout("Static")
		require.NoError(t, err)
		assert.Equal(t, HandsOnly, l)

		l, err = ParseLayout("dynamic")
		require.NoError(t, err)
		assert.Equal(t, PoseAndHands, l)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseLayout("face_only")
		assert.ErrorIs(t, err, ErrUnknownLayout)

		_, err = LayoutForSize(100)
		assert.ErrorIs(t, err, ErrUnknownLayout)

		assert.Equal(t, 0, Layout(9).Size())
	})

	t.Run("text round trip", func(t *testing.T) {
		text, err := PoseAndHands.MarshalText()
		require.NoError(t, err)

		var l Layout
		require.NoError(t, l.UnmarshalText(text))
		assert.Equal(t, PoseAndHands, l)
	})
}

func TestEncode_LengthIsConstant(t *testing.T) {
	sets := map[string]*landmark.Set{
		"nil":        nil,
		"empty":      {},
		"left only":  {LeftHand: landmark.FistHand()},
		"right only": {RightHand: landmark.OpenPalmHand()},
		"both hands": {LeftHand: landmark.FistHand(), RightHand: landmark.OpenPalmHand()},
		"pose only":  {Pose: landmark.StandingPose()},
		"everything": {Pose: landmark.StandingPose(), LeftHand: landmark.FistHand(), RightHand: landmark.OpenPalmHand()},
	}

	for name, set := range sets {
		for _, layout := range []Layout{HandsOnly, PoseAndHands} {
			t.Run(name+"/"+layout.String(), func(t *testing.T) {
				v, err := Encode(set, layout)
				require.NoError(t, err)
				assert.Len(t, v, layout.Size())
			})
		}
	}
}

func TestEncode_Order(t *testing.T) {
	left := landmark.FistHand()
	right := landmark.OpenPalmHand()
	pose := landmark.StandingPose()

	t.Run("hands only", func(t *testing.T) {
		v, err := Encode(&landmark.Set{LeftHand: left, RightHand: right, Pose: pose}, HandsOnly)
		require.NoError(t, err)

		assert.Equal(t, left[landmark.Wrist].X, v[0])
		assert.Equal(t, left[landmark.Wrist].Y, v[1])
		assert.Equal(t, left[landmark.Wrist].Z, v[2])
		assert.Equal(t, left[landmark.PinkyTip].Z, v[HandBlock-1])
		assert.Equal(t, right[landmark.Wrist].X, v[HandBlock])
		assert.Equal(t, right[landmark.PinkyTip].Z, v[HandsOnlySize-1])
	})

	t.Run("pose and hands", func(t *testing.T) {
		v, err := Encode(&landmark.Set{LeftHand: left, Pose: pose}, PoseAndHands)
		require.NoError(t, err)

		assert.Equal(t, pose[landmark.Nose].X, v[0])
		assert.Equal(t, pose[landmark.Nose].Visibility, v[3])
		assert.Equal(t, left[landmark.Wrist].X, v[PoseBlock])

		for i := PoseBlock + HandBlock; i < PoseAndHandsSize; i++ {
			if v[i] != 0 {
				t.Fatalf("absent right hand value %d = %f, want 0", i, v[i])
			}
		}
	})

	t.Run("absent pose is zero block", func(t *testing.T) {
		v, err := Encode(&landmark.Set{RightHand: right}, PoseAndHands)
		require.NoError(t, err)

		for i := 0; i < PoseBlock+HandBlock; i++ {
			if v[i] != 0 {
				t.Fatalf("value %d = %f, want 0", i, v[i])
			}
		}
		assert.Equal(t, right[landmark.Wrist].X, v[PoseBlock+HandBlock])
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, err := Encode(&landmark.Set{}, Layout(0))
		assert.ErrorIs(t, err, ErrUnknownLayout)
	})
}

func TestExtractor(t *testing.T) {
	t.Run("extract uses detector output", func(t *testing.T) {
		det := landmark.NewMockDetector()
		det.SetResult(&landmark.Set{RightHand: landmark.OpenPalmHand()})

		ex, err := NewExtractor(det, HandsOnly)
		require.NoError(t, err)

		v, err := ex.Extract(nil)
		require.NoError(t, err)
		assert.Len(t, v, HandsOnlySize)
		assert.Equal(t, landmark.OpenPalmHand()[landmark.Wrist].X, v[HandBlock])
		assert.Equal(t, HandsOnly, ex.Layout())
	})

	t.Run("detector failure is unreadable", func(t *testing.T) {
		det := landmark.NewMockDetector()
		det.SetError(errors.New("pipe closed"))

		ex, err := NewExtractor(det, PoseAndHands)
		require.NoError(t, err)

		_, err = ex.Extract(nil)
		assert.ErrorIs(t, err, capture.ErrUnreadable)
	})

	t.Run("dead service is not unreadable", func(t *testing.T) {
		det := landmark.NewMockDetector()
		det.SetError(fmt.Errorf("%w: read response: EOF", landmark.ErrServiceDown))

		ex, err := NewExtractor(det, HandsOnly)
		require.NoError(t, err)

		_, err = ex.Extract(nil)
		assert.ErrorIs(t, err, landmark.ErrServiceDown)
		assert.NotErrorIs(t, err, capture.ErrUnreadable)
	})

	t.Run("missing image is unreadable", func(t *testing.T) {
		ex, err := NewExtractor(landmark.NewMockDetector(), HandsOnly)
		require.NoError(t, err)

		_, err = ex.ExtractImage(filepath.Join(t.TempDir(), "nope.jpg"))
		assert.ErrorIs(t, err, capture.ErrUnreadable)
	})

	t.Run("missing video is unreadable", func(t *testing.T) {
		ex, err := NewExtractor(landmark.NewMockDetector(), PoseAndHands)
		require.NoError(t, err)

		_, err = ex.ExtractVideo(filepath.Join(t.TempDir(), "nope.mp4"))
		assert.ErrorIs(t, err, capture.ErrUnreadable)
	})

	t.Run("close closes detector", func(t *testing.T) {
		det := landmark.NewMockDetector()
		ex, err := NewExtractor(det, HandsOnly)
		require.NoError(t, err)

		require.NoError(t, ex.Close())
		assert.True(t, det.Closed())
	})

	t.Run("unknown layout rejected", func(t *testing.T) {
		_, err := NewExtractor(landmark.NewMockDetector(), Layout(7))
		assert.ErrorIs(t, err, ErrUnknownLayout)
	})
}
