// Package landmark defines the landmark sets produced by a holistic
// pose/hand/face detector and the Detector interface that wraps it.
package landmark

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist     = 0
	ThumbCMC  = 1
	ThumbMCP  = 2
	ThumbIP   = 3
	ThumbTip  = 4
	IndexMCP  = 5
	IndexPIP  = 6
	IndexDIP  = 7
	IndexTip  = 8
	MiddleMCP = 9
	MiddlePIP = 10
	MiddleDIP = 11
	MiddleTip = 12
	RingMCP   = 13
	RingPIP   = 14
	RingDIP   = 15
	RingTip   = 16
	PinkyMCP  = 17
	PinkyPIP  = 18
	PinkyDIP  = 19
	PinkyTip  = 20
)

// Pose landmark indices used by the presets and tests.
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
)

// Group sizes reported by the holistic model.
const (
	NumPose = 33
	NumHand = 21
	NumFace = 468
)

// Point3D is a normalized landmark position. X and Y are in [0,1]
// relative to the frame; Z is depth relative to the wrist or hips.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PosePoint is a body landmark with the model's visibility estimate.
type PosePoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Set is the detection result for one frame. A nil group means the
// detector did not find it; groups are never zero-filled here.
type Set struct {
	Pose      *[NumPose]PosePoint `json:"pose,omitempty"`
	LeftHand  *[NumHand]Point3D   `json:"left_hand,omitempty"`
	RightHand *[NumHand]Point3D   `json:"right_hand,omitempty"`
	Face      *[NumFace]Point3D   `json:"face,omitempty"`
}

// HasPose reports whether pose landmarks were detected.
func (s *Set) HasPose() bool { return s != nil && s.Pose != nil }

// HasLeftHand reports whether a left hand was detected.
func (s *Set) HasLeftHand() bool { return s != nil && s.LeftHand != nil }

// HasRightHand reports whether a right hand was detected.
func (s *Set) HasRightHand() bool { return s != nil && s.RightHand != nil }

// HasFace reports whether face landmarks were detected.
func (s *Set) HasFace() bool { return s != nil && s.Face != nil }

// Empty reports whether no group was detected at all.
func (s *Set) Empty() bool {
	return !s.HasPose() && !s.HasLeftHand() && !s.HasRightHand() && !s.HasFace()
}
