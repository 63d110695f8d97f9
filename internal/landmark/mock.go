package landmark

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	set    *Set
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector that detects nothing.
func NewMockDetector() *MockDetector {
	return &MockDetector{set: &Set{}}
}

// SetResult sets the landmark set that will be returned by Detect.
func (m *MockDetector) SetResult(set *Set) {
	m.set = set
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured set or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Set, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.set, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	return m.closed
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.closed = true
	return nil
}

// OpenPalmHand returns a preset right hand with all fingers extended.
func OpenPalmHand() *[NumHand]Point3D {
	var h [NumHand]Point3D

	h[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	h[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	h[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	h[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	h[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	h[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	h[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	h[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	h[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	h[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	h[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	h[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	h[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	h[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	h[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	h[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	h[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	h[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	h[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	h[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	h[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return &h
}

// FistHand returns a preset left hand with the fingers curled in.
func FistHand() *[NumHand]Point3D {
	var h [NumHand]Point3D

	h[Wrist] = Point3D{X: 0.3, Y: 0.8, Z: 0.0}

	h[ThumbCMC] = Point3D{X: 0.27, Y: 0.76, Z: 0.01}
	h[ThumbMCP] = Point3D{X: 0.25, Y: 0.72, Z: 0.02}
	h[ThumbIP] = Point3D{X: 0.27, Y: 0.69, Z: 0.02}
	h[ThumbTip] = Point3D{X: 0.30, Y: 0.68, Z: 0.02}

	h[IndexMCP] = Point3D{X: 0.27, Y: 0.70, Z: -0.02}
	h[IndexPIP] = Point3D{X: 0.27, Y: 0.66, Z: -0.05}
	h[IndexDIP] = Point3D{X: 0.29, Y: 0.68, Z: -0.04}
	h[IndexTip] = Point3D{X: 0.30, Y: 0.71, Z: -0.02}

	h[MiddleMCP] = Point3D{X: 0.30, Y: 0.69, Z: -0.02}
	h[MiddlePIP] = Point3D{X: 0.30, Y: 0.65, Z: -0.05}
	h[MiddleDIP] = Point3D{X: 0.32, Y: 0.67, Z: -0.04}
	h[MiddleTip] = Point3D{X: 0.33, Y: 0.70, Z: -0.02}

	h[RingMCP] = Point3D{X: 0.33, Y: 0.70, Z: -0.02}
	h[RingPIP] = Point3D{X: 0.33, Y: 0.67, Z: -0.05}
	h[RingDIP] = Point3D{X: 0.35, Y: 0.69, Z: -0.04}
	h[RingTip] = Point3D{X: 0.36, Y: 0.72, Z: -0.02}

	h[PinkyMCP] = Point3D{X: 0.36, Y: 0.72, Z: -0.02}
	h[PinkyPIP] = Point3D{X: 0.36, Y: 0.70, Z: -0.05}
	h[PinkyDIP] = Point3D{X: 0.38, Y: 0.72, Z: -0.04}
	h[PinkyTip] = Point3D{X: 0.39, Y: 0.74, Z: -0.02}

	return &h
}

// StandingPose returns a preset upper-body pose facing the camera.
// Landmarks not set explicitly sit at the frame centre with low visibility.
func StandingPose() *[NumPose]PosePoint {
	var p [NumPose]PosePoint
	for i := range p {
		p[i] = PosePoint{X: 0.5, Y: 0.5, Z: 0.0, Visibility: 0.1}
	}

	p[Nose] = PosePoint{X: 0.50, Y: 0.20, Z: -0.30, Visibility: 0.99}
	p[LeftShoulder] = PosePoint{X: 0.62, Y: 0.40, Z: -0.10, Visibility: 0.98}
	p[RightShoulder] = PosePoint{X: 0.38, Y: 0.40, Z: -0.10, Visibility: 0.98}
	p[LeftElbow] = PosePoint{X: 0.68, Y: 0.58, Z: -0.05, Visibility: 0.90}
	p[RightElbow] = PosePoint{X: 0.32, Y: 0.58, Z: -0.05, Visibility: 0.90}
	p[LeftWrist] = PosePoint{X: 0.66, Y: 0.75, Z: -0.12, Visibility: 0.85}
	p[RightWrist] = PosePoint{X: 0.34, Y: 0.75, Z: -0.12, Visibility: 0.85}
	p[LeftHip] = PosePoint{X: 0.58, Y: 0.90, Z: 0.0, Visibility: 0.60}
	p[RightHip] = PosePoint{X: 0.42, Y: 0.90, Z: 0.0, Visibility: 0.60}

	return &p
}
