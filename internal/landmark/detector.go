package landmark

import "gocv.io/x/gocv"

// Detector defines the interface for holistic landmark detection.
type Detector interface {
	// Detect analyzes a BGR frame and returns the landmark groups found.
	// Groups that were not detected are nil in the returned Set.
	Detect(frame *gocv.Mat) (*Set, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for holistic detection.
type Config struct {
	// Script is the path to the holistic service script. When empty the
	// usual locations are searched.
	Script string

	// Python is the interpreter used to run Script. When empty a project
	// virtualenv is preferred, then python3.
	Python string

	// StaticImageMode treats every frame independently (batch image jobs)
	// instead of tracking across frames (video and live capture).
	StaticImageMode bool

	// MinDetectionConf is the minimum detection confidence (0.0-1.0).
	MinDetectionConf float64

	// MinTrackingConf is the minimum tracking confidence (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinDetectionConf: 0.5,
		MinTrackingConf:  0.5,
	}
}
