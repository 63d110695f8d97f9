package feature

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/landmark"
	"gocv.io/x/gocv"
)

// ErrEmptyVideo is returned when a video decodes to zero frames.
var ErrEmptyVideo = errors.New("video has no frames")

// Extractor owns a detector session and featurizes frames, images and
// videos with a single layout. It is not safe for concurrent use.
type Extractor struct {
	det    landmark.Detector
	layout Layout
}

// NewExtractor wraps det. The extractor takes ownership and closes det.
func NewExtractor(det landmark.Detector, layout Layout) (*Extractor, error) {
	if layout.Size() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLayout, int(layout))
	}
	return &Extractor{det: det, layout: layout}, nil
}

// Layout returns the layout every vector is produced in.
func (e *Extractor) Layout() Layout {
	return e.layout
}

// Extract featurizes a single frame.
func (e *Extractor) Extract(frame *gocv.Mat) (Vector, error) {
	set, err := e.det.Detect(frame)
	if errors.Is(err, landmark.ErrServiceDown) {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: detect: %v", capture.ErrUnreadable, err)
	}
	return Encode(set, e.layout)
}

// ExtractImage featurizes one image file.
func (e *Extractor) ExtractImage(path string) (Vector, error) {
	img, err := capture.ReadImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	return e.Extract(img)
}

// ExtractVideo featurizes every decoded frame of a video file.
func (e *Extractor) ExtractVideo(path string) (Sequence, error) {
	video, err := capture.OpenVideo(path)
	if err != nil {
		return nil, err
	}
	defer video.Close()

	var seq Sequence
	for {
		frame, err := video.Next()
		if errors.Is(err, capture.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, err
		}

		v, err := e.Extract(frame)
		frame.Close()
		if err != nil {
			return nil, fmt.Errorf("%s frame %d: %w", path, len(seq), err)
		}
		seq = append(seq, v)
	}

	if len(seq) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyVideo)
	}
	return seq, nil
}

// Close closes the underlying detector.
func (e *Extractor) Close() error {
	return e.det.Close()
}
