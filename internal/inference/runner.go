package inference

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/mudra/internal/capture"
	"gocv.io/x/gocv"
)

// MaxReadFailures is how many consecutive failed camera reads end a run.
const MaxReadFailures = 30

// FrameFunc observes each processed frame. frame is only valid during the
// call. It returns false to stop the run.
type FrameFunc func(frame *gocv.Mat, p Prediction, ready bool) bool

// Runner reads frames from a camera and feeds them to a Recognizer until
// the context is cancelled, the camera runs out of frames or OnFrame asks
// to stop.
type Runner struct {
	Camera     capture.Camera
	Recognizer *Recognizer
	OnFrame    FrameFunc

	last string
}

// Run opens the camera and processes frames. The camera is closed on
// return. Frames that cannot be featurized are logged and skipped; a
// classifier error ends the run.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer r.Camera.Close()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := r.Camera.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			failures++
			if failures >= MaxReadFailures {
				return fmt.Errorf("camera: %d consecutive read failures: %w", failures, err)
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}
		failures = 0

		keepGoing, err := r.process(ctx, frame)
		frame.Close()
		if err != nil {
			return err
		}
		if !keepGoing {
			return nil
		}
	}
}

func (r *Runner) process(ctx context.Context, frame *gocv.Mat) (bool, error) {
	p, ready, err := r.Recognizer.Step(ctx, frame)
	if errors.Is(err, capture.ErrUnreadable) {
		log.Printf("Skipping frame: %v", err)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if ready && p.Text() != r.last {
		if p.Recognized {
			log.Printf("Sign recognized: %s (%.3f)", p.Label, p.Confidence)
		}
		r.last = p.Text()
	}

	if r.OnFrame != nil {
		return r.OnFrame(frame, p, ready), nil
	}
	return true, nil
}
