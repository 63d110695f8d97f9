// Package collect records raw training data from a camera: still photos
// for static signs and fixed-length clips for dynamic ones. Files land in
// root/<label>/ as <label>_<n>.jpg or <label>_<n>.mp4, numbered after
// whatever the directory already holds.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"gocv.io/x/gocv"
)

// RecordFPS is the frame rate written into recorded clips.
const RecordFPS = 20.0

// DefaultCountdown is the pause before each clip.
const DefaultCountdown = time.Second

// Screen shows frames to the operator and returns the key pressed.
// *capture.Display implements it.
type Screen interface {
	Show(frame gocv.Mat, overlay string) int
	Close() error
}

// NextIndex returns one more than the number of entries in dir, or 1 if
// dir does not exist.
func NextIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return len(entries) + 1, nil
}

// Collector drives a camera and a screen. It owns neither.
type Collector struct {
	Camera    capture.Camera
	Screen    Screen
	Root      string
	Countdown time.Duration
}

func (c *Collector) labelDir(label string) (string, error) {
	if label == "" {
		return "", errors.New("empty label")
	}
	dir := filepath.Join(c.Root, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Photos saves the current frame each time the capture key is pressed,
// until the quit key or ctx ends the session. It returns the paths saved.
func (c *Collector) Photos(ctx context.Context, label string) ([]string, error) {
	dir, err := c.labelDir(label)
	if err != nil {
		return nil, err
	}
	next, err := NextIndex(dir)
	if err != nil {
		return nil, err
	}

	var saved []string
	for ctx.Err() == nil {
		frame, err := c.Camera.ReadFrame()
		if err != nil {
			return saved, fmt.Errorf("read frame: %w", err)
		}

		shown := frame.Clone()
		key := c.Screen.Show(shown, "SPACE capture, q quit | count "+strconv.Itoa(next-1))
		shown.Close()

		switch key {
		case capture.KeyQuit:
			frame.Close()
			return saved, nil
		case capture.KeySpace:
			path := filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", label, next))
			if err := capture.WriteImage(path, *frame); err != nil {
				frame.Close()
				return saved, err
			}
			log.Printf("Captured: %s", path)
			saved = append(saved, path)
			next++
		}
		frame.Close()
	}
	return saved, nil
}

// Videos waits for the start key, then records count clips of the given
// wall-clock duration, each preceded by a countdown. The quit key before
// the start ends the session without recording.
func (c *Collector) Videos(ctx context.Context, label string, count int, duration time.Duration) ([]string, error) {
	if count <= 0 || duration <= 0 {
		return nil, fmt.Errorf("need a positive clip count and duration, got %d and %v", count, duration)
	}
	dir, err := c.labelDir(label)
	if err != nil {
		return nil, err
	}

	started, err := c.waitForStart(ctx)
	if err != nil || !started {
		return nil, err
	}

	first, err := NextIndex(dir)
	if err != nil {
		return nil, err
	}

	var saved []string
	for n := first; n < first+count; n++ {
		if err := c.countdown(ctx); err != nil {
			return saved, err
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%d.mp4", label, n))
		log.Printf("Recording %s for %v", path, duration)
		if err := c.record(ctx, path, duration); err != nil {
			return saved, err
		}
		log.Printf("Saved: %s", path)
		saved = append(saved, path)
	}
	return saved, nil
}

func (c *Collector) waitForStart(ctx context.Context) (bool, error) {
	for ctx.Err() == nil {
		frame, err := c.Camera.ReadFrame()
		if err != nil {
			return false, fmt.Errorf("read frame: %w", err)
		}
		key := c.Screen.Show(*frame, "Press 's' to start, 'q' to quit")
		frame.Close()

		switch key {
		case capture.KeyStart:
			return true, nil
		case capture.KeyQuit:
			return false, nil
		}
	}
	return false, ctx.Err()
}

func (c *Collector) countdown(ctx context.Context) error {
	secs := int(c.Countdown / time.Second)
	for s := secs; s > 0; s-- {
		frame, err := c.Camera.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		c.Screen.Show(*frame, strconv.Itoa(s))
		frame.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

func (c *Collector) record(ctx context.Context, path string, duration time.Duration) error {
	frame, err := c.Camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}

	rec, err := capture.CreateVideo(path, RecordFPS, frame.Cols(), frame.Rows())
	if err != nil {
		frame.Close()
		return err
	}
	defer rec.Close()

	deadline := time.Now().Add(duration)
	for {
		werr := rec.Write(*frame)
		if werr == nil {
			c.Screen.Show(*frame, "RECORDING...")
		}
		frame.Close()
		if werr != nil {
			return fmt.Errorf("write %s: %w", path, werr)
		}

		if time.Now().After(deadline) || ctx.Err() != nil {
			return ctx.Err()
		}

		frame, err = c.Camera.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
	}
}
