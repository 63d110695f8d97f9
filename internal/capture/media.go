package capture

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// ReadImage decodes a colour image from disk. A missing or corrupt file
// yields ErrUnreadable. The caller closes the returned Mat.
func ReadImage(path string) (*gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrUnreadable)
	}
	return &mat, nil
}

// WriteImage encodes mat to path; the format follows the extension.
func WriteImage(path string, mat gocv.Mat) error {
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("write image %s", path)
	}
	return nil
}

// FlipHorizontal returns a left-right mirrored copy of src.
func FlipHorizontal(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Flip(src, &dst, 1)
	return dst
}

// VideoFile decodes frames from a video on disk.
type VideoFile struct {
	path string
	vc   *gocv.VideoCapture
}

// OpenVideo opens path for decoding.
func OpenVideo(path string) (*VideoFile, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnreadable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrUnreadable)
	}
	return &VideoFile{path: path, vc: vc}, nil
}

// Next returns the next decoded frame, or ErrEndOfStream once the video is
// exhausted. The caller closes the returned Mat.
func (v *VideoFile) Next() (*gocv.Mat, error) {
	mat := gocv.NewMat()
	if ok := v.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEndOfStream
	}
	return &mat, nil
}

// Close releases the decoder.
func (v *VideoFile) Close() error {
	return v.vc.Close()
}

// Recorder encodes frames into a video file.
type Recorder struct {
	w *gocv.VideoWriter
}

// RecordCodec is the FourCC used for recorded clips.
const RecordCodec = "avc1"

// CreateVideo opens an mp4 writer at the given rate and frame size.
func CreateVideo(path string, fps float64, width, height int) (*Recorder, error) {
	w, err := gocv.VideoWriterFile(path, RecordCodec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("create video %s: %w", path, err)
	}
	return &Recorder{w: w}, nil
}

// Write appends one frame.
func (r *Recorder) Write(frame gocv.Mat) error {
	return r.w.Write(frame)
}

// Close finalizes the file.
func (r *Recorder) Close() error {
	return r.w.Close()
}

// Key codes returned by Display.Show.
const (
	KeyNone  = -1
	KeySpace = ' '
	KeyStart = 's'
	KeyQuit  = 'q'
)

// Display is an on-screen preview window.
type Display struct {
	win *gocv.Window
}

// NewDisplay opens a preview window with the given title.
func NewDisplay(title string) *Display {
	return &Display{win: gocv.NewWindow(title)}
}

var overlayColor = color.RGBA{G: 255, A: 255}

// Show draws frame with an optional text overlay and waits up to 1 ms for a
// key press. It returns the key code, or KeyNone.
func (d *Display) Show(frame gocv.Mat, overlay string) int {
	if overlay != "" {
		gocv.PutText(&frame, overlay, image.Pt(10, 30), gocv.FontHersheySimplex, 1.0, overlayColor, 2)
	}
	d.win.IMShow(frame)
	return d.win.WaitKey(1)
}

// Close destroys the window.
func (d *Display) Close() error {
	return d.win.Close()
}
