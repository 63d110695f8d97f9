// Package anonymize blurs faces in collected images with an OpenCV DNN
// face detector (the ResNet-10 SSD Caffe model) before a dataset is shared.
package anonymize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/dataset"
	"gocv.io/x/gocv"
)

// Defaults for the SSD face detector.
const (
	DefaultConfidence = 0.5
	DefaultKernel     = 99
)

const inputSize = 300

var meanBGR = gocv.NewScalar(104, 177, 123, 0)

// Anonymizer owns a loaded face detection network. It is not safe for
// concurrent use.
type Anonymizer struct {
	net        gocv.Net
	confidence float64
	kernel     int
}

// New loads the Caffe face detector.
func New(prototxt, caffemodel string, confidence float64, kernel int) (*Anonymizer, error) {
	for _, p := range []string{prototxt, caffemodel} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("face model: %w", err)
		}
	}
	if kernel < 1 || kernel%2 == 0 {
		return nil, fmt.Errorf("blur kernel must be odd and positive, got %d", kernel)
	}

	net := gocv.ReadNetFromCaffe(prototxt, caffemodel)
	if net.Empty() {
		return nil, errors.New("could not load face detector")
	}

	return &Anonymizer{net: net, confidence: confidence, kernel: kernel}, nil
}

// Close releases the network.
func (a *Anonymizer) Close() error {
	return a.net.Close()
}

// Apply blurs every face detected above the confidence threshold in place.
// It reports whether any region was blurred.
func (a *Anonymizer) Apply(img *gocv.Mat) (bool, error) {
	if img == nil || img.Empty() {
		return false, capture.ErrUnreadable
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(*img, &resized, image.Pt(inputSize, inputSize), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0, image.Pt(inputSize, inputSize), meanBGR, false, false)
	defer blob.Close()

	a.net.SetInput(blob, "")
	detections := a.net.Forward("")
	defer detections.Close()

	w, h := img.Cols(), img.Rows()
	blurred := false

	// each detection is [image, class, confidence, x0, y0, x1, y1]
	for i := 0; i < detections.Total(); i += 7 {
		conf := float64(detections.GetFloatAt(0, i+2))
		if conf <= a.confidence {
			continue
		}

		box := clampBox(
			int(detections.GetFloatAt(0, i+3)*float32(w)),
			int(detections.GetFloatAt(0, i+4)*float32(h)),
			int(detections.GetFloatAt(0, i+5)*float32(w)),
			int(detections.GetFloatAt(0, i+6)*float32(h)),
			w, h,
		)

		kw, kh := fitKernel(a.kernel, box.Dx()), fitKernel(a.kernel, box.Dy())
		if kw <= 0 || kh <= 0 {
			log.Printf("Face region too small to blur: %v", box)
			continue
		}

		blurRegion(img, box, kw, kh)
		blurred = true
	}

	return blurred, nil
}

func blurRegion(img *gocv.Mat, box image.Rectangle, kw, kh int) {
	roi := img.Region(box)
	defer roi.Close()

	out := gocv.NewMat()
	defer out.Close()

	gocv.GaussianBlur(roi, &out, image.Pt(kw, kh), 0, 0, gocv.BorderDefault)
	out.CopyTo(&roi)
}

// clampBox orders and clips a detection box to the image bounds.
func clampBox(x0, y0, x1, y1, w, h int) image.Rectangle {
	return image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, w, h))
}

// fitKernel shrinks kernel to the largest odd size that fits in size pixels.
func fitKernel(kernel, size int) int {
	limit := size
	if limit%2 == 0 {
		limit--
	}
	return min(kernel, limit)
}

// Dir blurs faces in every image under roots, recursively, overwriting
// only the images where a face was blurred. Missing roots are logged and
// skipped. Items with an output are the rewritten images.
func (a *Anonymizer) Dir(ctx context.Context, roots ...string) (*batch.Summary, error) {
	summary := &batch.Summary{}

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			log.Printf("Folder not found, skipping: %s", root)
			continue
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				summary.Skip("", "", path, err)
				return nil
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !dataset.HasExt(d.Name(), dataset.ImageExts) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			a.file(path, summary)
			return nil
		})
		if err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (a *Anonymizer) file(path string, summary *batch.Summary) {
	label := filepath.Base(filepath.Dir(path))

	img, err := capture.ReadImage(path)
	if err != nil {
		summary.Skip("", label, path, err)
		return
	}
	defer img.Close()

	blurred, err := a.Apply(img)
	if err != nil {
		summary.Fail("", label, path, err)
		return
	}
	if !blurred {
		summary.Succeed("", label, path)
		return
	}

	if err := capture.WriteImage(path, *img); err != nil {
		summary.Fail("", label, path, err)
		return
	}
	summary.Succeed("", label, path, path)
}
