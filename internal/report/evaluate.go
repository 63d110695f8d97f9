package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/labels"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/npy"
	"github.com/ayusman/mudra/internal/split"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ClassScore is the per-class precision and recall of an evaluation.
type ClassScore struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation is the result of scoring a classifier on one split.
// Confusion rows are true classes and columns are predicted classes, both
// in manifest order.
type Evaluation struct {
	Split     split.Name
	Labels    []string
	Confusion *mat.Dense
	Accuracy  float64
	PerClass  []ClassScore
	Samples   int
	Skipped   int
}

// Evaluate runs c over every feature file in featuresDir/<split>/<label>/
// and tallies the argmax predictions. Class folders not in the manifest and
// files whose shape the classifier rejects are skipped.
func Evaluate(ctx context.Context, c model.Classifier, m *labels.Manifest, featuresDir string, s split.Name) (*Evaluation, error) {
	n := m.Len()
	if n == 0 {
		return nil, errors.New("empty label manifest")
	}
	if classes := c.Shape().Classes; classes != 0 && classes != n {
		return nil, fmt.Errorf("classifier has %d classes, manifest has %d", classes, n)
	}

	root := filepath.Join(featuresDir, string(s))
	folders, err := dataset.ListClasses(root)
	if err != nil {
		return nil, fmt.Errorf("split directory: %w", err)
	}

	ev := &Evaluation{
		Split:     s,
		Labels:    append([]string(nil), m.Labels...),
		Confusion: mat.NewDense(n, n, nil),
	}

	for _, folder := range folders {
		truth, err := m.Index(folder)
		if err != nil {
			log.Printf("skipping class folder %s: %v", folder, err)
			continue
		}

		files, err := dataset.ListFiles(filepath.Join(root, folder), []string{dataset.FeatureExt})
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			rows, err := npy.ReadAny(f)
			if err != nil {
				log.Printf("skipping %s: %v", f, err)
				ev.Skipped++
				continue
			}

			probs, err := c.Predict(ctx, rows)
			if errors.Is(err, model.ErrBadInput) {
				log.Printf("skipping %s: %v", f, err)
				ev.Skipped++
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("predict %s: %w", f, err)
			}

			pred := floats.MaxIdx(probs)
			ev.Confusion.Set(truth, pred, ev.Confusion.At(truth, pred)+1)
			ev.Samples++
		}
	}

	ev.score()
	return ev, nil
}

func (ev *Evaluation) score() {
	n := len(ev.Labels)
	correct := 0.0
	ev.PerClass = make([]ClassScore, n)

	for i := 0; i < n; i++ {
		tp := ev.Confusion.At(i, i)
		correct += tp

		actual := floats.Sum(mat.Row(nil, i, ev.Confusion))
		predicted := floats.Sum(mat.Col(nil, i, ev.Confusion))

		sc := ClassScore{Label: ev.Labels[i], Support: int(actual)}
		if predicted > 0 {
			sc.Precision = tp / predicted
		}
		if actual > 0 {
			sc.Recall = tp / actual
		}
		if sc.Precision+sc.Recall > 0 {
			sc.F1 = 2 * sc.Precision * sc.Recall / (sc.Precision + sc.Recall)
		}
		ev.PerClass[i] = sc
	}

	if ev.Samples > 0 {
		ev.Accuracy = correct / float64(ev.Samples)
	}
}

// WriteReport writes a plain-text classification report and confusion
// matrix.
func (ev *Evaluation) WriteReport(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("Split: %s  samples: %d  skipped: %d  accuracy: %.4f\n\n", ev.Split, ev.Samples, ev.Skipped, ev.Accuracy)
	ew.printf("%-16s %9s %9s %9s %9s\n", "class", "precision", "recall", "f1", "support")
	for _, sc := range ev.PerClass {
		ew.printf("%-16s %9.3f %9.3f %9.3f %9d\n", sc.Label, sc.Precision, sc.Recall, sc.F1, sc.Support)
	}

	ew.printf("\nConfusion matrix (rows true, columns predicted):\n")
	ew.printf("%v\n", mat.Formatted(ev.Confusion, mat.Squeeze()))

	return ew.err
}
