// Package report summarizes a dataset on disk and scores a classifier
// against a held-out split.
package report

import (
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/split"
	"gonum.org/v1/gonum/stat"
)

// ClassCount holds the file counts of one class at each dataset stage.
type ClassCount struct {
	Label    string `json:"label"`
	Raw      int    `json:"raw"`
	Mirrored int    `json:"mirrored"`
	Train    int    `json:"train"`
	Val      int    `json:"val"`
	Test     int    `json:"test"`
}

// Features returns the number of feature files across all splits.
func (c ClassCount) Features() int {
	return c.Train + c.Val + c.Test
}

func (c *ClassCount) add(o ClassCount) {
	c.Raw += o.Raw
	c.Mirrored += o.Mirrored
	c.Train += o.Train
	c.Val += o.Val
	c.Test += o.Test
}

// Stats is the per-class breakdown of a dataset.
type Stats struct {
	Classes []ClassCount `json:"classes"`
	Total   ClassCount   `json:"total"`
}

// CountDataset counts images and feature files per class. The classes are
// the subdirectories of rawDir; a class missing from another stage counts
// as zero there.
func CountDataset(rawDir, mirroredDir, featuresDir string) (*Stats, error) {
	classes, err := dataset.ListClasses(rawDir)
	if err != nil {
		return nil, fmt.Errorf("raw image directory: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class subdirectories in %s", rawDir)
	}

	s := &Stats{Total: ClassCount{Label: "Total"}}
	for _, class := range classes {
		c := ClassCount{
			Label:    class,
			Raw:      countFiles(filepath.Join(rawDir, class), dataset.ImageExts),
			Mirrored: countFiles(filepath.Join(mirroredDir, class), dataset.ImageExts),
			Train:    countFiles(filepath.Join(featuresDir, string(split.Train), class), []string{dataset.FeatureExt}),
			Val:      countFiles(filepath.Join(featuresDir, string(split.Val), class), []string{dataset.FeatureExt}),
			Test:     countFiles(filepath.Join(featuresDir, string(split.Test), class), []string{dataset.FeatureExt}),
		}
		s.Classes = append(s.Classes, c)
		s.Total.add(c)
	}

	return s, nil
}

func countFiles(dir string, exts []string) int {
	if dir == "" {
		return 0
	}
	files, err := dataset.ListFiles(dir, exts)
	if err != nil {
		log.Printf("Warning: could not read %s: %v", dir, err)
		return 0
	}
	return len(files)
}

// Balance returns the mean and standard deviation of feature files per
// class.
func (s *Stats) Balance() (mean, std float64) {
	if len(s.Classes) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(s.Classes))
	for i, c := range s.Classes {
		xs[i] = float64(c.Features())
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// WriteMarkdown writes the class distribution as a Markdown table.
func (s *Stats) WriteMarkdown(w io.Writer) error {
	mean, std := s.Balance()

	ew := &errWriter{w: w}
	ew.printf("### Dataset Statistics\n\n")
	ew.printf("The dataset contains **%d** processed feature samples across **%d** classes", s.Total.Features(), len(s.Classes))
	ew.printf(" (%.1f ± %.1f per class).\n\n", mean, std)
	ew.printf("**Class Distribution:**\n\n")
	ew.printf("| Class Label | Raw Images | Mirrored Images | Total Features | Train Features | Val Features | Test Features |\n")
	ew.printf("|-------------|------------|-----------------|----------------|----------------|--------------|---------------|\n")
	for _, c := range s.Classes {
		ew.printf("| %-11s | %-10d | %-15d | %-14d | %-14d | %-12d | %-13d |\n",
			c.Label, c.Raw, c.Mirrored, c.Features(), c.Train, c.Val, c.Test)
	}
	t := s.Total
	ew.printf("| **Total** | **%d** | **%d** | **%d** | **%d** | **%d** | **%d** |\n",
		t.Raw, t.Mirrored, t.Features(), t.Train, t.Val, t.Test)

	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
