// Package dataset lists and lays out the on-disk sample tree:
// root/<class>/<file> for raw data and root/<split>/<class>/<file> once split.
package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// File extensions, lower case.
var (
	ImageExts = []string{".jpg", ".jpeg", ".png"}
	VideoExts = []string{".mp4", ".avi", ".mov"}
)

// FeatureExt is the extension of persisted feature files.
const FeatureExt = ".npy"

// ListClasses returns the sorted class directory names under root.
// Hidden entries and plain files are ignored.
func ListClasses(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var classes []string
	for _, e := range entries {
		if !e.IsDir() || hidden(e.Name()) {
			continue
		}
		classes = append(classes, e.Name())
	}
	slices.Sort(classes)
	return classes, nil
}

// ListFiles returns the sorted paths of regular files in dir whose
// extension is in exts, compared case-insensitively. An empty exts
// accepts every file.
func ListFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || hidden(e.Name()) {
			continue
		}
		if len(exts) > 0 && !HasExt(e.Name(), exts) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// HasExt reports whether name ends in one of exts, ignoring case.
func HasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(exts, ext)
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
