package dataset

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/split"
)

// SplitOptions configures SplitClasses.
type SplitOptions struct {
	// Sources are raw roots whose class directories are pooled. The first
	// source defines the class set.
	Sources []string

	// OutDir receives OutDir/<split>/<class>/<file>.
	OutDir string

	// Exts filters the files taken from each class directory. Empty means
	// every file.
	Exts []string

	Splitter *split.Splitter

	// Assign, when set, is called for every copied file, so the
	// assignment can be recorded.
	Assign func(label, source string, s split.Name) error
}

// SplitClasses pools each class's files across the sources, splits them
// and copies them into the split layout. Existing class directories under
// OutDir are replaced. Only a missing first source or an unusable OutDir
// is an error; everything else is recorded in the summary.
func SplitClasses(opts SplitOptions) (*batch.Summary, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("no source directories")
	}
	if opts.Splitter == nil {
		return nil, errors.New("no splitter")
	}

	outAbs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, err
	}
	for _, src := range opts.Sources {
		if srcAbs, err := filepath.Abs(src); err == nil && srcAbs == outAbs {
			return nil, fmt.Errorf("output directory %s is also a source", opts.OutDir)
		}
	}

	classes, err := ListClasses(opts.Sources[0])
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	summary := &batch.Summary{}
	for _, class := range classes {
		files := poolClass(opts.Sources, class, opts.Exts, summary)
		res := opts.Splitter.Split(files)

		for _, name := range split.All {
			dir := filepath.Join(opts.OutDir, string(name), class)
			if err := os.RemoveAll(dir); err != nil {
				return summary, err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return summary, err
			}

			used := make(map[string]bool)
			for _, src := range res.Of(name) {
				dst := filepath.Join(dir, uniqueName(filepath.Base(src), used))
				if err := CopyFile(src, dst); err != nil {
					summary.Fail(string(name), class, src, err)
					continue
				}
				if opts.Assign != nil {
					if err := opts.Assign(class, src, name); err != nil {
						summary.Fail(string(name), class, src, err)
						continue
					}
				}
				summary.Succeed(string(name), class, src, dst)
			}
		}

		log.Printf("class %s: %d train, %d val, %d test",
			class, len(res.Train), len(res.Val), len(res.Test))
	}

	return summary, nil
}

func poolClass(sources []string, class string, exts []string, summary *batch.Summary) []string {
	var files []string
	for i, root := range sources {
		dir := filepath.Join(root, class)
		found, err := ListFiles(dir, exts)
		if err != nil {
			if i == 0 || !errors.Is(err, os.ErrNotExist) {
				summary.Skip("", class, dir, err)
			} else {
				log.Printf("class %s missing in %s", class, root)
			}
			continue
		}
		files = append(files, found...)
	}
	return files
}

// uniqueName returns base, or base with a _<n> suffix on the stem if base
// is already taken, and marks the result as used.
func uniqueName(base string, used map[string]bool) string {
	name := base
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	used[name] = true
	return name
}
