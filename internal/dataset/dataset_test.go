package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/split"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func makeClass(t *testing.T, root, class string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		touch(t, filepath.Join(root, class, fmt.Sprintf("%s_%d.jpg", class, i)))
	}
}

func TestListClasses(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"thanks", "hello", ".cache", "yes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	touch(t, filepath.Join(root, "README.md"))

	classes, err := ListClasses(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "thanks", "yes"}, classes)

	_, err = ListClasses(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.jpg", "c.png", "notes.txt", ".hidden.jpg"} {
		touch(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub.jpg"), 0o755))

	files, err := ListFiles(dir, ImageExts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "c.png"),
	}, files)

	all, err := ListFiles(dir, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "hello_3", Stem("/data/raw/hello/hello_3.jpg"))
	assert.Equal(t, "clip", Stem("clip.mp4"))
	assert.Equal(t, "noext", Stem("noext"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "dst.jpg")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old content that is longer"), 0o644))

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(got))

	assert.Error(t, CopyFile(filepath.Join(dir, "missing"), dst))
}

func TestUniqueName(t *testing.T) {
	used := make(map[string]bool)
	assert.Equal(t, "a.jpg", uniqueName("a.jpg", used))
	assert.Equal(t, "a_2.jpg", uniqueName("a.jpg", used))
	assert.Equal(t, "a_3.jpg", uniqueName("a.jpg", used))
	assert.Equal(t, "b.jpg", uniqueName("b.jpg", used))
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	files, err := ListFiles(dir, nil)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	require.NoError(t, err)
	return len(files)
}

func TestSplitClasses(t *testing.T) {
	raw := t.TempDir()
	out := filepath.Join(t.TempDir(), "split")
	makeClass(t, raw, "hello", 10)
	makeClass(t, raw, "thanks", 3)

	s, err := split.New(split.DefaultRatios, 42)
	require.NoError(t, err)

	type assignment struct {
		label, source string
		name          split.Name
	}
	var assigned []assignment

	summary, err := SplitClasses(SplitOptions{
		Sources:  []string{raw},
		OutDir:   out,
		Exts:     ImageExts,
		Splitter: s,
		Assign: func(label, source string, n split.Name) error {
			assigned = append(assigned, assignment{label, source, n})
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, batch.Counts{Succeeded: 13}, summary.Counts())
	assert.Len(t, assigned, 13)

	assert.Equal(t, 8, countFiles(t, filepath.Join(out, "train", "hello")))
	assert.Equal(t, 1, countFiles(t, filepath.Join(out, "val", "hello")))
	assert.Equal(t, 1, countFiles(t, filepath.Join(out, "test", "hello")))

	assert.Equal(t, 2, countFiles(t, filepath.Join(out, "train", "thanks")))
	assert.Equal(t, 0, countFiles(t, filepath.Join(out, "val", "thanks")))
	assert.Equal(t, 1, countFiles(t, filepath.Join(out, "test", "thanks")))
}

func TestSplitClasses_PoolsSources(t *testing.T) {
	raw := t.TempDir()
	mirrored := t.TempDir()
	out := filepath.Join(t.TempDir(), "split")

	makeClass(t, raw, "hello", 5)
	makeClass(t, raw, "thanks", 5)
	// same basenames in the second source
	makeClass(t, mirrored, "hello", 5)
	// class only present in the second source is ignored
	makeClass(t, mirrored, "extra", 4)

	s, err := split.New(split.Ratios{1, 0, 0}, 7)
	require.NoError(t, err)

	summary, err := SplitClasses(SplitOptions{
		Sources:  []string{raw, mirrored},
		OutDir:   out,
		Splitter: s,
	})
	require.NoError(t, err)

	assert.Equal(t, 15, summary.Counts().Succeeded)
	assert.Equal(t, 10, countFiles(t, filepath.Join(out, "train", "hello")))
	assert.Equal(t, 5, countFiles(t, filepath.Join(out, "train", "thanks")))
	assert.NoDirExists(t, filepath.Join(out, "train", "extra"))
}

func TestSplitClasses_RerunReplaces(t *testing.T) {
	raw := t.TempDir()
	out := filepath.Join(t.TempDir(), "split")
	makeClass(t, raw, "hello", 10)

	for _, seed := range []uint64{1, 2} {
		s, err := split.New(split.DefaultRatios, seed)
		require.NoError(t, err)

		_, err = SplitClasses(SplitOptions{Sources: []string{raw}, OutDir: out, Splitter: s})
		require.NoError(t, err)
	}

	total := 0
	for _, name := range split.All {
		total += countFiles(t, filepath.Join(out, string(name), "hello"))
	}
	assert.Equal(t, 10, total, "a second run must not leave stale files")
}

func TestSplitClasses_AssignFailure(t *testing.T) {
	raw := t.TempDir()
	makeClass(t, raw, "hello", 2)

	s, err := split.New(split.DefaultRatios, 3)
	require.NoError(t, err)

	summary, err := SplitClasses(SplitOptions{
		Sources:  []string{raw},
		OutDir:   filepath.Join(t.TempDir(), "out"),
		Splitter: s,
		Assign: func(string, string, split.Name) error {
			return errors.New("store closed")
		},
	})
	require.NoError(t, err)
	assert.Equal(t, batch.Counts{Failed: 2}, summary.Counts())
}

func TestSplitClasses_Errors(t *testing.T) {
	s, err := split.New(split.DefaultRatios, 3)
	require.NoError(t, err)

	t.Run("missing first source", func(t *testing.T) {
		_, err := SplitClasses(SplitOptions{
			Sources:  []string{filepath.Join(t.TempDir(), "nope")},
			OutDir:   t.TempDir(),
			Splitter: s,
		})
		assert.Error(t, err)
	})

	t.Run("output is a source", func(t *testing.T) {
		dir := t.TempDir()
		_, err := SplitClasses(SplitOptions{Sources: []string{dir}, OutDir: dir, Splitter: s})
		assert.Error(t, err)
	})

	t.Run("no sources", func(t *testing.T) {
		_, err := SplitClasses(SplitOptions{OutDir: t.TempDir(), Splitter: s})
		assert.Error(t, err)
	})
}
