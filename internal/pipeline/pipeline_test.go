package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/mudra/internal/augment"
	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeaturizer derives vectors from file names so no detector is needed.
// Files whose name contains "corrupt" are unreadable; "down" simulates a
// dead landmark service.
type fakeFeaturizer struct {
	layout feature.Layout
	frames int
}

func (f *fakeFeaturizer) Layout() feature.Layout { return f.layout }

func (f *fakeFeaturizer) vector(path string) feature.Vector {
	v := make(feature.Vector, f.layout.Size())
	for i := range v {
		v[i] = float64(len(filepath.Base(path))) / 100
	}
	return v
}

func (f *fakeFeaturizer) ExtractImage(path string) (feature.Vector, error) {
	if strings.Contains(path, "down") {
		return nil, fmt.Errorf("detect: %w: read response: EOF", landmark.ErrServiceDown)
	}
	if strings.Contains(path, "corrupt") {
		return nil, fmt.Errorf("%s: %w", path, capture.ErrUnreadable)
	}
	return f.vector(path), nil
}

func (f *fakeFeaturizer) ExtractVideo(path string) (feature.Sequence, error) {
	if strings.Contains(path, "corrupt") {
		return nil, fmt.Errorf("%s: %w", path, feature.ErrEmptyVideo)
	}
	seq := make(feature.Sequence, f.frames)
	for i := range seq {
		seq[i] = f.vector(path)
	}
	return seq, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func layoutTree(t *testing.T, root string, counts map[string]int, ext string) {
	t.Helper()
	for splitName, n := range counts {
		for i := 1; i <= n; i++ {
			touch(t, filepath.Join(root, splitName, "hello", fmt.Sprintf("hello_%d%s", i, ext)))
		}
	}
}

func countNPY(t *testing.T, dir string) int {
	t.Helper()
	files, err := dataset.ListFiles(dir, []string{dataset.FeatureExt})
	require.NoError(t, err)
	return len(files)
}

func TestRun_StaticAugmentsTrainOnly(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	layoutTree(t, in, map[string]int{"train": 8, "val": 1, "test": 1}, ".jpg")

	jitter, err := augment.NewJitter(augment.DefaultSigma, 1)
	require.NoError(t, err)

	p, err := New(Config{InputDir: in, OutputDir: out, Kind: Static, Augment: true},
		&fakeFeaturizer{layout: feature.HandsOnly}, jitter)
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batch.Counts{Succeeded: 10}, summary.Counts())
	assert.Equal(t, 24, countNPY(t, filepath.Join(out, "train", "hello")))
	assert.Equal(t, 1, countNPY(t, filepath.Join(out, "val", "hello")))
	assert.Equal(t, 1, countNPY(t, filepath.Join(out, "test", "hello")))

	base, err := npy.ReadVector(filepath.Join(out, "train", "hello", "hello_1.npy"))
	require.NoError(t, err)
	assert.Len(t, base, feature.HandsOnlySize)

	flip, err := npy.ReadVector(filepath.Join(out, "train", "hello", "hello_1_flip.npy"))
	require.NoError(t, err)
	want, err := augment.Mirror(base)
	require.NoError(t, err)
	assert.Equal(t, want, flip)

	noise, err := npy.ReadVector(filepath.Join(out, "train", "hello", "hello_1_noise.npy"))
	require.NoError(t, err)
	assert.Len(t, noise, feature.HandsOnlySize)
	assert.NotEqual(t, base, noise)

	assert.NoFileExists(t, filepath.Join(out, "val", "hello", "hello_1_flip.npy"))
}

func TestRun_Dynamic(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	layoutTree(t, in, map[string]int{"train": 2, "val": 1, "test": 1}, ".mp4")
	touch(t, filepath.Join(in, "train", "hello", "corrupt.mp4"))
	touch(t, filepath.Join(in, "train", "hello", "notes.txt"))

	jitter, err := augment.NewJitter(augment.DefaultSigma, 2)
	require.NoError(t, err)

	var items []batch.Item
	p, err := New(Config{
		InputDir:  in,
		OutputDir: out,
		Kind:      Dynamic,
		Augment:   true,
		OnItem:    func(it batch.Item) { items = append(items, it) },
	}, &fakeFeaturizer{layout: feature.PoseAndHands, frames: 5}, jitter)
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batch.Counts{Succeeded: 4, Skipped: 1}, summary.Counts())
	assert.Len(t, items, 5)
	assert.Equal(t, 6, countNPY(t, filepath.Join(out, "train", "hello")))

	seq, err := npy.ReadSequence(filepath.Join(out, "train", "hello", "hello_2_flip.npy"))
	require.NoError(t, err)
	require.Len(t, seq, 5)
	assert.Len(t, seq[0], feature.PoseAndHandsSize)

	problems := summary.Problems()
	require.Len(t, problems, 1)
	assert.True(t, errors.Is(problems[0].Err, feature.ErrEmptyVideo))
}

func TestRun_MissingSplitIsSkipped(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	layoutTree(t, in, map[string]int{"train": 3}, ".jpg")

	p, err := New(Config{InputDir: in, OutputDir: out}, &fakeFeaturizer{layout: feature.HandsOnly}, nil)
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, batch.Counts{Succeeded: 3, Skipped: 2}, summary.Counts())
	assert.Equal(t, 3, countNPY(t, filepath.Join(out, "train", "hello")), "no augmentation requested")
}

func TestRun_Rerun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	layoutTree(t, in, map[string]int{"train": 2, "val": 1, "test": 1}, ".jpg")

	jitter, err := augment.NewJitter(augment.DefaultSigma, 3)
	require.NoError(t, err)
	p, err := New(Config{InputDir: in, OutputDir: out, Augment: true}, &fakeFeaturizer{layout: feature.HandsOnly}, jitter)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 6, countNPY(t, filepath.Join(out, "train", "hello")))
}

func TestRun_Cancelled(t *testing.T) {
	in := t.TempDir()
	layoutTree(t, in, map[string]int{"train": 3}, ".jpg")

	p, err := New(Config{InputDir: in, OutputDir: t.TempDir()}, &fakeFeaturizer{layout: feature.HandsOnly}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Counts().Succeeded)
}

func TestNew_AugmentNeedsJitter(t *testing.T) {
	_, err := New(Config{Augment: true}, &fakeFeaturizer{layout: feature.HandsOnly}, nil)
	assert.Error(t, err)
}

func TestMirrorImages_Unreadable(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	touch(t, filepath.Join(in, "hello", "broken.jpg"))

	summary, err := MirrorImages(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, batch.Counts{Skipped: 1}, summary.Counts())
	assert.DirExists(t, filepath.Join(out, "hello"))
}

func TestOutputStem(t *testing.T) {
	used := make(map[string]bool)
	for _, tc := range []struct {
		src  string
		want string
	}{
		{"in/a.jpg", "a"},
		{"in/a.png", "a_png"},
		{"other/a.png", "a_png_2"},
		{"in/b.jpg", "b"},
		{"in/b_flip.jpg", "b_flip_jpg"},
		{"in/c_noise.JPG", "c_noise"},
		{"in/c.jpg", "c_jpg"},
	} {
		assert.Equal(t, tc.want, outputStem(tc.src, used), tc.src)
	}
}

func TestRun_CollidingStems(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	for _, name := range []string{"a.jpg", "a.png", "b.jpg", "b_flip.jpg"} {
		touch(t, filepath.Join(in, "train", "hello", name))
	}

	jitter, err := augment.NewJitter(augment.DefaultSigma, 4)
	require.NoError(t, err)
	p, err := New(Config{InputDir: in, OutputDir: out, Augment: true}, &fakeFeaturizer{layout: feature.HandsOnly}, jitter)
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	dir := filepath.Join(out, "train", "hello")
	assert.Equal(t, 4, summary.Counts().Succeeded)
	assert.Equal(t, 12, countNPY(t, dir))
	assert.Len(t, summary.Outputs(), 12)
	for _, name := range []string{"a.npy", "a_png.npy", "a_png_flip.npy", "b_flip.npy", "b_flip_jpg.npy", "b_flip_jpg_noise.npy"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestRun_ServiceDownAborts(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	layoutTree(t, in, map[string]int{"train": 2, "val": 1}, ".jpg")
	touch(t, filepath.Join(in, "train", "hello", "down.jpg"))

	p, err := New(Config{InputDir: in, OutputDir: out}, &fakeFeaturizer{layout: feature.HandsOnly}, nil)
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.ErrorIs(t, err, landmark.ErrServiceDown)
	assert.Equal(t, batch.Counts{Failed: 1}, summary.Counts())
	assert.Equal(t, 0, countNPY(t, filepath.Join(out, "train", "hello")))
}

func TestPersist_RemovesPartialOutputs(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(out, "x"+FlipSuffix+dataset.FeatureExt), 0o755))

	jitter, err := augment.NewJitter(augment.DefaultSigma, 5)
	require.NoError(t, err)
	fz := &fakeFeaturizer{layout: feature.HandsOnly}
	p, err := New(Config{Augment: true}, fz, jitter)
	require.NoError(t, err)

	s := sample{rows: feature.Sequence{fz.vector("x.jpg")}, static: true}
	outputs, err := p.persist(s, out, "x", true)
	require.Error(t, err)
	assert.Empty(t, outputs)
	assert.NoFileExists(t, filepath.Join(out, "x"+dataset.FeatureExt))
	assert.NoFileExists(t, filepath.Join(out, "x"+NoiseSuffix+dataset.FeatureExt))
}
