// Package pipeline turns a split sample tree into a feature tree:
// in/<split>/<class>/<file> becomes out/<split>/<class>/<stem>.npy, and
// train samples additionally get a mirrored and a jittered copy. Sources
// whose stems collide within a class keep their extension in the name
// (a.jpg and a.png become a.npy and a_png.npy).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/mudra/internal/augment"
	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/npy"
	"github.com/ayusman/mudra/internal/split"
)

// Output name suffixes of augmented train copies.
const (
	FlipSuffix  = "_flip"
	NoiseSuffix = "_noise"
)

// Kind selects whether inputs are still images or videos.
type Kind int

const (
	Static Kind = iota
	Dynamic
)

func (k Kind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

// Featurizer extracts features from files. *feature.Extractor implements it.
type Featurizer interface {
	Layout() feature.Layout
	ExtractImage(path string) (feature.Vector, error)
	ExtractVideo(path string) (feature.Sequence, error)
}

// Config configures a Pipeline.
type Config struct {
	InputDir  string
	OutputDir string
	Kind      Kind

	// Augment enables the mirrored and jittered train copies.
	Augment bool

	// Exts overrides the accepted input extensions.
	Exts []string

	// OnItem, when set, sees every item as it is recorded.
	OnItem func(batch.Item)
}

// Pipeline runs one feature extraction pass. It processes files one at a
// time and is not safe for concurrent use.
type Pipeline struct {
	cfg    Config
	fz     Featurizer
	jitter *augment.Jitter
}

// New creates a Pipeline. jitter may be nil when cfg.Augment is false.
func New(cfg Config, fz Featurizer, jitter *augment.Jitter) (*Pipeline, error) {
	if cfg.Augment && jitter == nil {
		return nil, errors.New("augmentation needs a jitter source")
	}
	if cfg.Kind == Static && fz.Layout() != feature.HandsOnly {
		log.Printf("static pipeline using %s layout", fz.Layout())
	}
	if len(cfg.Exts) == 0 {
		cfg.Exts = dataset.ImageExts
		if cfg.Kind == Dynamic {
			cfg.Exts = dataset.VideoExts
		}
	}
	return &Pipeline{cfg: cfg, fz: fz, jitter: jitter}, nil
}

// Run processes every split and class. Unusable inputs are recorded in the
// summary and skipped; Run only returns an error when ctx is cancelled or
// the output tree cannot be created.
func (p *Pipeline) Run(ctx context.Context) (*batch.Summary, error) {
	summary := &batch.Summary{OnItem: p.cfg.OnItem}

	for _, name := range split.All {
		splitDir := filepath.Join(p.cfg.InputDir, string(name))
		classes, err := dataset.ListClasses(splitDir)
		if err != nil {
			summary.Skip(string(name), "", splitDir, err)
			continue
		}

		for _, class := range classes {
			if err := p.runClass(ctx, name, class, summary); err != nil {
				return summary, err
			}
		}
	}

	log.Printf("feature extraction done: %s", summary)
	return summary, nil
}

func (p *Pipeline) runClass(ctx context.Context, name split.Name, class string, summary *batch.Summary) error {
	inDir := filepath.Join(p.cfg.InputDir, string(name), class)
	files, err := dataset.ListFiles(inDir, p.cfg.Exts)
	if err != nil {
		summary.Skip(string(name), class, inDir, err)
		return nil
	}

	outDir := filepath.Join(p.cfg.OutputDir, string(name), class)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	before := summary.Counts()
	used := make(map[string]bool)
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, err := p.extract(src)
		if errors.Is(err, landmark.ErrServiceDown) {
			summary.Fail(string(name), class, src, err)
			return err
		}
		if err != nil {
			summary.Skip(string(name), class, src, err)
			continue
		}

		outputs, err := p.persist(s, outDir, outputStem(src, used), name == split.Train && p.cfg.Augment)
		if err != nil {
			summary.Fail(string(name), class, src, err)
			continue
		}
		summary.Succeed(string(name), class, src, outputs...)
	}

	after := summary.Counts()
	log.Printf("%s/%s: %d processed, %d skipped, %d failed", name, class,
		after.Succeeded-before.Succeeded, after.Skipped-before.Skipped, after.Failed-before.Failed)
	return nil
}

// sample is one extracted input. Static samples hold a single row and are
// written as 1-D arrays.
type sample struct {
	rows   feature.Sequence
	static bool
}

func (p *Pipeline) extract(src string) (sample, error) {
	if p.cfg.Kind == Dynamic {
		seq, err := p.fz.ExtractVideo(src)
		return sample{rows: seq}, err
	}
	v, err := p.fz.ExtractImage(src)
	return sample{rows: feature.Sequence{v}, static: true}, err
}

// outputStem picks the stem for src's outputs so that neither its own
// name nor its augmented names clash with anything already used in the
// class, and reserves all three. Taken stems fall back to stem_<ext>, then
// stem_<ext>_<n>.
func outputStem(src string, used map[string]bool) string {
	stem := dataset.Stem(src)
	taken := func(s string) bool {
		return used[s] || used[s+FlipSuffix] || used[s+NoiseSuffix]
	}

	if taken(stem) {
		if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(src), ".")); ext != "" {
			stem += "_" + ext
		}
		base := stem
		for n := 2; taken(stem); n++ {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
	}

	used[stem] = true
	used[stem+FlipSuffix] = true
	used[stem+NoiseSuffix] = true
	return stem
}

// persist writes the sample and, for train, its augmented copies. On error
// every file it already wrote is removed.
func (p *Pipeline) persist(s sample, outDir, stem string, augmentIt bool) (outputs []string, err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, path := range outputs {
			if rmErr := os.Remove(path); rmErr != nil {
				log.Printf("Error removing partial output %s: %v", path, rmErr)
			}
		}
		outputs = nil
	}()

	base := filepath.Join(outDir, stem+dataset.FeatureExt)
	if err := write(base, s); err != nil {
		return outputs, err
	}
	outputs = append(outputs, base)

	if !augmentIt {
		return outputs, nil
	}

	mirrored, err := augment.MirrorSequence(s.rows)
	if err != nil {
		return outputs, err
	}
	flip := filepath.Join(outDir, stem+FlipSuffix+dataset.FeatureExt)
	if err := write(flip, sample{rows: mirrored, static: s.static}); err != nil {
		return outputs, err
	}
	outputs = append(outputs, flip)

	noise := filepath.Join(outDir, stem+NoiseSuffix+dataset.FeatureExt)
	if err := write(noise, sample{rows: p.jitter.ApplySequence(s.rows), static: s.static}); err != nil {
		return outputs, err
	}
	return append(outputs, noise), nil
}

func write(path string, s sample) error {
	if s.static {
		return npy.WriteVector(path, s.rows[0])
	}
	return npy.WriteSequence(path, s.rows)
}
