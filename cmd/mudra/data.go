package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ayusman/mudra/internal/anonymize"
	"github.com/ayusman/mudra/internal/augment"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/labels"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/report"
	"github.com/ayusman/mudra/internal/split"
)

func runMirror(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)
	in := fs.String("in", cfg.Data.RawDir, "raw image root with one folder per class")
	out := fs.String("out", cfg.Data.MirroredDir, "output root for mirrored images")
	fs.Parse(args)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	run := startRun(st, "mirror", "")

	summary, err := pipeline.MirrorImages(ctx, *in, *out)
	run.record(summary)
	run.finish(summary)
	if err != nil {
		return err
	}

	printSummary("mirror", summary)
	return nil
}

// parseSeed returns the seed from flag text, then from cfgSeed. ok is
// false when neither is set.
func parseSeed(text string, cfgSeed *uint64) (seed uint64, ok bool, err error) {
	if text != "" {
		seed, err = strconv.ParseUint(text, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid seed %q: %w", text, err)
		}
		return seed, true, nil
	}
	if cfgSeed != nil {
		return *cfgSeed, true, nil
	}
	return 0, false, nil
}

func runSplit(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	sources := fs.String("sources", cfg.Data.RawDir+","+cfg.Data.MirroredDir, "comma-separated source roots; the first defines the classes")
	out := fs.String("out", cfg.Data.SplitDir, "output root for <split>/<class>/")
	seedText := fs.String("seed", "", "shuffle seed (default: config, else random)")
	dynamic := fs.Bool("dynamic", cfg.Data.Dynamic, "split videos instead of images")
	fs.Parse(args)

	seed, ok, err := parseSeed(*seedText, cfg.Split.Seed)
	if err != nil {
		return err
	}
	var splitter *split.Splitter
	if ok {
		splitter, err = split.New(cfg.Split.Ratios, seed)
	} else {
		splitter, err = split.NewFromEntropy(cfg.Split.Ratios)
	}
	if err != nil {
		return err
	}
	log.Printf("Splitting with ratios %v and seed %d", splitter.Ratios(), splitter.Seed())

	exts := dataset.ImageExts
	if *dynamic {
		exts = dataset.VideoExts
	}

	opts := dataset.SplitOptions{
		Sources:  splitList(*sources),
		OutDir:   *out,
		Exts:     exts,
		Splitter: splitter,
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	var run *tracker
	if st != nil {
		defer st.Close()
		run = startRun(st, "split", "")

		snap, err := st.Snapshots().Create(splitter.Ratios(), splitter.Seed())
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		log.Printf("Snapshot %s", snap.ID)
		opts.Assign = func(label, source string, s split.Name) error {
			return st.Snapshots().Assign(snap.ID, label, source, s)
		}
	}

	summary, err := dataset.SplitClasses(opts)
	run.record(summary)
	run.finish(summary)
	if err != nil {
		return err
	}

	printSummary("split", summary)
	fmt.Printf("seed: %d\n", splitter.Seed())
	return nil
}

func runExtract(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	in := fs.String("in", cfg.Data.SplitDir, "split root with <split>/<class>/ inputs")
	out := fs.String("out", cfg.Data.FeaturesDir, "feature root for <split>/<class>/*.npy")
	dynamic := fs.Bool("dynamic", cfg.Data.Dynamic, "extract frame sequences from videos")
	noAugment := fs.Bool("no-augment", !cfg.Augment.Enabled, "skip the mirrored and jittered train copies")
	seedText := fs.String("seed", "", "noise seed (default: config, else random)")
	fs.Parse(args)

	kind := pipeline.Static
	layout := feature.HandsOnly
	if *dynamic {
		kind = pipeline.Dynamic
		layout = feature.PoseAndHands
	}
	if cfg.Data.Layout != "" {
		layout = cfg.Layout()
	}

	var jitter *augment.Jitter
	if !*noAugment {
		seed, ok, err := parseSeed(*seedText, cfg.Augment.Seed)
		if err != nil {
			return err
		}
		if !ok {
			seed = rand.Uint64()
		}
		log.Printf("Noise sigma %g, seed %d", cfg.Augment.NoiseSigma, seed)
		jitter, err = augment.NewJitter(cfg.Augment.NoiseSigma, seed)
		if err != nil {
			return err
		}
	}

	det, err := landmark.NewHolisticDetector(cfg.LandmarkConfig(kind == pipeline.Static))
	if err != nil {
		return err
	}
	ext, err := feature.NewExtractor(det, layout)
	if err != nil {
		det.Close()
		return err
	}
	defer ext.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	run := startRun(st, "extract_"+kind.String(), layout.String())

	p, err := pipeline.New(pipeline.Config{
		InputDir:  *in,
		OutputDir: *out,
		Kind:      kind,
		Augment:   !*noAugment,
		Exts:      cfg.Data.Extensions,
		OnItem:    run.onItem(),
	}, ext, jitter)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx)
	run.finish(summary)
	if err != nil {
		return err
	}

	printSummary("extract", summary)
	return nil
}

func runManifest(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	features := fs.String("features", cfg.Data.FeaturesDir, "feature root; classes come from its train split")
	out := fs.String("out", cfg.Inference.Manifest, "manifest path")
	fs.Parse(args)

	m, err := labels.FromDirectory(filepath.Join(*features, string(split.Train)), cfg.Layout())
	if err != nil {
		return err
	}
	if err := m.Save(*out); err != nil {
		return err
	}

	fmt.Printf("wrote %d labels (%s) to %s\n", m.Len(), m.Layout, *out)
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	raw := fs.String("raw", cfg.Data.RawDir, "raw image root")
	mirrored := fs.String("mirrored", cfg.Data.MirroredDir, "mirrored image root")
	features := fs.String("features", cfg.Data.FeaturesDir, "feature root")
	out := fs.String("out", "", "write the Markdown table here instead of stdout")
	chart := fs.String("plot", "", "save a bar chart (.png, .svg or .pdf)")
	page := fs.String("html", "", "save an interactive chart page")
	fs.Parse(args)

	stats, err := report.CountDataset(*raw, *mirrored, *features)
	if err != nil {
		return err
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := stats.WriteMarkdown(w); err != nil {
		return err
	}

	if *chart != "" {
		if err := stats.Plot(*chart); err != nil {
			return err
		}
		log.Printf("Chart saved to %s", *chart)
	}
	if *page != "" {
		f, err := os.Create(*page)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := stats.WriteHTML(f); err != nil {
			return err
		}
		log.Printf("Chart page saved to %s", *page)
	}
	return nil
}

func runAnonymize(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("anonymize", flag.ExitOnError)
	prototxt := fs.String("prototxt", cfg.Anonymize.Prototxt, "face detector deploy.prototxt")
	caffemodel := fs.String("caffemodel", cfg.Anonymize.Caffemodel, "face detector weights")
	confidence := fs.Float64("confidence", cfg.Anonymize.Confidence, "minimum face confidence")
	kernel := fs.Int("kernel", cfg.Anonymize.Kernel, "Gaussian blur kernel (odd)")
	fs.Parse(args)

	roots := fs.Args()
	if len(roots) == 0 {
		roots = []string{cfg.Data.RawDir}
	}

	a, err := anonymize.New(*prototxt, *caffemodel, *confidence, *kernel)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}
	run := startRun(st, "anonymize", "")

	summary, err := a.Dir(ctx, roots...)
	run.record(summary)
	run.finish(summary)
	if err != nil {
		return err
	}

	blurred := 0
	for _, item := range summary.Items {
		blurred += len(item.Outputs)
	}
	printSummary("anonymize", summary)
	fmt.Printf("faces blurred in %d images\n", blurred)
	return nil
}
