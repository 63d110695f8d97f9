package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/collect"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/labels"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/report"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/split"
	"gocv.io/x/gocv"
)

func newCollector(cfg *config.Config, root string, cameraID int, title string) (*collect.Collector, func(), error) {
	cam := capture.NewCamera(cameraID)
	if err := cam.Open(); err != nil {
		return nil, nil, err
	}
	display := capture.NewDisplay(title)

	c := &collect.Collector{
		Camera:    cam,
		Screen:    display,
		Root:      root,
		Countdown: cfg.Collect.Countdown,
	}
	return c, func() {
		display.Close()
		cam.Close()
	}, nil
}

func runCollect(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	label := fs.String("label", "", "class label (required)")
	root := fs.String("root", cfg.Data.RawDir, "dataset root")
	cameraID := fs.Int("camera", cfg.Inference.CameraID, "camera device id")
	fs.Parse(args)

	if *label == "" {
		return errors.New("-label is required")
	}

	c, closeAll, err := newCollector(cfg, *root, *cameraID, "Collecting "+*label)
	if err != nil {
		return err
	}
	defer closeAll()

	saved, err := c.Photos(ctx, *label)
	fmt.Printf("saved %d images for %s\n", len(saved), *label)
	return err
}

func runRecord(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	label := fs.String("label", "", "class label (required)")
	root := fs.String("root", cfg.Data.RawDir, "dataset root")
	count := fs.Int("count", 10, "number of clips")
	duration := fs.Duration("duration", cfg.Collect.Duration, "clip length")
	cameraID := fs.Int("camera", cfg.Inference.CameraID, "camera device id")
	fs.Parse(args)

	if *label == "" {
		return errors.New("-label is required")
	}

	c, closeAll, err := newCollector(cfg, *root, *cameraID, "Recording "+*label)
	if err != nil {
		return err
	}
	defer closeAll()

	saved, err := c.Videos(ctx, *label, *count, *duration)
	fmt.Printf("saved %d clips for %s\n", len(saved), *label)
	return err
}

func runTrain(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	features := fs.String("features", cfg.Data.FeaturesDir, "feature root")
	manifestPath := fs.String("manifest", cfg.Inference.Manifest, "label manifest")
	name := fs.String("name", "centroid", "installed model name")
	window := fs.Int("window", 0, "frames per prediction; 0 for static signs")
	fs.Parse(args)

	m, err := labels.Load(*manifestPath)
	if err != nil {
		return err
	}

	c, err := model.FitCentroids(filepath.Join(*features, "train"), m.Labels, m.Layout, *window)
	if err != nil {
		return err
	}

	installed, err := model.Install(cfg.Inference.ModelDir, *name, c)
	if err != nil {
		return err
	}
	fmt.Printf("installed %s (%d classes, %s) in %s\n", *name, m.Len(), m.Layout, installed.Path)
	return nil
}

// openModel discovers the configured model, or the only installed one.
func openModel(cfg *config.Config, name string) (model.Classifier, *model.Model, error) {
	reg := model.NewRegistry(cfg.Inference.ModelDir)
	if err := reg.Discover(); err != nil {
		return nil, nil, err
	}

	if name == "" {
		models := reg.List()
		if len(models) != 1 {
			return nil, nil, fmt.Errorf("%d models in %s; choose one with -model", len(models), reg.Dir())
		}
		name = models[0].Manifest.Name
	}

	m, err := reg.Get(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	clf, err := model.Open(m, cfg.Inference.Timeout)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Loaded model %s (%+v)", m.Manifest.Name, clf.Shape())
	return clf, m, nil
}

func runEvaluate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	name := fs.String("model", cfg.Inference.Model, "model name")
	manifestPath := fs.String("manifest", cfg.Inference.Manifest, "label manifest")
	features := fs.String("features", cfg.Data.FeaturesDir, "feature root")
	splitName := fs.String("split", "test", "split to score")
	fs.Parse(args)

	s, err := split.ParseName(*splitName)
	if err != nil {
		return err
	}

	m, err := labels.Load(*manifestPath)
	if err != nil {
		return err
	}
	clf, _, err := openModel(cfg, *name)
	if err != nil {
		return err
	}
	defer clf.Close()

	ev, err := report.Evaluate(ctx, clf, m, *features, s)
	if err != nil {
		return err
	}
	return ev.WriteReport(os.Stdout)
}

// recognizer bundles a live recognizer with the resources it holds.
type recognizer struct {
	*inference.Recognizer
	extractor *feature.Extractor
	clf       model.Classifier
}

func (r *recognizer) Close() {
	r.extractor.Close()
	r.clf.Close()
}

func openRecognizer(cfg *config.Config, name, manifestPath string, threshold float64) (*recognizer, *labels.Manifest, error) {
	m, err := labels.Load(manifestPath)
	if err != nil {
		return nil, nil, err
	}

	clf, installed, err := openModel(cfg, name)
	if err != nil {
		return nil, nil, err
	}

	det, err := landmark.NewHolisticDetector(cfg.LandmarkConfig(false))
	if err != nil {
		clf.Close()
		return nil, nil, err
	}
	ext, err := feature.NewExtractor(det, installed.Manifest.Layout)
	if err != nil {
		det.Close()
		clf.Close()
		return nil, nil, err
	}

	rec, err := inference.NewRecognizer(ext, clf, m, threshold)
	if err != nil {
		ext.Close()
		clf.Close()
		return nil, nil, err
	}
	return &recognizer{Recognizer: rec, extractor: ext, clf: clf}, m, nil
}

func runDetect(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	name := fs.String("model", cfg.Inference.Model, "model name")
	manifestPath := fs.String("manifest", cfg.Inference.Manifest, "label manifest")
	threshold := fs.Float64("threshold", cfg.Inference.Threshold, "minimum confidence")
	cameraID := fs.Int("camera", cfg.Inference.CameraID, "camera device id")
	fs.Parse(args)

	rec, _, err := openRecognizer(cfg, *name, *manifestPath, *threshold)
	if err != nil {
		return err
	}
	defer rec.Close()

	display := capture.NewDisplay("Sign Detection")
	defer display.Close()

	runner := &inference.Runner{
		Camera:     capture.NewCamera(*cameraID),
		Recognizer: rec.Recognizer,
		OnFrame: func(frame *gocv.Mat, p inference.Prediction, ready bool) bool {
			return display.Show(*frame, p.Text()) != capture.KeyQuit
		},
	}
	return runner.Run(ctx)
}

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Server.Addr, "listen address")
	live := fs.Bool("live", false, "run the camera recognizer and publish its feeds")
	name := fs.String("model", cfg.Inference.Model, "model name for -live")
	manifestPath := fs.String("manifest", cfg.Inference.Manifest, "label manifest")
	cameraID := fs.Int("camera", cfg.Inference.CameraID, "camera device id")
	fs.Parse(args)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	srvCfg := server.Config{
		StaticDir: cfg.Server.StaticDir,
		Store:     st,
	}
	if srvCfg.StaticDir == "" {
		srvCfg.StaticDir = findWebDir()
	}
	if srvCfg.StaticDir != "" {
		log.Printf("Serving static files from: %s", srvCfg.StaticDir)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	if *live {
		rec, m, err := openRecognizer(cfg, *name, *manifestPath, cfg.Inference.Threshold)
		if err != nil {
			return err
		}
		defer rec.Close()

		hub := server.NewHub()
		srvCfg.Hub = hub
		srvCfg.Labels = m

		runner := &inference.Runner{
			Camera:     capture.NewCamera(*cameraID),
			Recognizer: rec.Recognizer,
			OnFrame:    hub.Publish,
		}
		go func() {
			runErr <- runner.Run(ctx)
		}()
	} else if m, err := labels.Load(*manifestPath); err == nil {
		srvCfg.Labels = m
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.New(srvCfg),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", *addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	var result error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = fmt.Errorf("server failed: %w", err)
		}
	case err := <-runErr:
		if err != nil {
			result = fmt.Errorf("live recognition: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	return result
}

// findWebDir searches for a web directory in common locations.
func findWebDir() string {
	for _, p := range []string{"web", "../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".mudra", "web")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	return ""
}
