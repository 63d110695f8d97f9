// Package config loads the YAML configuration shared by every mudra
// subcommand. Values come from the built-in defaults, then the config
// file, then MUDRA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ayusman/mudra/internal/anonymize"
	"github.com/ayusman/mudra/internal/augment"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/inference"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/split"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are searched in order when no config file is given.
var DefaultPaths = []string{"mudra.yaml", "configs/mudra.yaml"}

type Config struct {
	Data      DataConfig      `yaml:"data"`
	Split     SplitConfig     `yaml:"split"`
	Augment   AugmentConfig   `yaml:"augment"`
	Detector  DetectorConfig  `yaml:"detector"`
	Inference InferenceConfig `yaml:"inference"`
	Collect   CollectConfig   `yaml:"collect"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Anonymize AnonymizeConfig `yaml:"anonymize"`
}

type DataConfig struct {
	RawDir      string   `yaml:"raw_dir"`
	MirroredDir string   `yaml:"mirrored_dir"`
	SplitDir    string   `yaml:"split_dir"`
	FeaturesDir string   `yaml:"features_dir"`
	Dynamic     bool     `yaml:"dynamic"`    // videos and 258-value frames
	Layout      string   `yaml:"layout"`     // overrides the layout implied by Dynamic
	Extensions  []string `yaml:"extensions"` // empty means the defaults for the data kind
}

type SplitConfig struct {
	Ratios split.Ratios `yaml:"ratios"`
	Seed   *uint64      `yaml:"seed"` // nil draws a fresh seed per run
}

type AugmentConfig struct {
	Enabled    bool    `yaml:"enabled"`
	NoiseSigma float64 `yaml:"noise_sigma"`
	Seed       *uint64 `yaml:"seed"`
}

type DetectorConfig struct {
	Script                 string  `yaml:"script"`
	Python                 string  `yaml:"python"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
}

type InferenceConfig struct {
	ModelDir  string        `yaml:"model_dir"`
	Model     string        `yaml:"model"`
	Manifest  string        `yaml:"manifest"`
	Threshold float64       `yaml:"threshold"`
	CameraID  int           `yaml:"camera_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CollectConfig struct {
	Countdown time.Duration `yaml:"countdown"`
	Duration  time.Duration `yaml:"duration"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // empty disables run history
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type AnonymizeConfig struct {
	Prototxt   string  `yaml:"prototxt"`
	Caffemodel string  `yaml:"caffemodel"`
	Confidence float64 `yaml:"confidence"`
	Kernel     int     `yaml:"kernel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	det := landmark.DefaultConfig()
	return &Config{
		Data: DataConfig{
			RawDir:      "data/raw",
			MirroredDir: "data/mirrored",
			SplitDir:    "data/split",
			FeaturesDir: "data/features",
		},
		Split: SplitConfig{Ratios: split.DefaultRatios},
		Augment: AugmentConfig{
			Enabled:    true,
			NoiseSigma: augment.DefaultSigma,
		},
		Detector: DetectorConfig{
			MinDetectionConfidence: det.MinDetectionConf,
			MinTrackingConfidence:  det.MinTrackingConf,
		},
		Inference: InferenceConfig{
			ModelDir:  "models",
			Manifest:  "labels.json",
			Threshold: inference.DefaultThreshold,
			Timeout:   model.DefaultTimeout,
		},
		Collect: CollectConfig{
			Countdown: 3 * time.Second,
			Duration:  3 * time.Second,
		},
		Store:  StoreConfig{Path: "mudra.db"},
		Server: ServerConfig{Addr: ":8080"},
		Anonymize: AnonymizeConfig{
			Prototxt:   "face_detector/deploy.prototxt",
			Caffemodel: "face_detector/res10_300x300_ssd_iter_140000.caffemodel",
			Confidence: anonymize.DefaultConfidence,
			Kernel:     anonymize.DefaultKernel,
		},
	}
}

// Load reads the config at path over the defaults. An empty path tries
// DefaultPaths and falls back to the defaults when none exists. The
// environment is applied last and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"MUDRA_RAW_DIR":      &c.Data.RawDir,
		"MUDRA_MIRRORED_DIR": &c.Data.MirroredDir,
		"MUDRA_SPLIT_DIR":    &c.Data.SplitDir,
		"MUDRA_FEATURES_DIR": &c.Data.FeaturesDir,
		"MUDRA_LAYOUT":       &c.Data.Layout,
		"MUDRA_PYTHON":       &c.Detector.Python,
		"MUDRA_MODEL_DIR":    &c.Inference.ModelDir,
		"MUDRA_MODEL":        &c.Inference.Model,
		"MUDRA_MANIFEST":     &c.Inference.Manifest,
		"MUDRA_STORE_PATH":   &c.Store.Path,
		"MUDRA_SERVER_ADDR":  &c.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("MUDRA_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MUDRA_THRESHOLD: %w", err)
		}
		c.Inference.Threshold = f
	}
	if v, ok := os.LookupEnv("MUDRA_CAMERA_ID"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MUDRA_CAMERA_ID: %w", err)
		}
		c.Inference.CameraID = n
	}
	if v, ok := os.LookupEnv("MUDRA_SPLIT_SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MUDRA_SPLIT_SEED: %w", err)
		}
		c.Split.Seed = &n
	}
	return nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Split.Ratios.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("split.ratios: %w", err))
	}
	if c.Augment.NoiseSigma <= 0 {
		errs = append(errs, fmt.Errorf("augment.noise_sigma must be positive, got %g", c.Augment.NoiseSigma))
	}
	if t := c.Inference.Threshold; t <= 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("inference.threshold must be in (0,1), got %g", t))
	}
	if c.Inference.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("inference.timeout must be positive, got %s", c.Inference.Timeout))
	}
	if c.Data.Layout != "" {
		if _, err := feature.ParseLayout(c.Data.Layout); err != nil {
			errs = append(errs, fmt.Errorf("data.layout: %w", err))
		}
	}
	for name, v := range map[string]float64{
		"detector.min_detection_confidence": c.Detector.MinDetectionConfidence,
		"detector.min_tracking_confidence":  c.Detector.MinTrackingConfidence,
		"anonymize.confidence":              c.Anonymize.Confidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %g", name, v))
		}
	}
	if k := c.Anonymize.Kernel; k < 1 || k%2 == 0 {
		errs = append(errs, fmt.Errorf("anonymize.kernel must be odd and positive, got %d", k))
	}
	if c.Collect.Duration <= 0 {
		errs = append(errs, fmt.Errorf("collect.duration must be positive, got %s", c.Collect.Duration))
	}

	return errors.Join(errs...)
}

// Layout returns the feature layout for the configured data kind.
func (c *Config) Layout() feature.Layout {
	if c.Data.Layout != "" {
		if l, err := feature.ParseLayout(c.Data.Layout); err == nil {
			return l
		}
	}
	if c.Data.Dynamic {
		return feature.PoseAndHands
	}
	return feature.HandsOnly
}

// Extensions returns the input file extensions for the configured data
// kind.
func (c *Config) Extensions() []string {
	if len(c.Data.Extensions) > 0 {
		return c.Data.Extensions
	}
	if c.Data.Dynamic {
		return dataset.VideoExts
	}
	return dataset.ImageExts
}

// LandmarkConfig returns the detector settings. Static image jobs detect
// every frame independently.
func (c *Config) LandmarkConfig(staticImages bool) landmark.Config {
	return landmark.Config{
		Script:           c.Detector.Script,
		Python:           c.Detector.Python,
		StaticImageMode:  staticImages,
		MinDetectionConf: c.Detector.MinDetectionConfidence,
		MinTrackingConf:  c.Detector.MinTrackingConfidence,
	}
}
