package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/split"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mudra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, split.DefaultRatios, cfg.Split.Ratios)
	assert.Nil(t, cfg.Split.Seed)
	assert.True(t, cfg.Augment.Enabled)
	assert.Equal(t, feature.HandsOnly, cfg.Layout())
	assert.Equal(t, dataset.ImageExts, cfg.Extensions())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data:
  raw_dir: /srv/signs/raw
  dynamic: true
split:
  ratios: [0.7, 0.15, 0.15]
  seed: 42
augment:
  enabled: false
inference:
  threshold: 0.9
  timeout: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/signs/raw", cfg.Data.RawDir)
	assert.Equal(t, "data/features", cfg.Data.FeaturesDir, "unset keys keep defaults")
	assert.Equal(t, split.Ratios{0.7, 0.15, 0.15}, cfg.Split.Ratios)
	require.NotNil(t, cfg.Split.Seed)
	assert.Equal(t, uint64(42), *cfg.Split.Seed)
	assert.False(t, cfg.Augment.Enabled)
	assert.Equal(t, 0.9, cfg.Inference.Threshold)
	assert.Equal(t, 2*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, feature.PoseAndHands, cfg.Layout())
	assert.Equal(t, dataset.VideoExts, cfg.Extensions())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "inference:\n  threshold: 0.9\n")
	t.Setenv("MUDRA_THRESHOLD", "0.6")
	t.Setenv("MUDRA_FEATURES_DIR", "/tmp/features")
	t.Setenv("MUDRA_SPLIT_SEED", "7")
	t.Setenv("MUDRA_LAYOUT", "pose_and_hands")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Inference.Threshold)
	assert.Equal(t, "/tmp/features", cfg.Data.FeaturesDir)
	require.NotNil(t, cfg.Split.Seed)
	assert.Equal(t, uint64(7), *cfg.Split.Seed)
	assert.Equal(t, feature.PoseAndHands, cfg.Layout())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "ratios do not sum to one", body: "split:\n  ratios: [0.5, 0.2, 0.2]\n"},
		{name: "negative ratio", body: "split:\n  ratios: [1.2, -0.1, -0.1]\n"},
		{name: "threshold out of range", body: "inference:\n  threshold: 1.0\n"},
		{name: "non-positive sigma", body: "augment:\n  noise_sigma: 0\n"},
		{name: "unknown layout", body: "data:\n  layout: fingers_only\n"},
		{name: "even blur kernel", body: "anonymize:\n  kernel: 98\n"},
		{name: "malformed yaml", body: "split: [\n"},
		{name: "bad env threshold", body: "", env: map[string]string{"MUDRA_THRESHOLD": "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Data, cfg.Data)
}

func TestLandmarkConfig(t *testing.T) {
	cfg := Default()
	cfg.Detector.Python = "/opt/venv/bin/python"

	lc := cfg.LandmarkConfig(true)
	assert.True(t, lc.StaticImageMode)
	assert.Equal(t, "/opt/venv/bin/python", lc.Python)
	assert.Equal(t, 0.5, lc.MinDetectionConf)
}
