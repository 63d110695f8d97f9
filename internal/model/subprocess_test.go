package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/feature"
)

func scriptModel(t *testing.T, body string, classes int) *Model {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "serve.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Model{
		Manifest: Manifest{
			Name:       "script",
			Executable: "serve.sh",
			Layout:     feature.HandsOnly,
			Classes:    classes,
		},
		Path:       dir,
		Executable: path,
	}
}

func staticInput() [][]float64 {
	return [][]float64{make([]float64, feature.HandsOnlySize)}
}

func TestSubprocessClassifier_Predict(t *testing.T) {
	m := scriptModel(t, `while IFS= read -r line; do
  echo '{"probabilities":[0.1,0.9]}'
done
`, 2)

	c, err := Start(m, time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer c.Close()

	for i := 0; i < 3; i++ {
		probs, err := c.Predict(context.Background(), staticInput())
		if err != nil {
			t.Fatalf("Predict() %d failed: %v", i, err)
		}
		if len(probs) != 2 || probs[1] != 0.9 {
			t.Errorf("unexpected probabilities %v", probs)
		}
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if _, err := c.Predict(context.Background(), staticInput()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestSubprocessClassifier_ReadsRequest(t *testing.T) {
	// answers with the number of input rows echoed as an error
	m := scriptModel(t, `while IFS= read -r line; do
  case "$line" in
    *'"input":[['*) echo '{"error":"got input"}' ;;
    *) echo '{"error":"no input"}' ;;
  esac
done
`, 2)

	c, err := Start(m, time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer c.Close()

	_, err = c.Predict(context.Background(), staticInput())
	if err == nil || !strings.Contains(err.Error(), "got input") {
		t.Errorf("expected model error mentioning input, got %v", err)
	}
}

func TestSubprocessClassifier_WrongClassCount(t *testing.T) {
	m := scriptModel(t, `while IFS= read -r line; do echo '{"probabilities":[1]}'; done
`, 2)

	c, err := Start(m, time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer c.Close()

	if _, err := c.Predict(context.Background(), staticInput()); err == nil {
		t.Error("expected error for wrong probability count")
	}
}

func TestSubprocessClassifier_BadInput(t *testing.T) {
	m := scriptModel(t, `cat >/dev/null
`, 2)

	c, err := Start(m, time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer c.Close()

	_, err = c.Predict(context.Background(), [][]float64{make([]float64, 10)})
	if !errors.Is(err, ErrBadInput) {
		t.Errorf("expected ErrBadInput, got %v", err)
	}
}

func TestSubprocessClassifier_Timeout(t *testing.T) {
	m := scriptModel(t, `while IFS= read -r line; do sleep 5; done
`, 2)

	c, err := Start(m, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer c.Close()

	start := time.Now()
	_, err = c.Predict(context.Background(), staticInput())
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("timeout took too long: %v", time.Since(start))
	}

	if _, err := c.Predict(context.Background(), staticInput()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after timeout, got %v", err)
	}
}

func TestSubprocessClassifier_Exits(t *testing.T) {
	m := scriptModel(t, `read line
exit 0
`, 2)

	c, err := Start(m, time.Second)
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer c.Close()

	_, err = c.Predict(context.Background(), staticInput())
	if err == nil || !strings.Contains(err.Error(), "exited") {
		t.Errorf("expected exit error, got %v", err)
	}
}

func TestStart_Errors(t *testing.T) {
	m := &Model{Manifest: Manifest{Name: "none", Layout: feature.HandsOnly, Classes: 2}, Executable: "/nonexistent/serve"}
	if _, err := Start(m, time.Second); err == nil {
		t.Error("expected error for missing executable")
	}

	m.Manifest.Classes = 0
	if _, err := Start(m, time.Second); err == nil {
		t.Error("expected error for zero classes")
	}
}
