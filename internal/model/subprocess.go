package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultTimeout bounds a single prediction.
const DefaultTimeout = 5 * time.Second

// SubprocessClassifier runs a model executable for the lifetime of a
// session. Each prediction is one JSON Request line on the process stdin
// answered by one JSON Response line on stdout.
type SubprocessClassifier struct {
	model   *Model
	timeout time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	mu     sync.Mutex
	closed bool
}

// Start launches the model executable in its directory.
func Start(m *Model, timeout time.Duration) (*SubprocessClassifier, error) {
	if m.Manifest.Layout.Size() == 0 {
		return nil, fmt.Errorf("model %s: no input layout", m.Manifest.Name)
	}
	if m.Manifest.Classes <= 0 {
		return nil, fmt.Errorf("model %s: no classes", m.Manifest.Name)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := exec.Command(m.Executable, m.Manifest.Args...)
	cmd.Dir = m.Path
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start model %s: %w", m.Manifest.Name, err)
	}

	c := &SubprocessClassifier{
		model:   m,
		timeout: timeout,
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan []byte),
	}
	go c.readLines(stdout)

	return c, nil
}

func (c *SubprocessClassifier) readLines(r io.Reader) {
	defer close(c.lines)

	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			c.lines <- line
		}
		if err != nil {
			return
		}
	}
}

// Shape returns the shape declared by the model manifest.
func (c *SubprocessClassifier) Shape() Shape {
	return c.model.Manifest.Shape()
}

// Predict sends input to the model and waits for its answer. A timeout
// kills the process; later calls return ErrClosed.
func (c *SubprocessClassifier) Predict(ctx context.Context, input [][]float64) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	shape := c.Shape()
	if err := CheckInput(shape, input); err != nil {
		return nil, err
	}

	req, err := json.Marshal(Request{Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := c.stdin.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case line, ok := <-c.lines:
		if !ok {
			c.closeLocked(false)
			return nil, fmt.Errorf("model %s exited", c.model.Manifest.Name)
		}
		return decodeProbabilities(line, shape.Classes)
	case <-ctx.Done():
		c.closeLocked(true)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("model %s timed out after %v", c.model.Manifest.Name, c.timeout)
		}
		return nil, ctx.Err()
	}
}

func decodeProbabilities(line []byte, classes int) ([]float64, error) {
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse model response: %w, stdout: %s", err, line)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("model: %s", resp.Error)
	}
	if len(resp.Probabilities) != classes {
		return nil, fmt.Errorf("model returned %d probabilities, want %d", len(resp.Probabilities), classes)
	}
	return resp.Probabilities, nil
}

// Close stops the process.
func (c *SubprocessClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked(false)
}

func (c *SubprocessClassifier) closeLocked(kill bool) error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.stdin.Close()
	if kill {
		c.cmd.Process.Kill()
	}

	// unblock the reader if the process still writes
	go func() {
		for range c.lines {
		}
	}()

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(c.timeout):
		c.cmd.Process.Kill()
		return <-done
	}
}
