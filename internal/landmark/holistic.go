package landmark

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// ScriptName is the file name of the holistic service script.
const ScriptName = "holistic_service.py"

var (
	// ErrEmptyFrame is returned when Detect is called with a nil or empty frame.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrServiceDown is returned when the holistic process stops answering.
	// The process is shut down; the next Detect starts a fresh one.
	ErrServiceDown = errors.New("holistic service down")
)

// HolisticDetector implements Detector using a MediaPipe Holistic
// subprocess.
//
// Wire protocol: for every frame the detector writes a 4-byte big-endian
// length followed by a JPEG image to the process stdin, then reads one JSON
// line from stdout of the form
//
//	{"pose":[{"x":..,"y":..,"z":..,"visibility":..}],"left_hand":[...],"right_hand":[...],"face":[...],"error":""}
//
// where every group may be null or absent.
type HolisticDetector struct {
	config  Config
	script  string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	mu      sync.Mutex
	started bool
}

// NewHolisticDetector creates a new holistic detector. The service script
// must exist; the Python process is started lazily on first detection.
func NewHolisticDetector(config Config) (*HolisticDetector, error) {
	script := config.Script
	if script == "" {
		script = findHolisticScript()
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", ScriptName)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("holistic script: %w", err)
	}

	return &HolisticDetector{
		config: config,
		script: script,
	}, nil
}

// Detect analyzes a frame and returns the detected landmark groups.
func (d *HolisticDetector) Detect(frame *gocv.Mat) (*Set, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceDown, err)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, d.fail("write length", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, d.fail("write data", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, d.fail("read response", err)
	}

	return decodeResponse([]byte(line))
}

// Close shuts down the Python process.
func (d *HolisticDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// fail shuts down a process that broke the protocol. Called with d.mu held.
func (d *HolisticDetector) fail(op string, err error) error {
	if exitErr := d.shutdown(); exitErr != nil {
		log.Printf("holistic service exited: %v", exitErr)
	}
	return fmt.Errorf("%w: %s: %v", ErrServiceDown, op, err)
}

func (d *HolisticDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := d.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	args := []string{
		d.script,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinDetectionConf, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	}
	if d.config.StaticImageMode {
		args = append(args, "--static-image-mode")
	}

	d.cmd = exec.Command(python, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start holistic service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *HolisticDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func findHolisticScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", ScriptName),
		filepath.Join("..", "scripts", ScriptName),
		filepath.Join(execDir, "scripts", ScriptName),
		filepath.Join(os.Getenv("HOME"), ".mudra", "scripts", ScriptName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonResponse is one line from the holistic service.
type jsonResponse struct {
	Pose      []PosePoint `json:"pose"`
	LeftHand  []Point3D   `json:"left_hand"`
	RightHand []Point3D   `json:"right_hand"`
	Face      []Point3D   `json:"face"`
	Error     string      `json:"error"`
}

// decodeResponse parses a service line into a Set. A group whose point
// count does not match the model's fixed size is dropped as not detected.
func decodeResponse(line []byte) (*Set, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("holistic service: %s", resp.Error)
	}

	set := &Set{}

	if n := len(resp.Pose); n == NumPose {
		var pose [NumPose]PosePoint
		copy(pose[:], resp.Pose)
		set.Pose = &pose
	} else if n != 0 {
		log.Printf("dropping pose group with %d points", n)
	}

	set.LeftHand = handGroup("left hand", resp.LeftHand)
	set.RightHand = handGroup("right hand", resp.RightHand)

	if n := len(resp.Face); n == NumFace {
		var face [NumFace]Point3D
		copy(face[:], resp.Face)
		set.Face = &face
	} else if n != 0 {
		log.Printf("dropping face group with %d points", n)
	}

	return set, nil
}

func handGroup(name string, points []Point3D) *[NumHand]Point3D {
	if len(points) == 0 {
		return nil
	}
	if len(points) != NumHand {
		log.Printf("dropping %s group with %d points", name, len(points))
		return nil
	}
	var hand [NumHand]Point3D
	copy(hand[:], points)
	return &hand
}
