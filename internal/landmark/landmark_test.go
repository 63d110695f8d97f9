package landmark

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

func TestSet_Presence(t *testing.T) {
	t.Run("nil set has nothing", func(t *testing.T) {
		var s *Set
		if s.HasPose() || s.HasLeftHand() || s.HasRightHand() || s.HasFace() {
			t.Error("nil set should report no groups")
		}
		if !s.Empty() {
			t.Error("nil set should be empty")
		}
	})

	t.Run("single hand", func(t *testing.T) {
		s := &Set{RightHand: OpenPalmHand()}
		if !s.HasRightHand() {
			t.Error("expected right hand")
		}
		if s.HasLeftHand() || s.HasPose() {
			t.Error("unexpected groups reported")
		}
		if s.Empty() {
			t.Error("set with a hand should not be empty")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	points := func(n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = fmt.Sprintf(`{"x":%d,"y":0.5,"z":0}`, i)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}

	t.Run("all groups absent", func(t *testing.T) {
		set, err := decodeResponse([]byte(`{}` + "\n"))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if !set.Empty() {
			t.Error("expected empty set")
		}
	})

	t.Run("hands decoded in order", func(t *testing.T) {
		line := `{"left_hand":` + points(NumHand) + `,"right_hand":null}`
		set, err := decodeResponse([]byte(line))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if !set.HasLeftHand() {
			t.Fatal("expected left hand")
		}
		if set.HasRightHand() {
			t.Error("null right hand should be absent")
		}
		if set.LeftHand[PinkyTip].X != float64(PinkyTip) {
			t.Errorf("pinky tip X = %f, want %d", set.LeftHand[PinkyTip].X, PinkyTip)
		}
	})

	t.Run("wrong point count dropped", func(t *testing.T) {
		line := `{"right_hand":` + points(5) + `}`
		set, err := decodeResponse([]byte(line))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if set.HasRightHand() {
			t.Error("truncated hand should be treated as absent")
		}
	})

	t.Run("pose with visibility", func(t *testing.T) {
		parts := make([]string, NumPose)
		for i := range parts {
			parts[i] = `{"x":0.1,"y":0.2,"z":0.3,"visibility":0.9}`
		}
		line := `{"pose":[` + strings.Join(parts, ",") + `]}`
		set, err := decodeResponse([]byte(line))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if !set.HasPose() {
			t.Fatal("expected pose")
		}
		if set.Pose[Nose].Visibility != 0.9 {
			t.Errorf("visibility = %f, want 0.9", set.Pose[Nose].Visibility)
		}
	})

	t.Run("service error", func(t *testing.T) {
		_, err := decodeResponse([]byte(`{"error":"bad image"}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeResponse([]byte(`{not json`))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty set by default", func(t *testing.T) {
		mock := NewMockDetector()

		set, err := mock.Detect(nil)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !set.Empty() {
			t.Errorf("expected empty set, got %+v", set)
		}
		if mock.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", mock.Calls())
		}
	})

	t.Run("returns configured set", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetResult(&Set{LeftHand: FistHand(), Pose: StandingPose()})

		set, err := mock.Detect(nil)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !set.HasLeftHand() || !set.HasPose() {
			t.Error("expected left hand and pose")
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		set, err := mock.Detect(nil)
		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if set != nil {
			t.Errorf("expected nil set when error is set, got %v", set)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		mock := NewMockDetector()
		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		if !mock.Closed() {
			t.Error("expected Closed() after Close")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*HolisticDetector)(nil)
	})
}

func TestPresets(t *testing.T) {
	t.Run("open palm fingers extended", func(t *testing.T) {
		h := OpenPalmHand()
		for _, f := range [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}} {
			if ext := h[f[0]].Y - h[f[1]].Y; ext < 0.2 {
				t.Errorf("finger %d not extended (extension %f)", f[1], ext)
			}
		}
	})

	t.Run("fist fingers curled", func(t *testing.T) {
		h := FistHand()
		for _, f := range [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}} {
			if ext := h[f[0]].Y - h[f[1]].Y; ext > 0.15 {
				t.Errorf("finger %d appears extended (extension %f)", f[1], ext)
			}
		}
	})

	t.Run("pose coordinates normalized", func(t *testing.T) {
		p := StandingPose()
		for i, pt := range p {
			if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
				t.Errorf("pose point %d out of range: %+v", i, pt)
			}
		}
	})
}

func TestNewHolisticDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script = "/nonexistent/" + ScriptName

	if _, err := NewHolisticDetector(cfg); err == nil {
		t.Error("expected error for missing script")
	}
}

func TestHolisticDetector_ServiceExits(t *testing.T) {
	python, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}

	script := filepath.Join(t.TempDir(), ScriptName)
	if err := os.WriteFile(script, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Script = script
	cfg.Python = python

	d, err := NewHolisticDetector(cfg)
	if err != nil {
		t.Fatalf("NewHolisticDetector() error = %v", err)
	}
	defer d.Close()

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	for i := 0; i < 2; i++ {
		_, err := d.Detect(&frame)
		if !errors.Is(err, ErrServiceDown) {
			t.Fatalf("Detect() #%d error = %v, want ErrServiceDown", i+1, err)
		}
		if d.started {
			t.Fatalf("Detect() #%d left the dead process marked started", i+1)
		}
	}
}
