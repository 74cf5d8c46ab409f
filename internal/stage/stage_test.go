package stage

import (
	"math"
	"testing"
)

func TestMap(t *testing.T) {
	tests := []struct {
		progress float64
		stage    Stage
		text     string
	}{
		{0, Uploading, "Uploading video..."},
		{19.99, Uploading, "Uploading video..."},
		{20, ExtractingFrames, "Extracting video frames..."},
		{39.5, ExtractingFrames, "Extracting video frames..."},
		{40, GeneratingCommentary, "Generating AI commentary..."},
		{69.9, GeneratingCommentary, "Generating AI commentary..."},
		{70, RenderingOutput, "Creating final video..."},
		{99.99, RenderingOutput, "Creating final video..."},
		{100, Complete, "Analysis complete!"},
	}
	for _, tt := range tests {
		st, text := Map(tt.progress)
		if st != tt.stage {
			t.Errorf("Map(%v) stage = %v, want %v", tt.progress, st, tt.stage)
		}
		if text != tt.text {
			t.Errorf("Map(%v) text = %q, want %q", tt.progress, text, tt.text)
		}
	}
}

func TestMapOutOfRangeIsClamped(t *testing.T) {
	if st, _ := Map(-5); st != Uploading {
		t.Errorf("negative progress: got %v, want Uploading", st)
	}
	if st, _ := Map(250); st != Complete {
		t.Errorf("progress above 100: got %v, want Complete", st)
	}
	if st, _ := Map(math.NaN()); st != Uploading {
		t.Errorf("NaN progress: got %v, want Uploading", st)
	}
}

func TestMapIsMonotonic(t *testing.T) {
	prev := Uploading
	for p := 0.0; p <= 100; p += 0.25 {
		st, text := Map(p)
		if st < prev {
			t.Fatalf("stage went backwards at %v: %v after %v", p, st, prev)
		}
		if text == "" {
			t.Fatalf("empty status text at %v", p)
		}
		prev = st
	}
	if prev != Complete {
		t.Errorf("expected Complete at 100, got %v", prev)
	}
}

func TestSteps(t *testing.T) {
	P, A, C := StepPending, StepActive, StepCompleted
	tests := []struct {
		progress float64
		want     [NumSteps]StepState
	}{
		{0, [NumSteps]StepState{A, P, P, P}},
		{19, [NumSteps]StepState{A, P, P, P}},
		{20, [NumSteps]StepState{C, P, P, P}},
		{40, [NumSteps]StepState{C, A, P, P}},
		{59, [NumSteps]StepState{C, A, P, P}},
		{60, [NumSteps]StepState{C, C, A, P}},
		{79, [NumSteps]StepState{C, C, A, P}},
		{80, [NumSteps]StepState{C, C, C, A}},
		{99, [NumSteps]StepState{C, C, C, A}},
		{100, [NumSteps]StepState{C, C, C, C}},
	}
	for _, tt := range tests {
		if got := Steps(tt.progress); got != tt.want {
			t.Errorf("Steps(%v) = %v, want %v", tt.progress, got, tt.want)
		}
	}
}

func TestThresholds(t *testing.T) {
	want := []StepThreshold{
		{Step: 1, ActivatesAt: 0, CompletesAt: 20},
		{Step: 2, ActivatesAt: 40, CompletesAt: 60},
		{Step: 3, ActivatesAt: 60, CompletesAt: 80},
		{Step: 4, ActivatesAt: 80, CompletesAt: 100},
	}
	got := Thresholds()
	if len(got) != len(want) {
		t.Fatalf("expected %d thresholds, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("threshold %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCurveIsSorted(t *testing.T) {
	for i := 1; i < len(curve); i++ {
		if curve[i].at <= curve[i-1].at {
			t.Fatalf("curve not strictly increasing at index %d", i)
		}
	}
	if curve[0].at != 0 || curve[len(curve)-1].at != 100 {
		t.Error("curve must span 0..100")
	}
}

func TestDescribe(t *testing.T) {
	ph := Describe(130)
	if ph.Progress != 100 || ph.Stage != Complete {
		t.Errorf("unexpected phase: %+v", ph)
	}
	if ph.Steps[3] != StepCompleted {
		t.Errorf("expected last step completed, got %v", ph.Steps[3])
	}
}
