// Package stage maps the server-reported progress value of an analysis
// session to the pipeline stage shown to the user and to the state of the
// four-step progress widget.
//
// Both views are derived from one ordered milestone table (curve), so the
// status text breakpoints and the widget thresholds cannot drift apart.
package stage

import "math"

// Stage is a coarse-grained phase of server-side processing.
type Stage int

const (
	Uploading Stage = iota
	ExtractingFrames
	GeneratingCommentary
	RenderingOutput
	Complete
)

var stageNames = [...]string{
	Uploading:            "uploading",
	ExtractingFrames:     "extracting_frames",
	GeneratingCommentary: "generating_commentary",
	RenderingOutput:      "rendering_output",
	Complete:             "complete",
}

var stageText = [...]string{
	Uploading:            "Uploading video...",
	ExtractingFrames:     "Extracting video frames...",
	GeneratingCommentary: "Generating AI commentary...",
	RenderingOutput:      "Creating final video...",
	Complete:             "Analysis complete!",
}

func (s Stage) String() string {
	if s < Uploading || s > Complete {
		return "unknown"
	}
	return stageNames[s]
}

// StatusText returns the human-readable status line for the stage.
func (s Stage) StatusText() string {
	if s < Uploading || s > Complete {
		return ""
	}
	return stageText[s]
}

// StepState is the display state of one step of the progress widget.
type StepState int

const (
	StepPending StepState = iota
	StepActive
	StepCompleted
)

func (s StepState) String() string {
	switch s {
	case StepActive:
		return "active"
	case StepCompleted:
		return "completed"
	default:
		return "pending"
	}
}

// NumSteps is the number of steps in the progress widget.
const NumSteps = 4

// milestone is a point on the progress curve. Reaching it may enter a new
// stage, activate a widget step, and/or complete a widget step.
type milestone struct {
	at        float64
	enters    Stage
	hasStage  bool
	activates int // 1-based step number, 0 = none
	completes int // 1-based step number, 0 = none
}

// curve must stay sorted by at.
var curve = []milestone{
	{at: 0, enters: Uploading, hasStage: true, activates: 1},
	{at: 20, enters: ExtractingFrames, hasStage: true, completes: 1},
	{at: 40, enters: GeneratingCommentary, hasStage: true, activates: 2},
	{at: 60, completes: 2, activates: 3},
	{at: 70, enters: RenderingOutput, hasStage: true},
	{at: 80, completes: 3, activates: 4},
	{at: 100, enters: Complete, hasStage: true, completes: 4},
}

// Clamp bounds a progress value to [0,100]. NaN is treated as 0.
func Clamp(progress float64) float64 {
	if math.IsNaN(progress) || progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}

// Map returns the stage and status text for a progress value.
// Out-of-range values are clamped first, so Map is total.
func Map(progress float64) (Stage, string) {
	p := Clamp(progress)
	current := Uploading
	for _, m := range curve {
		if m.at > p {
			break
		}
		if m.hasStage {
			current = m.enters
		}
	}
	return current, current.StatusText()
}

// Steps returns the widget state of each of the four steps for a progress
// value. Index 0 is step 1.
func Steps(progress float64) [NumSteps]StepState {
	p := Clamp(progress)
	var steps [NumSteps]StepState
	for _, m := range curve {
		if m.at > p {
			break
		}
		if m.activates > 0 && steps[m.activates-1] != StepCompleted {
			steps[m.activates-1] = StepActive
		}
		if m.completes > 0 {
			steps[m.completes-1] = StepCompleted
		}
	}
	return steps
}

// StepThreshold describes at which progress a widget step becomes active
// and completed. ActivatesAt is -1 when a step is never shown as active
// on its own.
type StepThreshold struct {
	Step        int
	ActivatesAt float64
	CompletesAt float64
}

// Thresholds returns the widget thresholds derived from the progress curve.
func Thresholds() []StepThreshold {
	out := make([]StepThreshold, NumSteps)
	for i := range out {
		out[i] = StepThreshold{Step: i + 1, ActivatesAt: -1, CompletesAt: -1}
	}
	for _, m := range curve {
		if m.activates > 0 && out[m.activates-1].ActivatesAt < 0 {
			out[m.activates-1].ActivatesAt = m.at
		}
		if m.completes > 0 && out[m.completes-1].CompletesAt < 0 {
			out[m.completes-1].CompletesAt = m.at
		}
	}
	return out
}

// Phase is a full view of one progress value.
type Phase struct {
	Progress   float64
	Stage      Stage
	StatusText string
	Steps      [NumSteps]StepState
}

// Describe returns the stage and widget view of a progress value.
func Describe(progress float64) Phase {
	p := Clamp(progress)
	st, text := Map(p)
	return Phase{
		Progress:   p,
		Stage:      st,
		StatusText: text,
		Steps:      Steps(p),
	}
}
