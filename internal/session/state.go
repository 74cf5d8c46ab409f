// Package session drives one analysis session from submission to a
// terminal outcome. Controller owns the lifecycle state machine; Poller
// queries the service for status until the session completes or fails.
package session

import (
	"errors"
	"slices"
	"time"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/stage"
)

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Submitting
	Processing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further polling happens in s.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

// Diagnostics shown to the user when the service gives nothing better.
const (
	MsgSubmissionFailed  = "Failed to upload video. Please try again."
	MsgStatusCheckFailed = "Failed to check processing status"
	MsgProcessingFailed  = "Processing failed"
	MsgSessionAbandoned  = "Status polling stopped before the session finished"
)

var (
	// ErrIllegalTransition is returned when an action is not permitted in
	// the current lifecycle state.
	ErrIllegalTransition = errors.New("illegal session transition")

	// ErrNoSession is returned by Wait when nothing has been submitted.
	ErrNoSession = errors.New("no active session")

	// ErrSessionReset is returned by Wait when the session it was waiting
	// on was reset before reaching a terminal state.
	ErrSessionReset = errors.New("session was reset")
)

// Snapshot is a read-only copy of the session state handed to observers.
type Snapshot struct {
	SessionID string
	State     State

	FileName  string
	FileBytes int64

	Progress   float64
	Stage      stage.Stage
	StatusText string
	Steps      [stage.NumSteps]stage.StepState

	// Error is set only in Failed. Cause holds the typed error behind it.
	Error string
	Cause error

	// Set only in Completed.
	Insights    []coachapi.Insight
	VideoInfo   *coachapi.VideoInfo
	PreviewURL  string
	DownloadURL string

	PollCount   int
	SubmittedAt time.Time
	AcceptedAt  time.Time
	FinishedAt  time.Time
}

// UploadDuration is the time between submission and the session id
// being assigned.
func (s Snapshot) UploadDuration() time.Duration {
	if s.SubmittedAt.IsZero() || s.AcceptedAt.IsZero() {
		return 0
	}
	return s.AcceptedAt.Sub(s.SubmittedAt)
}

// Duration is the time from submission to the terminal state.
func (s Snapshot) Duration() time.Duration {
	if s.SubmittedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.SubmittedAt)
}

func (s Snapshot) clone() Snapshot {
	s.Insights = slices.Clone(s.Insights)
	if s.VideoInfo != nil {
		vi := *s.VideoInfo
		s.VideoInfo = &vi
	}
	return s
}

// Phase returns the progress view held by the snapshot.
func (s Snapshot) Phase() stage.Phase {
	return stage.Phase{
		Progress:   s.Progress,
		Stage:      s.Stage,
		StatusText: s.StatusText,
		Steps:      s.Steps,
	}
}

// setPhase applies a progress value; stage, text and steps follow from it.
func (s *Snapshot) setPhase(p stage.Phase) {
	s.Progress = p.Progress
	s.Stage = p.Stage
	s.StatusText = p.StatusText
	s.Steps = p.Steps
}
