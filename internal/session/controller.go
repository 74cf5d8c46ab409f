package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/filehandler"
	"github.com/fpang/hoopcoach/internal/stage"
)

// API is the slice of the analysis service the controller drives.
// *coachapi.Client satisfies it.
type API interface {
	StatusAPI
	Submit(ctx context.Context, in filehandler.ValidInput, credential string) (string, error)
	PreviewURL(sessionID string) string
	DownloadURL(sessionID string) string
}

// Observer is called with a snapshot after every transition. Observers
// run in transition order on the goroutine that made the transition, so a
// slow observer delays the next status query. Snapshot is safe to call from
// an observer; StartSubmission, Reset, Subscribe and Wait are not.
type Observer func(Snapshot)

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.interval = d
	}
}

// outcome is resolved once per session, when it reaches a terminal state
// or is reset.
type outcome struct {
	once sync.Once
	done chan struct{}
	snap Snapshot
	err  error
}

func (o *outcome) resolve(snap Snapshot, err error) {
	o.once.Do(func() {
		o.snap = snap
		o.err = err
		close(o.done)
	})
}

// Controller owns a single session and its lifecycle. All state changes
// go through its methods; callers see the session only as Snapshots.
type Controller struct {
	api      API
	interval time.Duration
	poller   *Poller

	mu        sync.Mutex
	sess      Snapshot
	attempt   string
	cancel    context.CancelFunc
	pending   *outcome
	observers []Observer

	// emitMu is taken before mu is released so observers see transitions
	// in the order they were applied.
	emitMu sync.Mutex

	// published is the latest snapshot handed to observers. Snapshot reads
	// it without mu so observers may call it.
	published atomic.Pointer[Snapshot]
}

// NewController creates a controller in the Idle state.
func NewController(api API, opts ...Option) *Controller {
	c := &Controller{api: api}
	for _, opt := range opts {
		opt(c)
	}
	c.poller = NewPoller(api, c.interval)
	c.publishLocked()
	return c
}

// Subscribe registers an observer for all subsequent transitions.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Snapshot returns the most recently published session state.
func (c *Controller) Snapshot() Snapshot {
	return c.published.Load().clone()
}

// publishLocked makes the current session visible to Snapshot.
func (c *Controller) publishLocked() {
	snap := c.sess.clone()
	c.published.Store(&snap)
}

// StartSubmission moves Idle to Submitting and uploads in in the
// background. It fails with ErrIllegalTransition outside Idle, leaving the
// current session untouched. ctx bounds the whole session; Reset cancels
// it earlier.
func (c *Controller) StartSubmission(ctx context.Context, in filehandler.ValidInput, credential string) error {
	c.mu.Lock()
	if c.sess.State != Idle {
		st := c.sess.State
		c.mu.Unlock()
		return fmt.Errorf("%w: start submission while %s", ErrIllegalTransition, st)
	}

	runCtx, cancel := context.WithCancel(ctx)
	attempt := uuid.NewString()
	c.attempt = attempt
	c.cancel = cancel
	c.pending = &outcome{done: make(chan struct{})}

	c.sess = Snapshot{
		State:       Submitting,
		FileName:    in.Name,
		FileBytes:   in.SizeBytes,
		SubmittedAt: time.Now(),
	}
	c.sess.setPhase(stage.Describe(0))

	log.Info().
		Str("attempt", attempt).
		Str("file", in.Name).
		Int64("bytes", in.SizeBytes).
		Msg("Submitting video")
	c.emitLocked()

	go c.run(runCtx, attempt, in, credential)
	return nil
}

// Reset cancels any in-flight submission or polling and returns to Idle,
// clearing the session id, progress, error and insights. Responses that
// arrive afterwards for the old session are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	prev := c.sess
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attempt = ""
	c.sess = Snapshot{State: Idle}
	if c.pending != nil {
		if !prev.State.IsTerminal() {
			c.pending.resolve(c.sess.clone(), ErrSessionReset)
		}
		c.pending = nil
	}

	log.Info().
		Str("sessionId", prev.SessionID).
		Str("from", prev.State.String()).
		Msg("Session reset")
	c.emitLocked()
}

// Wait blocks until the current session reaches Completed or Failed and
// returns its final snapshot. It returns ErrNoSession when idle and
// ErrSessionReset if the session is reset first.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	o := c.pending
	if o == nil {
		snap := c.sess.clone()
		c.mu.Unlock()
		return snap, ErrNoSession
	}
	c.mu.Unlock()

	select {
	case <-o.done:
		return o.snap.clone(), o.err
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context, attempt string, in filehandler.ValidInput, credential string) {
	id, err := c.api.Submit(ctx, in, credential)
	if err != nil {
		c.submissionFailed(attempt, err)
		return
	}
	if !c.submissionSucceeded(attempt, id) {
		return
	}

	c.poller.Run(ctx, id, &pollSink{c: c, attempt: attempt})

	if ctx.Err() != nil {
		c.abandoned(attempt, id, ctx.Err())
	}
}

func (c *Controller) submissionSucceeded(attempt, id string) bool {
	c.mu.Lock()
	if !c.currentLocked(attempt, Submitting) {
		c.mu.Unlock()
		log.Debug().Str("attempt", attempt).Str("sessionId", id).Msg("Discarding stale submission result")
		return false
	}
	c.sess.SessionID = id
	c.sess.State = Processing
	c.sess.AcceptedAt = time.Now()

	log.Info().
		Str("sessionId", id).
		Dur("upload", c.sess.UploadDuration()).
		Msg("Video accepted, processing started")
	c.emitLocked()
	return true
}

func (c *Controller) submissionFailed(attempt string, err error) {
	c.mu.Lock()
	if !c.currentLocked(attempt, Submitting) {
		c.mu.Unlock()
		log.Debug().Str("attempt", attempt).Err(err).Msg("Discarding stale submission failure")
		return
	}
	log.Error().Err(err).Str("attempt", attempt).Msg("Upload failed")
	c.failLocked(MsgSubmissionFailed, err)
}

func (c *Controller) abandoned(attempt, id string, err error) {
	c.mu.Lock()
	if !c.currentLocked(attempt, Processing) || c.sess.SessionID != id {
		c.mu.Unlock()
		return
	}
	log.Warn().Err(err).Str("sessionId", id).Msg("Polling abandoned")
	c.failLocked(MsgSessionAbandoned, err)
}

// currentLocked reports whether attempt is still the live attempt and the
// session is in want.
func (c *Controller) currentLocked(attempt string, want State) bool {
	return attempt != "" && attempt == c.attempt && c.sess.State == want
}

// failLocked moves to Failed, emits and unlocks.
func (c *Controller) failLocked(diagnostic string, err error) {
	if diagnostic == "" {
		diagnostic = MsgProcessingFailed
	}
	c.sess.State = Failed
	c.sess.Error = diagnostic
	c.sess.Cause = err
	c.sess.FinishedAt = time.Now()
	c.finishLocked()
	c.emitLocked()
}

func (c *Controller) finishLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	log.Info().
		Str("sessionId", c.sess.SessionID).
		Str("state", c.sess.State.String()).
		Float64("progress", c.sess.Progress).
		Int("polls", c.sess.PollCount).
		Dur("duration", c.sess.Duration()).
		Msg("Session finished")
}

// emitLocked hands the current snapshot to observers and releases mu.
// A terminal snapshot resolves Wait only after every observer has seen it.
func (c *Controller) emitLocked() {
	snap := c.sess.clone()
	observers := append([]Observer(nil), c.observers...)
	var done *outcome
	if snap.State.IsTerminal() {
		done = c.pending
	}
	c.emitMu.Lock()
	c.publishLocked()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	for _, o := range observers {
		o(snap)
	}
	if done != nil {
		done.resolve(snap.clone(), nil)
	}
}

// pollSink applies poller events to the attempt it was created for.
type pollSink struct {
	c       *Controller
	attempt string
}

func (s *pollSink) lock(sessionID string) bool {
	c := s.c
	c.mu.Lock()
	if !c.currentLocked(s.attempt, Processing) || c.sess.SessionID != sessionID {
		c.mu.Unlock()
		log.Debug().Str("sessionId", sessionID).Msg("Discarding stale poll result")
		return false
	}
	c.sess.PollCount++
	return true
}

func (s *pollSink) OnProgress(sessionID string, phase stage.Phase) {
	if !s.lock(sessionID) {
		return
	}
	c := s.c
	if phase.Progress <= c.sess.Progress {
		if phase.Progress < c.sess.Progress {
			log.Debug().
				Str("sessionId", sessionID).
				Float64("progress", phase.Progress).
				Float64("current", c.sess.Progress).
				Msg("Ignoring progress regression")
		}
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	c.sess.setPhase(phase)
	log.Info().
		Str("sessionId", sessionID).
		Float64("progress", phase.Progress).
		Str("stage", phase.Stage.String()).
		Msg(phase.StatusText)
	c.emitLocked()
}

func (s *pollSink) OnCompleted(sessionID string, status *coachapi.StatusResponse) {
	if !s.lock(sessionID) {
		return
	}
	c := s.c
	c.sess.setPhase(stage.Describe(100))
	c.sess.State = Completed
	c.sess.Insights = append([]coachapi.Insight{}, status.Commentary...)
	if status.VideoInfo != nil {
		vi := *status.VideoInfo
		c.sess.VideoInfo = &vi
	}
	c.sess.PreviewURL = c.api.PreviewURL(sessionID)
	c.sess.DownloadURL = c.api.DownloadURL(sessionID)
	c.sess.FinishedAt = time.Now()
	c.finishLocked()
	c.emitLocked()
}

func (s *pollSink) OnFailed(sessionID string, diagnostic string, err error) {
	if !s.lock(sessionID) {
		return
	}
	s.c.failLocked(diagnostic, err)
}
