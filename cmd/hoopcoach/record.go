package main

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/metrics"
	"github.com/fpang/hoopcoach/internal/session"
	"github.com/fpang/hoopcoach/internal/stage"
	"github.com/fpang/hoopcoach/internal/store"
)

const (
	historyWriteTimeout = 5 * time.Second
	historyQueueSize    = 32
)

// recordFromSnapshot converts a snapshot to its history record. Sessions
// that never received a server id are stored under localID.
func recordFromSnapshot(s session.Snapshot, serverURL, localID string) *store.SessionRecord {
	rec := &store.SessionRecord{
		ID:        s.SessionID,
		FileName:  s.FileName,
		FileBytes: s.FileBytes,
		ServerURL: serverURL,
		State:     s.State.String(),
		Progress:  s.Progress,
		Stage:     s.Stage.String(),
		Error:     s.Error,
		Insights:  s.Insights,
		PollCount: s.PollCount,
	}
	if rec.ID == "" {
		rec.ID = localID
		rec.Local = true
	}
	if !s.SubmittedAt.IsZero() {
		rec.CreatedAt = s.SubmittedAt.Unix()
	}
	if !s.FinishedAt.IsZero() {
		rec.FinishedAt = s.FinishedAt.Unix()
	}
	return rec
}

// historyRecorder persists a session whenever its state or stage changes.
// Sessions are written once they have a server id, or when they fail
// without one. Writes happen on a background goroutine so a slow store
// never delays the next status query; Close drains pending writes.
type historyRecorder struct {
	store     store.SessionStore
	serverURL string
	localID   string

	queued    bool
	lastState session.State
	lastStage stage.Stage

	writes chan *store.SessionRecord
	done   chan struct{}
	once   sync.Once
}

func newHistoryRecorder(s store.SessionStore, serverURL string) *historyRecorder {
	h := &historyRecorder{
		store:     s,
		serverURL: serverURL,
		localID:   "local-" + uuid.NewString(),
		writes:    make(chan *store.SessionRecord, historyQueueSize),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *historyRecorder) observe(s session.Snapshot) {
	if s.State == session.Idle {
		h.queued = false
		h.localID = "local-" + uuid.NewString()
		return
	}
	if s.SessionID == "" && s.State != session.Failed {
		return
	}
	if h.queued && s.State == h.lastState && s.Stage == h.lastStage {
		return
	}
	h.queued = true
	h.lastState = s.State
	h.lastStage = s.Stage
	h.writes <- recordFromSnapshot(s, h.serverURL, h.localID)
}

func (h *historyRecorder) run() {
	defer close(h.done)
	for rec := range h.writes {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		err := h.store.PutSession(ctx, rec)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("sessionId", rec.ID).Msg("Failed to record session history")
			continue
		}
		log.Debug().Str("sessionId", rec.ID).Str("state", rec.State).Msg("Session history updated")
	}
}

// Close waits for queued writes to finish. observe must not be called
// after Close.
func (h *historyRecorder) Close() {
	h.once.Do(func() { close(h.writes) })
	<-h.done
}

// applyStatus folds a one-off status query into an existing record.
func applyStatus(rec *store.SessionRecord, status *coachapi.StatusResponse) {
	phase := stage.Describe(status.Progress)
	switch status.Status {
	case coachapi.StatusCompleted:
		phase = stage.Describe(100)
		rec.State = session.Completed.String()
		rec.Insights = status.Commentary
		rec.Error = ""
	case coachapi.StatusError:
		rec.State = session.Failed.String()
		rec.Error = status.Error
		if rec.Error == "" {
			rec.Error = session.MsgProcessingFailed
		}
	default:
		rec.State = session.Processing.String()
	}
	if phase.Progress >= rec.Progress {
		rec.Progress = phase.Progress
		rec.Stage = phase.Stage.String()
	}
	if rec.State != session.Processing.String() && rec.FinishedAt == 0 {
		rec.FinishedAt = time.Now().Unix()
	}
}

// emitSessionMetrics writes one EMF line for the submission and one for
// the terminal outcome.
func emitSessionMetrics(w io.Writer, s session.Snapshot) error {
	if d := s.UploadDuration(); d > 0 {
		err := metrics.New(metrics.Namespace).To(w).
			Duration("UploadMs", d).
			Metric("UploadBytes", float64(s.FileBytes), metrics.UnitBytes).
			Property("sessionId", s.SessionID).
			Flush()
		if err != nil {
			return err
		}
	}
	return metrics.New(metrics.Namespace).To(w).
		Dimension("Result", s.State.String()).
		Duration("SessionDurationMs", s.Duration()).
		Metric("PollCount", float64(s.PollCount), metrics.UnitCount).
		Metric("InsightCount", float64(len(s.Insights)), metrics.UnitCount).
		Property("sessionId", s.SessionID).
		Flush()
}
