// Package notify announces terminal session outcomes to external systems:
// a signed HTTP webhook and an EventBridge bus.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/session"
)

// Event types.
const (
	EventSessionCompleted = "session.completed"
	EventSessionFailed    = "session.failed"
)

// Event is the payload delivered for a terminal session.
type Event struct {
	Type         string             `json:"type"`
	SessionID    string             `json:"sessionId,omitempty"`
	FileName     string             `json:"fileName"`
	State        string             `json:"state"`
	Progress     float64            `json:"progress"`
	Error        string             `json:"error,omitempty"`
	InsightCount int                `json:"insightCount"`
	Insights     []coachapi.Insight `json:"insights,omitempty"`
	PreviewURL   string             `json:"previewUrl,omitempty"`
	DownloadURL  string             `json:"downloadUrl,omitempty"`
	DurationMs   int64              `json:"durationMs"`
	OccurredAt   time.Time          `json:"occurredAt"`
}

// FromSnapshot builds an event from a terminal snapshot. It returns false
// for snapshots that are not terminal.
func FromSnapshot(s session.Snapshot) (Event, bool) {
	var typ string
	switch s.State {
	case session.Completed:
		typ = EventSessionCompleted
	case session.Failed:
		typ = EventSessionFailed
	default:
		return Event{}, false
	}
	occurred := s.FinishedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return Event{
		Type:         typ,
		SessionID:    s.SessionID,
		FileName:     s.FileName,
		State:        s.State.String(),
		Progress:     s.Progress,
		Error:        s.Error,
		InsightCount: len(s.Insights),
		Insights:     s.Insights,
		PreviewURL:   s.PreviewURL,
		DownloadURL:  s.DownloadURL,
		DurationMs:   s.Duration().Milliseconds(),
		OccurredAt:   occurred.UTC(),
	}, true
}

// Notifier delivers events to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Fanout delivers to every notifier and joins the failures.
type Fanout []Notifier

func (f Fanout) Name() string {
	return "fanout"
}

func (f Fanout) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range f {
		start := time.Now()
		if err := n.Notify(ctx, event); err != nil {
			log.Warn().Err(err).Str("notifier", n.Name()).Str("sessionId", event.SessionID).Msg("Notification failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		log.Debug().
			Str("notifier", n.Name()).
			Str("sessionId", event.SessionID).
			Str("event", event.Type).
			Dur("elapsed", time.Since(start)).
			Msg("Notification sent")
	}
	return errors.Join(errs...)
}
