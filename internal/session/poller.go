package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/stage"
)

// DefaultPollInterval is the wait between the end of one status query and
// the start of the next.
const DefaultPollInterval = 2 * time.Second

// StatusAPI performs a single status query.
type StatusAPI interface {
	Status(ctx context.Context, sessionID string) (*coachapi.StatusResponse, error)
}

// EventSink receives poller events. Every event carries the session id
// the poll was issued for.
type EventSink interface {
	OnProgress(sessionID string, phase stage.Phase)
	OnCompleted(sessionID string, status *coachapi.StatusResponse)
	OnFailed(sessionID string, diagnostic string, err error)
}

// Poller queries session status until a terminal response.
type Poller struct {
	api      StatusAPI
	interval time.Duration
}

// NewPoller creates a poller. A non-positive interval uses
// DefaultPollInterval.
func NewPoller(api StatusAPI, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{api: api, interval: interval}
}

// Interval returns the query-to-query wait.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls sessionID until the service reports completed or error, a
// query fails, or ctx is canceled. Queries never overlap: the next one is
// scheduled only after the previous response has been handled. Nothing is
// emitted once ctx is canceled.
func (p *Poller) Run(ctx context.Context, sessionID string, sink EventSink) {
	for n := 1; ; n++ {
		resp, err := p.api.Status(ctx, sessionID)
		if ctx.Err() != nil {
			log.Debug().Str("sessionId", sessionID).Int("poll", n).Msg("Polling canceled")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("sessionId", sessionID).Int("poll", n).Msg("Status check failed")
			sink.OnFailed(sessionID, MsgStatusCheckFailed, err)
			return
		}

		log.Debug().
			Str("sessionId", sessionID).
			Int("poll", n).
			Str("status", string(resp.Status)).
			Float64("progress", resp.Progress).
			Msg("Status polled")

		switch resp.Status {
		case coachapi.StatusCompleted:
			sink.OnCompleted(sessionID, resp)
			return
		case coachapi.StatusError:
			msg := strings.TrimSpace(resp.Error)
			if msg == "" {
				msg = MsgProcessingFailed
			}
			sink.OnFailed(sessionID, msg, &coachapi.PollError{
				Type:    coachapi.ErrTypeServerReported,
				Message: msg,
			})
			return
		default:
			// Unrecognized statuses are treated as still processing.
			sink.OnProgress(sessionID, stage.Describe(resp.Progress))
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug().Str("sessionId", sessionID).Msg("Polling canceled")
			return
		case <-timer.C:
		}
	}
}
