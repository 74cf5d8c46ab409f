package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/filehandler"
)

type statusReply struct {
	resp *coachapi.StatusResponse
	err  error
}

func processing(p float64) statusReply {
	return statusReply{resp: &coachapi.StatusResponse{Status: coachapi.StatusProcessing, Progress: p}}
}

// fakeAPI scripts submission and status responses. When gate is set each
// status query blocks until it can receive from gate.
type fakeAPI struct {
	submitID   string
	submitErr  error
	submitGate chan struct{}

	gate  chan struct{}
	delay time.Duration

	mu          sync.Mutex
	replies     []statusReply
	starts      []time.Time
	ends        []time.Time
	inFlight    int
	maxInFlight int
	submits     int
}

func (f *fakeAPI) Submit(ctx context.Context, in filehandler.ValidInput, credential string) (string, error) {
	f.mu.Lock()
	f.submits++
	f.mu.Unlock()
	if f.submitGate != nil {
		<-f.submitGate
	}
	return f.submitID, f.submitErr
}

func (f *fakeAPI) Status(ctx context.Context, sessionID string) (*coachapi.StatusResponse, error) {
	f.mu.Lock()
	n := len(f.starts)
	f.starts = append(f.starts, time.Now())
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	f.ends = append(f.ends, time.Now())
	if n >= len(f.replies) {
		n = len(f.replies) - 1
	}
	return f.replies[n].resp, f.replies[n].err
}

func (f *fakeAPI) PreviewURL(id string) string  { return "http://coach.test/preview/" + id }
func (f *fakeAPI) DownloadURL(id string) string { return "http://coach.test/download/" + id }

func (f *fakeAPI) submitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *fakeAPI) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

// recorder collects snapshots delivered to an observer.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func testInput() filehandler.ValidInput {
	return filehandler.ValidInput{
		Input: filehandler.Input{Name: "crossover.mp4", SizeBytes: 2048, MIMEType: "video/mp4"},
		Path:  "/videos/crossover.mp4",
	}
}

// waitFor polls the controller until cond holds or the test times out.
func waitFor(t *testing.T, c *Controller, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Snapshot(); cond(s) {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met; last snapshot: %+v", c.Snapshot())
	return Snapshot{}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
