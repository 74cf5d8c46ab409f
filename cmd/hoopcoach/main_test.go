package main

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/hoopcoach/internal/artifact"
	"github.com/fpang/hoopcoach/internal/awsboot"
	"github.com/fpang/hoopcoach/internal/coachapi"
	"github.com/fpang/hoopcoach/internal/notify"
	"github.com/fpang/hoopcoach/internal/session"
	"github.com/fpang/hoopcoach/internal/stage"
	"github.com/fpang/hoopcoach/internal/store"
)

// memStore is an in-memory SessionStore.
type memStore struct {
	mu      sync.Mutex
	records map[string]store.SessionRecord
	puts    int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]store.SessionRecord)}
}

func (m *memStore) PutSession(ctx context.Context, rec *store.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = *rec
	m.puts++
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*store.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) ListSessions(ctx context.Context, limit int) ([]store.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.SessionRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func snapshotAt(state session.State, id string, progress float64) session.Snapshot {
	s := session.Snapshot{
		SessionID:   id,
		State:       state,
		FileName:    "crossover.mp4",
		FileBytes:   2048,
		SubmittedAt: time.Unix(1700000000, 0),
	}
	p := stage.Describe(progress)
	s.Progress, s.Stage, s.StatusText, s.Steps = p.Progress, p.Stage, p.StatusText, p.Steps
	return s
}

func TestRecordFromSnapshot(t *testing.T) {
	s := snapshotAt(session.Completed, "42", 100)
	s.FinishedAt = time.Unix(1700000060, 0)
	s.PollCount = 4
	s.Insights = []coachapi.Insight{{TimestampSeconds: 1, Action: "Dribble", Feedback: "Eyes up"}}

	rec := recordFromSnapshot(s, "http://coach", "local-x")
	if rec.ID != "42" || rec.Local {
		t.Errorf("id = %q local = %v", rec.ID, rec.Local)
	}
	if rec.State != "completed" || rec.Stage != "complete" || rec.Progress != 100 {
		t.Errorf("state = %q stage = %q progress = %v", rec.State, rec.Stage, rec.Progress)
	}
	if rec.CreatedAt != 1700000000 || rec.FinishedAt != 1700000060 {
		t.Errorf("createdAt = %d finishedAt = %d", rec.CreatedAt, rec.FinishedAt)
	}
	if rec.PollCount != 4 || len(rec.Insights) != 1 || rec.ServerURL != "http://coach" {
		t.Errorf("record = %+v", rec)
	}

	failed := snapshotAt(session.Failed, "", 0)
	failed.Error = session.MsgSubmissionFailed
	rec = recordFromSnapshot(failed, "http://coach", "local-x")
	if rec.ID != "local-x" || !rec.Local || rec.Error != session.MsgSubmissionFailed {
		t.Errorf("local record = %+v", rec)
	}
}

func TestHistoryRecorderWritesOnChanges(t *testing.T) {
	ms := newMemStore()
	h := newHistoryRecorder(ms, "http://coach")

	h.observe(snapshotAt(session.Submitting, "", 0))
	h.observe(snapshotAt(session.Processing, "42", 0))
	h.observe(snapshotAt(session.Processing, "42", 10))
	h.observe(snapshotAt(session.Processing, "42", 25))
	h.observe(snapshotAt(session.Processing, "42", 30))
	h.observe(snapshotAt(session.Completed, "42", 100))
	h.Close()

	if ms.puts != 3 {
		t.Errorf("puts = %d, want 3 (processing, extracting, completed)", ms.puts)
	}
	rec, _ := ms.GetSession(context.Background(), "42")
	if rec == nil || rec.State != "completed" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestHistoryRecorderFailedWithoutID(t *testing.T) {
	ms := newMemStore()
	h := newHistoryRecorder(ms, "http://coach")

	h.observe(snapshotAt(session.Submitting, "", 0))
	failed := snapshotAt(session.Failed, "", 0)
	failed.Error = session.MsgSubmissionFailed
	h.observe(failed)
	h.Close()

	records, _ := ms.ListSessions(context.Background(), 0)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if !records[0].Local || !strings.HasPrefix(records[0].ID, "local-") {
		t.Errorf("record = %+v", records[0])
	}
}

// slowStore delays every write until release is closed.
type slowStore struct {
	*memStore
	release chan struct{}
}

func (s *slowStore) PutSession(ctx context.Context, rec *store.SessionRecord) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.memStore.PutSession(ctx, rec)
}

func TestHistoryRecorderDoesNotBlockObservers(t *testing.T) {
	ss := &slowStore{memStore: newMemStore(), release: make(chan struct{})}
	h := newHistoryRecorder(ss, "http://coach")

	observed := make(chan struct{})
	go func() {
		h.observe(snapshotAt(session.Processing, "42", 0))
		h.observe(snapshotAt(session.Processing, "42", 30))
		h.observe(snapshotAt(session.Completed, "42", 100))
		close(observed)
	}()
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("observe blocked on a slow store")
	}

	close(ss.release)
	h.Close()
	rec, _ := ss.GetSession(context.Background(), "42")
	if rec == nil || rec.State != "completed" {
		t.Fatalf("record = %+v", rec)
	}
	if ss.puts != 3 {
		t.Errorf("puts = %d, want 3", ss.puts)
	}
}

func TestShareLinkWarnsWithoutAWS(t *testing.T) {
	var logs, out bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	a := &app{
		aws: awsboot.New(func(context.Context) (aws.Config, error) {
			return aws.Config{}, errors.New("no credentials")
		}),
		out: &out,
	}
	a.shareLink(context.Background(), "clips", "exports/hoopcoach_42.zip")

	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
	for _, want := range []string{`"level":"warn"`, "Could not create a share link", "no credentials"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log missing %q: %s", want, logs.String())
		}
	}
}

func TestApplyStatus(t *testing.T) {
	rec := &store.SessionRecord{ID: "42", State: "processing", Progress: 50, Stage: "generating_commentary"}

	applyStatus(rec, &coachapi.StatusResponse{Status: coachapi.StatusProcessing, Progress: 30})
	if rec.Progress != 50 {
		t.Errorf("progress regressed to %v", rec.Progress)
	}

	applyStatus(rec, &coachapi.StatusResponse{Status: coachapi.StatusProcessing, Progress: 75})
	if rec.Progress != 75 || rec.Stage != "rendering_output" {
		t.Errorf("progress = %v stage = %q", rec.Progress, rec.Stage)
	}

	applyStatus(rec, &coachapi.StatusResponse{
		Status:     coachapi.StatusCompleted,
		Commentary: []coachapi.Insight{{Action: "Layup"}},
	})
	if rec.State != "completed" || rec.Progress != 100 || len(rec.Insights) != 1 || rec.FinishedAt == 0 {
		t.Errorf("completed record = %+v", rec)
	}

	failed := &store.SessionRecord{ID: "7"}
	applyStatus(failed, &coachapi.StatusResponse{Status: coachapi.StatusError})
	if failed.State != "failed" || failed.Error != session.MsgProcessingFailed {
		t.Errorf("failed record = %+v", failed)
	}
}

func TestEmitSessionMetrics(t *testing.T) {
	s := snapshotAt(session.Completed, "42", 100)
	s.AcceptedAt = s.SubmittedAt.Add(1500 * time.Millisecond)
	s.FinishedAt = s.SubmittedAt.Add(30 * time.Second)
	s.PollCount = 6

	var buf bytes.Buffer
	if err := emitSessionMetrics(&buf, s); err != nil {
		t.Fatalf("emitSessionMetrics: %v", err)
	}

	var docs []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var doc map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
			t.Fatalf("invalid EMF line %q: %v", scanner.Text(), err)
		}
		docs = append(docs, doc)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d EMF lines, want 2", len(docs))
	}
	if docs[0]["UploadMs"] != float64(1500) || docs[0]["UploadBytes"] != float64(2048) {
		t.Errorf("upload doc = %v", docs[0])
	}
	if docs[1]["Result"] != "completed" || docs[1]["PollCount"] != float64(6) || docs[1]["SessionDurationMs"] != float64(30000) {
		t.Errorf("session doc = %v", docs[1])
	}
}

func TestProgressPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)

	p.observe(snapshotAt(session.Submitting, "", 0))
	p.observe(snapshotAt(session.Processing, "42", 0))
	p.observe(snapshotAt(session.Processing, "42", 0))
	p.observe(snapshotAt(session.Processing, "42", 55))
	p.observe(snapshotAt(session.Completed, "42", 100))

	out := buf.String()
	for _, want := range []string{"Uploading crossover.mp4 (2 KB)", "Session 42 accepted", "55%", "Analysis complete!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "0%  Uploading video..."); n != 2 {
		t.Errorf("0%% line printed %d times, want 2 (submitting, processing):\n%s", n, out)
	}
	if strings.Contains(out, "\r") {
		t.Error("plain output should not rewrite lines")
	}
}

// coachServer fakes the analysis service.
type coachServer struct {
	*httptest.Server
	polls atomic.Int32
	video []byte
}

func newCoachServer(t *testing.T) *coachServer {
	t.Helper()
	cs := &coachServer{video: bytes.Repeat([]byte("mp4"), 512)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("video"); err != nil {
			http.Error(w, `{"error":"No video file"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"session_id": "1700000000", "message": "Video uploaded successfully"}`)
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if cs.polls.Add(1) < 3 {
			fmt.Fprintf(w, `{"status":"processing","progress":%d}`, 30*cs.polls.Load())
			return
		}
		fmt.Fprint(w, `{"status":"completed","progress":100,
			"commentary":[{"timestamp":4,"action":"Crossover","feedback":"Stay low"}],
			"video_info":{"fps":30,"width":640,"height":360,"duration":8,"total_frames":240}}`)
	})
	mux.HandleFunc("GET /download/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="analyzed_`+r.PathValue("id")+`.mp4"`)
		w.Write(cs.video)
	})
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

type webhookSink struct {
	*httptest.Server
	mu     sync.Mutex
	events []notify.Event
	signed bool
}

func newWebhookSink(t *testing.T, secret string) *webhookSink {
	t.Helper()
	ws := &webhookSink{}
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev notify.Event
		json.Unmarshal(body, &ev)
		ws.mu.Lock()
		ws.events = append(ws.events, ev)
		ws.signed = notify.VerifySignature(secret, body, r.Header.Get(notify.SignatureHeader))
		ws.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ws.Close)
	return ws
}

// testApp writes a config file pointing at server and loads it the way a
// command would.
func testApp(t *testing.T, server, webhook string) (*app, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, env := range []string{"HOOPCOACH_SERVER_URL", "HOOPCOACH_API_KEY", "GEMINI_API_KEY",
		"HOOPCOACH_HISTORY", "HOOPCOACH_S3_BUCKET", "HOOPCOACH_EVENT_BUS", "HOOPCOACH_METRICS",
		"HOOPCOACH_SSM_API_KEY_PARAM", "HOOPCOACH_LOG_LEVEL"} {
		t.Setenv(env, "")
	}

	cfgPath := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf(`
[server]
base_url = %q

[polling]
interval_ms = 5

[credentials]
api_key = "test-key"

[history]
backend = "sqlite"
sqlite_path = %q

[notify]
webhook_url = %q
webhook_secret = "s3cret"

[export]
output_dir = %q
`, server, filepath.Join(dir, "history.db"), webhook, filepath.Join(dir, "out"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	configFlag, logLevelFlag, serverFlag = cfgPath, "error", ""
	t.Cleanup(func() { configFlag, logLevelFlag, serverFlag = "", "", "" })

	var out bytes.Buffer
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(&out)
	a, err := loadApp(cmd)
	if err != nil {
		t.Fatalf("loadApp: %v", err)
	}
	return a, &out, dir
}

func writeClip(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "crossover.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAnalyzeEndToEnd(t *testing.T) {
	cs := newCoachServer(t)
	hook := newWebhookSink(t, "s3cret")
	a, out, dir := testApp(t, cs.URL, hook.URL)

	err := runAnalyze(context.Background(), a, writeClip(t, dir), analyzeOptions{download: true, export: true})
	if err != nil {
		t.Fatalf("runAnalyze: %v\n%s", err, out.String())
	}

	text := out.String()
	for _, want := range []string{"Session 1700000000 accepted", "Analysis complete!", "0:04", "Stay low", "640x360"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	video, err := os.ReadFile(filepath.Join(dir, "out", "analyzed_1700000000.mp4"))
	if err != nil || !bytes.Equal(video, cs.video) {
		t.Errorf("downloaded video mismatch: %v", err)
	}

	bundle, err := os.ReadFile(filepath.Join(dir, "out", artifact.BundleName("1700000000")))
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	if err != nil {
		t.Fatalf("bundle zip: %v", err)
	}
	if len(zr.File) != 3 {
		t.Errorf("bundle has %d entries, want 3", len(zr.File))
	}

	hook.mu.Lock()
	if len(hook.events) != 1 || hook.events[0].Type != notify.EventSessionCompleted || !hook.signed {
		t.Errorf("webhook events = %+v signed = %v", hook.events, hook.signed)
	}
	hook.mu.Unlock()

	out.Reset()
	if err := runHistoryList(context.Background(), a, 10); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), "1700000000") || !strings.Contains(out.String(), "completed") {
		t.Errorf("history output:\n%s", out.String())
	}

	out.Reset()
	if err := runHistoryShow(context.Background(), a, "1700000000"); err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out.String(), "Crossover") {
		t.Errorf("history show output:\n%s", out.String())
	}
}

func TestRunAnalyzeSubmissionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"disk full"}`, http.StatusInternalServerError)
	}))
	defer server.Close()
	a, _, dir := testApp(t, server.URL, "")

	err := runAnalyze(context.Background(), a, writeClip(t, dir), analyzeOptions{})
	if err == nil || err.Error() != session.MsgSubmissionFailed {
		t.Fatalf("err = %v, want %q", err, session.MsgSubmissionFailed)
	}

	out := &bytes.Buffer{}
	a.out = out
	if err := runHistoryList(context.Background(), a, 10); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), "local-") || !strings.Contains(out.String(), "failed") {
		t.Errorf("history output:\n%s", out.String())
	}
}

func TestRunAnalyzeRejectsInvalidInput(t *testing.T) {
	a, _, dir := testApp(t, "http://127.0.0.1:1", "")
	path := filepath.Join(dir, "notes.txt")
	os.WriteFile(path, []byte("hello"), 0o644)

	if err := runAnalyze(context.Background(), a, path, analyzeOptions{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunStatus(t *testing.T) {
	cs := newCoachServer(t)
	a, out, _ := testApp(t, cs.URL, "")

	if err := runStatus(context.Background(), a, "1700000000"); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	if !strings.Contains(out.String(), "processing") || !strings.Contains(out.String(), "30%") {
		t.Errorf("status output:\n%s", out.String())
	}
}

func TestRunStatusServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","progress":40,"error":"Model unavailable"}`)
	}))
	defer server.Close()
	a, _, _ := testApp(t, server.URL, "")

	err := runStatus(context.Background(), a, "9")
	if err == nil || err.Error() != "Model unavailable" {
		t.Fatalf("err = %v", err)
	}
}
