package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRecorder_FlushOutput(t *testing.T) {
	var buf bytes.Buffer
	rec := New(Namespace).To(&buf)
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }
	rec.Dimension("Result", "completed")
	rec.Duration("SessionDurationMs", 1500*time.Millisecond)
	rec.Metric("PollCount", 4, UnitCount)
	rec.Property("sessionId", "1700000000")
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	output := buf.String()
	if strings.Count(output, "\n") != 1 || !strings.HasSuffix(output, "\n") {
		t.Errorf("expected a single line, got %q", output)
	}

	var doc struct {
		AWS struct {
			Timestamp         int64 `json:"Timestamp"`
			CloudWatchMetrics []struct {
				Namespace  string     `json:"Namespace"`
				Dimensions [][]string `json:"Dimensions"`
				Metrics    []struct {
					Name string `json:"Name"`
					Unit string `json:"Unit"`
				} `json:"Metrics"`
			} `json:"CloudWatchMetrics"`
		} `json:"_aws"`
		Result            string  `json:"Result"`
		SessionDurationMs float64 `json:"SessionDurationMs"`
		PollCount         float64 `json:"PollCount"`
		SessionID         string  `json:"sessionId"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	if doc.AWS.Timestamp != 1700000000000 {
		t.Errorf("unexpected timestamp: %d", doc.AWS.Timestamp)
	}
	if len(doc.AWS.CloudWatchMetrics) != 1 {
		t.Fatalf("expected one CloudWatchMetrics entry, got %d", len(doc.AWS.CloudWatchMetrics))
	}
	cw := doc.AWS.CloudWatchMetrics[0]
	if cw.Namespace != "HoopCoach" {
		t.Errorf("expected namespace HoopCoach, got %s", cw.Namespace)
	}
	if len(cw.Dimensions) != 1 || len(cw.Dimensions[0]) != 1 || cw.Dimensions[0][0] != "Result" {
		t.Errorf("unexpected dimensions: %v", cw.Dimensions)
	}
	if len(cw.Metrics) != 2 || cw.Metrics[0].Name != "PollCount" || cw.Metrics[1].Unit != UnitMilliseconds {
		t.Errorf("unexpected metric definitions: %+v", cw.Metrics)
	}
	if doc.Result != "completed" || doc.SessionDurationMs != 1500 || doc.PollCount != 4 || doc.SessionID != "1700000000" {
		t.Errorf("unexpected top-level values: %+v", doc)
	}
}

func TestRecorder_EmptyFlushWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	rec := New(Namespace).To(&buf)
	rec.Dimension("Result", "failed")
	rec.Property("sessionId", "x")
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output without metrics, got %q", buf.String())
	}
}

func TestRecorder_Count(t *testing.T) {
	rec := New(Namespace)
	rec.Count("Uploads")
	if rec.values["Uploads"] != 1 || rec.metrics["Uploads"].Unit != UnitCount {
		t.Errorf("unexpected count metric: %v %+v", rec.values["Uploads"], rec.metrics["Uploads"])
	}
}
