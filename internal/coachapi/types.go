package coachapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JobStatus is the server-side state of an analysis session.
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

// Insight is one timestamped coaching comment returned for a completed
// session.
type Insight struct {
	TimestampSeconds float64 `json:"timestamp" dynamodbav:"timestamp"`
	Action           string  `json:"action" dynamodbav:"action"`
	Feedback         string  `json:"feedback" dynamodbav:"feedback"`
	CommentaryType   string  `json:"commentary_type,omitempty" dynamodbav:"commentaryType,omitempty"`
}

// VideoInfo describes the analyzed input as reported by the server.
type VideoInfo struct {
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Duration    float64 `json:"duration"`
	TotalFrames int     `json:"total_frames"`
}

// StatusResponse is the body of GET /status/{session_id}. A missing
// progress field decodes as 0.
type StatusResponse struct {
	Status     JobStatus  `json:"status"`
	Progress   float64    `json:"progress"`
	Error      string     `json:"error,omitempty"`
	Commentary []Insight  `json:"commentary,omitempty"`
	VideoInfo  *VideoInfo `json:"video_info,omitempty"`
}

// uploadResponse is the body of POST /upload.
type uploadResponse struct {
	SessionID sessionID `json:"session_id"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// sessionID accepts either a JSON string or a JSON number, since the
// service derives ids from a Unix timestamp.
type sessionID string

func (s *sessionID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = sessionID(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("session_id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(num.String(), 64); err != nil {
		return fmt.Errorf("session_id: %w", err)
	}
	*s = sessionID(num.String())
	return nil
}
