// Package coachapi is the HTTP client for the basketball video analysis
// service. It covers the four endpoints the client depends on:
//
//	POST /upload                 submit a video and credential, get a session id
//	GET  /status/{session_id}    poll processing status and progress
//	GET  /preview/{session_id}   inline analyzed video
//	GET  /download/{session_id}  analyzed video as an attachment
//
// The client never retries. Callers decide how failures surface.
package coachapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/hoopcoach/internal/filehandler"
)

const (
	// maxErrorBodyBytes bounds how much of an error response is read.
	maxErrorBodyBytes = 4 << 10

	// formFieldVideo and formFieldAPIKey are the multipart field names
	// the upload endpoint expects.
	formFieldVideo  = "video"
	formFieldAPIKey = "api_key"
)

// Client talks to the analysis service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the service at baseURL. A zero timeout
// leaves requests unbounded; they end when the transport reports failure
// or ctx is canceled.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the service root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Submission ---

// Submit uploads a validated video together with the auxiliary credential
// and returns the session id assigned by the service.
//
// Any transport failure or non-2xx response yields a SubmissionError of
// type ErrTypeTransportFailure; a 2xx response without a usable session id
// yields ErrTypeProtocolError.
func (c *Client) Submit(ctx context.Context, in filehandler.ValidInput, credential string) (string, error) {
	f, err := in.Open()
	if err != nil {
		return "", &SubmissionError{Type: ErrTypeTransportFailure, Message: "open input", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &SubmissionError{Type: ErrTypeTransportFailure, Message: "stat input", Err: err}
	}

	body, contentType, length, err := multipartBody(in, f, info.Size(), credential)
	if err != nil {
		return "", &SubmissionError{Type: ErrTypeTransportFailure, Message: "build request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return "", &SubmissionError{Type: ErrTypeTransportFailure, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.ContentLength = length

	log.Debug().
		Str("file", in.Name).
		Int64("bytes", info.Size()).
		Msg("Uploading video")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Dur("duration", duration).Err(err).Msg("Upload request failed")
		return "", &SubmissionError{Type: ErrTypeTransportFailure, Message: "upload request", Err: err}
	}
	defer resp.Body.Close()

	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("Upload response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SubmissionError{
			Type:       ErrTypeTransportFailure,
			Message:    errorMessage(resp.Body, "upload rejected"),
			StatusCode: resp.StatusCode,
		}
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SubmissionError{Type: ErrTypeProtocolError, Message: "decode upload response", StatusCode: resp.StatusCode, Err: err}
	}
	if out.SessionID == "" {
		return "", &SubmissionError{Type: ErrTypeProtocolError, Message: "upload response has no session_id", StatusCode: resp.StatusCode}
	}
	if out.Message != "" {
		log.Debug().Str("message", out.Message).Msg("Upload accepted")
	}
	return string(out.SessionID), nil
}

// multipartBody builds a multipart/form-data body whose length is known
// up front, so the upload is not chunked. The video part is streamed from
// r; only the part headers and the trailing fields are buffered.
func multipartBody(in filehandler.ValidInput, r io.Reader, size int64, credential string) (io.Reader, string, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		formFieldVideo, escapeQuotes(in.Name)))
	h.Set("Content-Type", in.MIMEType)
	if _, err := mw.CreatePart(h); err != nil {
		return nil, "", 0, err
	}
	head := append([]byte(nil), buf.Bytes()...)
	buf.Reset()

	if err := mw.WriteField(formFieldAPIKey, credential); err != nil {
		return nil, "", 0, err
	}
	if err := mw.Close(); err != nil {
		return nil, "", 0, err
	}
	tail := append([]byte(nil), buf.Bytes()...)

	body := io.MultiReader(bytes.NewReader(head), io.LimitReader(r, size), bytes.NewReader(tail))
	return body, mw.FormDataContentType(), int64(len(head)) + size + int64(len(tail)), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// --- Status ---

// Status performs one status query for a session.
//
// Transport failures and non-2xx responses yield a PollError of type
// ErrTypeTransportFailure; an undecodable body yields ErrTypeProtocolError.
// A response with status "error" is not an error here; the caller
// classifies it.
func (c *Client) Status(ctx context.Context, id string) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL("status", id), nil)
	if err != nil {
		return nil, &PollError{Type: ErrTypeTransportFailure, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Str("sessionId", id).Dur("duration", duration).Err(err).Msg("Status request failed")
		return nil, &PollError{Type: ErrTypeTransportFailure, Message: "status request", Err: err}
	}
	defer resp.Body.Close()

	log.Trace().Str("sessionId", id).Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("Status response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &PollError{
			Type:       ErrTypeTransportFailure,
			Message:    errorMessage(resp.Body, "status check failed"),
			StatusCode: resp.StatusCode,
		}
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &PollError{Type: ErrTypeProtocolError, Message: "decode status response", StatusCode: resp.StatusCode, Err: err}
	}
	return &out, nil
}

// --- Artifacts ---

// PreviewURL returns the location of the inline preview for a session.
func (c *Client) PreviewURL(id string) string {
	return c.sessionURL("preview", id)
}

// DownloadURL returns the location of the downloadable artifact.
func (c *Client) DownloadURL(id string) string {
	return c.sessionURL("download", id)
}

// DefaultArtifactName is the file name the service gives analyzed videos.
func DefaultArtifactName(id string) string {
	return "analyzed_" + id + ".mp4"
}

// Download streams the analyzed video for a completed session into w and
// returns the server-suggested file name and the number of bytes copied.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(id), nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("download %s: HTTP %d: %s", id, resp.StatusCode,
			errorMessage(resp.Body, "video not ready"))
	}

	name := DefaultArtifactName(id)
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name = params["filename"]
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return name, n, fmt.Errorf("download %s: copy body: %w", id, err)
	}
	log.Debug().Str("sessionId", id).Int64("bytes", n).Str("file", name).Msg("Artifact downloaded")
	return name, n, nil
}

// --- Internal helpers ---

func (c *Client) sessionURL(endpoint, id string) string {
	return c.baseURL + "/" + endpoint + "/" + url.PathEscape(id)
}

// errorMessage extracts the "error" field of a JSON error body, falling
// back to a truncated raw body or to fallback.
func errorMessage(r io.Reader, fallback string) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return fallback
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
