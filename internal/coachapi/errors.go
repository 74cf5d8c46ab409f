package coachapi

import "fmt"

// ErrorType categorizes submission and poll failures.
type ErrorType int

const (
	// ErrTypeTransportFailure covers network errors and non-2xx responses.
	ErrTypeTransportFailure ErrorType = iota
	// ErrTypeProtocolError covers 2xx responses whose body cannot be used.
	ErrTypeProtocolError
	// ErrTypeServerReported is a poll that returned status=error.
	ErrTypeServerReported
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeTransportFailure:
		return "transport_failure"
	case ErrTypeProtocolError:
		return "protocol_error"
	case ErrTypeServerReported:
		return "server_reported"
	default:
		return "unknown"
	}
}

// SubmissionError is returned by Client.Submit.
type SubmissionError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	return formatError("submit", e.Type, e.Message, e.StatusCode, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollError is returned by Client.Status, and built by the poller for
// server-reported failures.
type PollError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

func (e *PollError) Error() string {
	return formatError("status", e.Type, e.Message, e.StatusCode, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

func formatError(op string, t ErrorType, msg string, code int, err error) string {
	s := fmt.Sprintf("%s: %s: %s", op, t, msg)
	if code != 0 {
		s += fmt.Sprintf(" (HTTP %d)", code)
	}
	if err != nil {
		s += ": " + err.Error()
	}
	return s
}
