package prediction

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingConfig = errors.New("prediction: api url and token are required")
	ErrJobFinished   = errors.New("prediction: job already reached a terminal state")
	ErrJobBusy       = errors.New("prediction: job is already being polled")
)

// SubmissionError is returned when the submit endpoint answers with a non-success status.
type SubmissionError struct {
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// TransportError covers network, status and decoding failures of a single call.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Op         string
	JobID      string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := "prediction: " + e.Op
	if e.JobID != "" {
		msg += " " + e.JobID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// JobFailedError carries the failure reported by the remote service.
type JobFailedError struct {
	JobID   string
	Message string
}

func (e *JobFailedError) Error() string { return e.Message }

// TimeoutError is returned when a job outlives its wall-clock budget.
type TimeoutError struct {
	JobID    string
	Timeout  time.Duration
	Elapsed  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Prediction timed out after %s (%d polls)", e.Elapsed.Round(time.Millisecond), e.Attempts)
}
