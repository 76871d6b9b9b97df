package prediction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Remote prediction statuses. Only succeeded and failed end a job.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

const defaultFailureMessage = "Prediction failed"

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// outputURLs accepts either a list of URIs or a single URI.
func (p predictionResponse) outputURLs() ([]string, error) {
	raw := strings.TrimSpace(string(p.Output))
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	return nil, fmt.Errorf("unexpected output shape: %.80s", raw)
}

// errorMessage reads the remote error, which is either a string or an object.
func (p predictionResponse) errorMessage() string {
	return remoteMessage(p.Error, defaultFailureMessage)
}

func remoteMessage(raw json.RawMessage, fallback string) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return fallback
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, v := range []string{obj.Message, obj.Detail, obj.Error} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return fallback
}

// Clock abstracts time so the poll loop can be driven in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
