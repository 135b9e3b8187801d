package strike

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedResponse is returned when a 2xx body cannot be mapped onto the
// expected shape.
var ErrUnexpectedResponse = errors.New("unexpected response shape")

// APIError is a non-2xx answer from Strike.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strike: %s (status %d)", e.Message, e.StatusCode)
}

// TransportError means no response was received at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("strike: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// errorMessage extracts a human readable message from an error body:
// "message" first, then "error", then a generic status line.
func errorMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil && payload != nil {
		if msg := stringField(payload, "message"); msg != "" {
			return msg
		}
		if msg := stringField(payload, "error"); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("API Error: %d", status)
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
