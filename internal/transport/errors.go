package transport

import (
	"errors"
	"fmt"
)

// maxRawInError bounds how much of a malformed body is echoed into error text.
const maxRawInError = 512

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidPayloadError reports a non-empty body that is not JSON.
type InvalidPayloadError struct {
	Path   string
	Raw    string
	Status int
}

func (e *InvalidPayloadError) Error() string {
	raw := e.Raw
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError] + "..."
	}
	return fmt.Sprintf("Invalid JSON from %s: %s", e.Path, raw)
}

// HTTPError reports a non-2xx response. Message is resolved from the payload when
// possible so it can be shown to operators as-is.
type HTTPError struct {
	Status     int
	StatusText string
	Payload    any
	Message    string
}

func (e *HTTPError) Error() string { return e.Message }

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	var payloadErr *InvalidPayloadError
	if errors.As(err, &payloadErr) {
		return payloadErr.Status
	}
	return 0
}

// resolveMessage applies the detail → message → error → status text → default order.
func resolveMessage(payload any, statusText string) string {
	if obj, ok := payload.(map[string]any); ok {
		for _, key := range []string{"detail", "message", "error"} {
			if msg := messageValue(obj[key]); msg != "" {
				return msg
			}
		}
	}
	if statusText != "" {
		return statusText
	}
	return "Request failed"
}

func messageValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case float64:
		if val == 0 {
			return ""
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}
