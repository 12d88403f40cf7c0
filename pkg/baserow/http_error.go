package baserow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jimwitte/baserow-record-linker/pkg/redact"
)

// errorEnvelope is the error body shape returned by the Baserow REST API.
// detail is either a string or a per-field object; it is only used as a hint.
type errorEnvelope struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// HTTPError is a sanitized summary of a non-2xx Baserow API response.
//
// Important: do not include raw response bodies here (rows can carry PII).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorCode  string
	Detail     string

	// Snippet is a redacted, truncated hint for non-Baserow responses.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "baserow http error"
	}
	parts := []string{
		fmt.Sprintf("baserow api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		parts = append(parts, "error="+strings.TrimSpace(e.ErrorCode))
	}
	if strings.TrimSpace(e.Detail) != "" {
		parts = append(parts, "detail="+strings.TrimSpace(e.Detail))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// IsNotFound reports whether err is a Baserow 404 response.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	// Best effort: parse the Baserow error envelope.
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && strings.TrimSpace(env.Error) != "" {
		h.ErrorCode = strings.TrimSpace(env.Error)
		h.Detail = detailString(env.Detail)
		return h
	}

	h.Snippet = redactAndTruncate(body)
	return h
}

func detailString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return redactAndTruncate([]byte(s))
	}
	return redactAndTruncate(raw)
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
