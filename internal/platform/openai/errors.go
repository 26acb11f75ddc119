package openai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/httpx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("openai http %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// QuotaExhausted reports a 429 that will not clear by waiting.
func (e *HTTPError) QuotaExhausted() bool {
	return e != nil && (e.Code == "insufficient_quota" || e.Type == "insufficient_quota")
}

// DecodeError means the provider answered 2xx with a body we cannot use.
type DecodeError struct {
	Err error
	Raw string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("openai decode error: %v; raw=%s", e.Err, e.Raw)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// ReadError means the response body could not be read to the end, usually a
// connection dropped mid-stream.
type ReadError struct {
	StatusCode int
	Err        error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("openai read body (http %d): %v", e.StatusCode, e.Err)
}
func (e *ReadError) Unwrap() error { return e.Err }

func newHTTPError(resp *http.Response, raw []byte) *HTTPError {
	out := &HTTPError{StatusCode: resp.StatusCode}
	var env struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		out.Message = env.Error.Message
		out.Type = env.Error.Type
		if env.Error.Code != nil {
			out.Code = strings.TrimSpace(fmt.Sprint(env.Error.Code))
		}
	} else {
		out.Message = textutil.Truncate(strings.TrimSpace(string(raw)), 512)
	}
	out.RetryAfter = httpx.RetryAfterDuration(resp, 0, 0)
	return out
}
