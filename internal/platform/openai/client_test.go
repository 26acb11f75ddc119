package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model", Timeout: 2 * time.Second}, logger.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestCompleteSendsChatRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: expected /v1/chat/completions got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization: got %q", got)
		}
		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Model != "test-model" || len(body.Messages) != 2 || body.MaxTokens != 64 {
			t.Errorf("unexpected body: %+v", body)
		}
		_, _ = w.Write([]byte(`{"model":"test-model","choices":[{"message":{"role":"assistant","content":"Intro to Physics"},"finish_reason":"stop"}],"usage":{"prompt_tokens":11,"completion_tokens":4}}`))
	})

	out, err := c.Complete(context.Background(), CompletionRequest{System: "sys", User: "make a course", MaxTokens: 64})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Text != "Intro to Physics" || out.InputTokens != 11 || out.OutputTokens != 4 {
		t.Fatalf("unexpected completion: %+v", out)
	}
}

func TestCompleteSurfacesHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	})

	_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError got %T %v", err, err)
	}
	if httpErr.StatusCode != 429 || !httpErr.QuotaExhausted() || httpErr.RetryAfter != 3*time.Second {
		t.Fatalf("unexpected error fields: %+v", httpErr)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError got %v", err)
	}
}

func TestCompleteReportsTruncatedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("response writer cannot hijack")
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 400\r\n\r\n{\"model\":\"test")
		_ = buf.Flush()
		_ = conn.Close()
	})

	_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected *ReadError got %T %v", err, err)
	}
	if readErr.StatusCode != http.StatusOK || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("unexpected read error: %+v", readErr)
	}
}

func TestCompleteRejectsOversizedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseBytes+10)))
	})
	_, err := c.Complete(context.Background(), CompletionRequest{User: "x"})
	var decErr *DecodeError
	if !errors.As(err, &decErr) || len(decErr.Raw) > 512 {
		t.Fatalf("expected bounded *DecodeError got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}, logger.Nop()); err == nil {
		t.Fatalf("expected missing key error")
	}
}
