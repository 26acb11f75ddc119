package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

// maxResponseBytes bounds a single completion body.
const maxResponseBytes = 8 << 20

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature *float64
}

type Completion struct {
	Text         string
	Model        string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Client issues one chat completion per call. It never retries; callers own
// retry policy.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Model() string
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg Config, log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing openai api key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &client{
		log:        log.With("client", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *client) Model() string { return c.model }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	body := chatRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if s := strings.TrimSpace(req.System); s != "" {
		body.Messages = append(body.Messages, Message{Role: "system", Content: s})
	}
	body.Messages = append(body.Messages, Message{Role: "user", Content: req.User})

	raw, err := c.doOnce(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return Completion{}, err
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Completion{}, &DecodeError{Err: err, Raw: textutil.Truncate(string(raw), 512)}
	}
	if len(out.Choices) == 0 {
		return Completion{}, &DecodeError{Err: fmt.Errorf("no choices"), Raw: textutil.Truncate(string(raw), 512)}
	}
	return Completion{
		Text:         out.Choices[0].Message.Content,
		Model:        out.Model,
		FinishReason: out.Choices[0].FinishReason,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
	}, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, &ReadError{StatusCode: resp.StatusCode, Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp, raw)
	}
	if len(raw) > maxResponseBytes {
		return nil, &DecodeError{Err: fmt.Errorf("response body exceeds %d bytes", maxResponseBytes), Raw: textutil.Truncate(string(raw), 512)}
	}
	return raw, nil
}
