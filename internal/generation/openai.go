package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/openai"
)

type OpenAIGenerator struct {
	client      openai.Client
	log         *logger.Logger
	metrics     *observability.Metrics
	callTimeout time.Duration
}

func NewOpenAIGenerator(client openai.Client, callTimeout time.Duration, metrics *observability.Metrics, baseLog *logger.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      client,
		log:         baseLog.With("generator", "openai"),
		metrics:     metrics,
		callTimeout: callTimeout,
	}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (GeneratedText, error) {
	callCtx := ctx
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.client.Complete(callCtx, openai.CompletionRequest{
		System:      req.System,
		User:        req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		// The outer context is canceled: report that, not a provider fault.
		if ctx.Err() != nil {
			g.metrics.ObserveLLMRequest(g.Name(), "canceled", time.Since(start), 0, 0)
			return GeneratedText{}, ctx.Err()
		}
		classified := Classify(g.Name(), err)
		outcome := "fatal"
		if IsTransient(classified) {
			outcome = "transient"
		}
		g.metrics.ObserveLLMRequest(g.Name(), outcome, time.Since(start), 0, 0)
		g.log.Warn("generation call failed", "kind", req.Kind, "outcome", outcome, "error", err)
		return GeneratedText{}, classified
	}
	g.metrics.ObserveLLMRequest(g.Name(), "ok", time.Since(start), out.InputTokens, out.OutputTokens)

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return GeneratedText{}, &ProviderFatalError{Provider: g.Name(), Err: errors.New("empty completion")}
	}
	return GeneratedText{
		Text:         text,
		Model:        out.Model,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
	}, nil
}
