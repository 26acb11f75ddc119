package curriculum_build

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/curriculum-orchestrator/internal/generation"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/httpx"
)

// generate makes one logical provider call: every attempt waits on the
// shared limiter, transient failures back off and retry up to MaxAttempts,
// anything else returns at once.
func (p *Pipeline) generate(ctx context.Context, req generation.Request) (generation.GeneratedText, error) {
	ctx, span := observability.Tracer().Start(ctx, "curriculum_build.generate")
	defer span.End()
	span.SetAttributes(attribute.String("unit.kind", string(req.Kind)))

	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		out, err := p.callOnce(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return generation.GeneratedText{}, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = &generation.ProviderTransientError{Provider: p.gen.Name(), Err: err}
		}
		if !generation.IsTransient(err) {
			if !generation.IsFatal(err) {
				err = &generation.ProviderFatalError{Provider: p.gen.Name(), Err: err}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider fatal")
			return generation.GeneratedText{}, err
		}

		lastErr = err
		if attempt == p.opts.MaxAttempts {
			break
		}
		wait := httpx.Backoff(attempt, p.opts.BackoffBase, p.opts.BackoffMax)
		var te *generation.ProviderTransientError
		if errors.As(err, &te) && te.RetryAfter > wait {
			wait = te.RetryAfter
			if p.opts.BackoffMax > 0 && wait > p.opts.BackoffMax {
				wait = p.opts.BackoffMax
			}
		}
		p.metrics.IncUnitRetry(string(req.Kind))
		p.log.Warn("provider call retrying",
			"kind", req.Kind,
			"attempt", attempt,
			"max_attempts", p.opts.MaxAttempts,
			"sleep", wait.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, wait); err != nil {
			return generation.GeneratedText{}, err
		}
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "provider unavailable")
	return generation.GeneratedText{}, lastErr
}

// callOnce holds the limiter slot for exactly one provider call. The slot is
// released even when the generator panics.
func (p *Pipeline) callOnce(ctx context.Context, req generation.Request) (generation.GeneratedText, error) {
	release, err := p.limiter.Throttle(ctx)
	if err != nil {
		return generation.GeneratedText{}, err
	}
	defer release()
	return p.gen.Generate(ctx, req)
}
