package generation

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

// StubGenerator answers locally with deterministic text. It keeps the full
// walk exercisable without provider credentials.
type StubGenerator struct {
	Latency time.Duration
}

func NewStubGenerator(latency time.Duration) *StubGenerator {
	return &StubGenerator{Latency: latency}
}

func (s *StubGenerator) Name() string { return "stub" }

func (s *StubGenerator) Generate(ctx context.Context, req Request) (GeneratedText, error) {
	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return GeneratedText{}, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return GeneratedText{}, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Prompt))
	subject := req.Context["module"]
	if subject == "" {
		subject = req.Context["course"]
	}
	if subject == "" {
		subject = req.Context["faculty"]
	}
	if subject == "" {
		subject = "General Studies"
	}
	kind := string(req.Kind)
	if kind == "" {
		kind = "text"
	}
	title := fmt.Sprintf("%s %s %04x", textutil.Capitalize(kind), subject, h.Sum32()&0xffff)
	body := fmt.Sprintf("Generated %s content for %s.", kind, subject)
	return GeneratedText{Text: title + "\n" + body, Model: "stub"}, nil
}
