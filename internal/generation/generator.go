package generation

import "context"

// Kind names the curriculum unit a request produces.
type Kind string

const (
	KindCourse   Kind = "course"
	KindModule   Kind = "module"
	KindQuiz     Kind = "quiz"
	KindMaterial Kind = "material"
)

type Request struct {
	Kind        Kind
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
	// Context is free-form metadata for logs and stub output.
	Context map[string]string
}

type GeneratedText struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator performs exactly one provider call per Generate. Failures are
// *ProviderTransientError or *ProviderFatalError.
type Generator interface {
	Generate(ctx context.Context, req Request) (GeneratedText, error)
	Name() string
}
