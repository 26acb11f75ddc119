package generation

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// PromptInput is the data every prompt template sees.
type PromptInput struct {
	Tenant       string
	Faculty      string
	Course       string
	Module       string
	MaterialKind string
	Position     int
	Total        int
}

type promptFile struct {
	Version int                   `yaml:"version"`
	Prompts map[string]promptSpec `yaml:"prompts"`
}

type promptSpec struct {
	System      string   `yaml:"system"`
	User        string   `yaml:"user"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

type compiledPrompt struct {
	system      *template.Template
	user        *template.Template
	maxTokens   int
	temperature *float64
}

// PromptBook renders provider requests for each unit kind.
type PromptBook struct {
	prompts map[Kind]compiledPrompt
}

func DefaultPromptBook() (*PromptBook, error) {
	return ParsePromptBook(defaultPromptsYAML)
}

func ParsePromptBook(raw []byte) (*PromptBook, error) {
	var f promptFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	book := &PromptBook{prompts: map[Kind]compiledPrompt{}}
	for _, kind := range []Kind{KindCourse, KindModule, KindQuiz, KindMaterial} {
		spec, ok := f.Prompts[string(kind)]
		if !ok {
			return nil, fmt.Errorf("missing prompt %q", kind)
		}
		sysT, err := template.New("system").Option("missingkey=zero").Parse(spec.System)
		if err != nil {
			return nil, fmt.Errorf("%s system template parse: %w", kind, err)
		}
		userT, err := template.New("user").Option("missingkey=zero").Parse(spec.User)
		if err != nil {
			return nil, fmt.Errorf("%s user template parse: %w", kind, err)
		}
		book.prompts[kind] = compiledPrompt{
			system:      sysT,
			user:        userT,
			maxTokens:   spec.MaxTokens,
			temperature: spec.Temperature,
		}
	}
	return book, nil
}

func (b *PromptBook) Render(kind Kind, in PromptInput) (Request, error) {
	p, ok := b.prompts[kind]
	if !ok {
		return Request{}, fmt.Errorf("no prompt for %q", kind)
	}
	sys, err := render(p.system, in)
	if err != nil {
		return Request{}, fmt.Errorf("%s system render: %w", kind, err)
	}
	user, err := render(p.user, in)
	if err != nil {
		return Request{}, fmt.Errorf("%s user render: %w", kind, err)
	}
	return Request{
		Kind:        kind,
		System:      sys,
		Prompt:      user,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Context: map[string]string{
			"faculty": in.Faculty,
			"course":  in.Course,
			"module":  in.Module,
		},
	}, nil
}

func render(t *template.Template, in PromptInput) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, in); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// SplitTitle treats the first non-empty line as a title and the rest as body.
func SplitTitle(text, fallback string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback, ""
	}
	first, rest, _ := strings.Cut(text, "\n")
	title := strings.TrimSpace(strings.TrimLeft(first, "#*- "))
	if title == "" {
		title = fallback
	}
	title = textutil.Truncate(title, 200)
	return title, strings.TrimSpace(rest)
}
