package curriculum_build

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/generation"
)

// LeafInput is the module a quiz or material hangs off.
type LeafInput struct {
	Faculty *types.Faculty
	Course  *types.Course
	Module  *types.Module
}

// LeafSource builds the unsaved quiz and material entities for a module.
// Scope fields (tenant, module, run) are set by the walker.
type LeafSource interface {
	Quiz(ctx context.Context, in LeafInput) (*types.Quiz, error)
	Material(ctx context.Context, in LeafInput, position, total int) (*types.LearningMaterial, error)
}

var materialKinds = []string{types.MaterialKindReading, types.MaterialKindExercise, types.MaterialKindSummary}

func materialKind(position int) string {
	return materialKinds[(position-1)%len(materialKinds)]
}

type placeholderLeaves struct {
	questions int
}

// NewPlaceholderLeaves fills quizzes and materials with fixed scaffolding
// text and makes no provider calls.
func NewPlaceholderLeaves(questions int) LeafSource {
	return &placeholderLeaves{questions: questions}
}

func (l *placeholderLeaves) Quiz(_ context.Context, in LeafInput) (*types.Quiz, error) {
	return &types.Quiz{
		Title:     fmt.Sprintf("%s: Check your understanding", in.Module.Title),
		Questions: placeholderQuestions(in.Module.Title, 1, l.questions),
	}, nil
}

func (l *placeholderLeaves) Material(_ context.Context, in LeafInput, position, total int) (*types.LearningMaterial, error) {
	kind := materialKind(position)
	return &types.LearningMaterial{
		Kind:    kind,
		Title:   fmt.Sprintf("%s: %s %d", in.Module.Title, strings.ToUpper(kind[:1])+kind[1:], position),
		Content: fmt.Sprintf("Placeholder %s material for %s.", kind, in.Module.Title),
	}, nil
}

func placeholderQuestions(topic string, from, to int) []types.QuizQuestion {
	var out []types.QuizQuestion
	options, _ := json.Marshal([]string{"Option A", "Option B", "Option C", "Option D"})
	for i := from; i <= to; i++ {
		out = append(out, types.QuizQuestion{
			Position:    i,
			Prompt:      fmt.Sprintf("Question %d about %s", i, topic),
			Options:     datatypes.JSON(options),
			AnswerIndex: 0,
		})
	}
	return out
}

// GenerateFunc is one throttled, retried provider call.
type GenerateFunc func(ctx context.Context, req generation.Request) (generation.GeneratedText, error)

type generatedLeaves struct {
	generate  GenerateFunc
	prompts   *generation.PromptBook
	questions int
}

// NewGeneratedLeaves asks the provider for each quiz and material.
func NewGeneratedLeaves(generate GenerateFunc, prompts *generation.PromptBook, questions int) LeafSource {
	return &generatedLeaves{generate: generate, prompts: prompts, questions: questions}
}

func (l *generatedLeaves) Quiz(ctx context.Context, in LeafInput) (*types.Quiz, error) {
	req, err := l.prompts.Render(generation.KindQuiz, generation.PromptInput{
		Faculty: in.Faculty.Name,
		Course:  in.Course.Title,
		Module:  in.Module.Title,
		Total:   l.questions,
	})
	if err != nil {
		return nil, &generation.ProviderFatalError{Provider: "prompts", Err: err}
	}
	out, err := l.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	questions := parseQuestions(out.Text, l.questions)
	if len(questions) < l.questions {
		questions = append(questions, placeholderQuestions(in.Module.Title, len(questions)+1, l.questions)...)
	}
	return &types.Quiz{
		Title:     fmt.Sprintf("%s: Check your understanding", in.Module.Title),
		Questions: questions,
	}, nil
}

func (l *generatedLeaves) Material(ctx context.Context, in LeafInput, position, total int) (*types.LearningMaterial, error) {
	kind := materialKind(position)
	req, err := l.prompts.Render(generation.KindMaterial, generation.PromptInput{
		Faculty:      in.Faculty.Name,
		Course:       in.Course.Title,
		Module:       in.Module.Title,
		MaterialKind: kind,
		Position:     position,
		Total:        total,
	})
	if err != nil {
		return nil, &generation.ProviderFatalError{Provider: "prompts", Err: err}
	}
	out, err := l.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	title, body := generation.SplitTitle(out.Text, fmt.Sprintf("%s %d", kind, position))
	return &types.LearningMaterial{Kind: kind, Title: title, Content: body}, nil
}

// parseQuestions reads "question | a | b | c | answer" lines.
func parseQuestions(text string, limit int) []types.QuizQuestion {
	var out []types.QuizQuestion
	for _, line := range strings.Split(text, "\n") {
		if len(out) >= limit {
			break
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		prompt := strings.TrimLeft(parts[0], "0123456789.) ")
		if prompt == "" {
			continue
		}
		options := parts[1:]
		answer := 0
		if idx, err := strconv.Atoi(options[len(options)-1]); err == nil && len(options) > 2 {
			options = options[:len(options)-1]
			if idx >= 0 && idx < len(options) {
				answer = idx
			}
		}
		raw, _ := json.Marshal(options)
		out = append(out, types.QuizQuestion{
			Position:    len(out) + 1,
			Prompt:      prompt,
			Options:     datatypes.JSON(raw),
			AnswerIndex: answer,
		})
	}
	return out
}
