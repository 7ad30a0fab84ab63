package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/logger"
	"leave_assessment_backend/pkg/monitoring"
	"leave_assessment_backend/pkg/tracing"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const FallbackProvider = "local-fallback"

// Result 可能失败的调用结果，OrElse 把失败转换为兜底值
type Result[T any] struct {
	Value T
	Err   error
}

func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func Fail[T any](err error) Result[T] { return Result[T]{Err: err} }

// OrElse 失败时返回 fallback(err)
func (r Result[T]) OrElse(fallback func(err error) T) T {
	if r.Err != nil {
		return fallback(r.Err)
	}
	return r.Value
}

type QuestionGenerator struct {
	provider ChatCompleter
	mu       sync.Mutex
	rng      *rand.Rand
}

// NewQuestionGenerator provider 为 nil 时全部使用本地题库；rng 可为 nil
func NewQuestionGenerator(provider ChatCompleter, rng *rand.Rand) *QuestionGenerator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &QuestionGenerator{provider: provider, rng: rng}
}

const mcqSystemPrompt = "You write assessment questions for Computer Science students. Reply with JSON only."

func mcqPrompt(topic string, difficulty model.Difficulty, count int) string {
	return fmt.Sprintf(`Generate %d multiple choice quiz questions about "%s" with %s difficulty level.

For each question, provide:
1. The question text
2. Four options
3. The correct answer (0-3 index)
4. A brief explanation

Format the response as a JSON array like this:
[
  {
    "question": "What is...",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correctAnswer": 0,
    "explanation": "Brief explanation..."
  }
]

Focus on practical knowledge and real-world applications.`, count, topic, difficulty)
}

func codingPrompt(topic string, difficulty model.Difficulty, language string) string {
	return fmt.Sprintf(`Generate a %s level coding question about "%s" for %s.
The program reads from standard input and prints to standard output.

Format as JSON:
{
  "question": "Problem statement...",
  "starterCode": "starter code template",
  "testCases": [
    {"input": "...", "expectedOutput": "..."}
  ]
}
Provide 3-5 test cases.`, difficulty, topic, language)
}

// Generate 返回恰好 count 道选择题；AI 失败时记录日志并改用本地题库
// 只有参数错误才返回 error
func (g *QuestionGenerator) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.Question, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, util.Validation("topic is required")
	}
	if count <= 0 {
		return nil, util.Validation("question count must be positive, got %d", count)
	}

	ctx, span := tracing.Tracer.Start(ctx, "assessment.generate")
	defer span.End()
	span.SetAttributes(attribute.String("topic", topic), attribute.Int("count", count))

	source := "provider"
	questions := g.fromProvider(ctx, topic, difficulty, count).OrElse(func(err error) []model.Question {
		g.recordFailure(string(model.KindMCQ), topic, err)
		source = "fallback"
		return g.Fallback(topic, count)
	})

	if len(questions) != count {
		return nil, fmt.Errorf("%w: produced %d questions, want %d", util.ErrGeneration, len(questions), count)
	}
	span.SetAttributes(attribute.String("source", source))
	monitoring.QuestionsGenerated.WithLabelValues(string(model.KindMCQ), source).Add(float64(count))
	return questions, nil
}

func (g *QuestionGenerator) fromProvider(ctx context.Context, topic string, difficulty model.Difficulty, count int) Result[[]model.Question] {
	if g.provider == nil {
		return Fail[[]model.Question](&GenerationError{Reason: FailureUnavailable, Err: ErrAINotConfigured})
	}
	text, err := g.provider.Chat(ctx, mcqSystemPrompt, mcqPrompt(topic, difficulty, count))
	if err != nil {
		return Fail[[]model.Question](&GenerationError{Reason: FailureUnavailable, Err: err})
	}
	questions, err := ParseGeneratedQuestions(text, count, g.provider.Name())
	if err != nil {
		return Fail[[]model.Question](err)
	}
	return Ok(questions)
}

func (g *QuestionGenerator) recordFailure(kind, topic string, err error) {
	reason := reasonOf(err)
	monitoring.ProviderFailures.WithLabelValues(kind, string(reason)).Inc()
	fields := []zap.Field{zap.String("kind", kind), zap.String("topic", topic), zap.String("reason", string(reason)), zap.Error(err)}
	switch reason {
	case FailureUnavailable:
		logger.Log.Warn("question provider unavailable, using local templates", fields...)
	case FailureMalformed:
		logger.Log.Warn("question provider returned malformed output, using local templates", fields...)
	default:
		logger.Log.Warn("question provider output failed validation, using local templates", fields...)
	}
}

// Fallback 从匹配主题的本地题库循环出题，不会失败
func (g *QuestionGenerator) Fallback(topic string, count int) []model.Question {
	pool := pickPool(topic)
	return lo.Times(count, func(i int) model.Question {
		tpl := pool.Items[i%len(pool.Items)]
		distractors := append([]string(nil), tpl.Distractors...)
		for len(distractors) < 3 {
			distractors = append(distractors, "Incorrect option about "+topic)
		}
		options := append([]string{tpl.Correct}, distractors[:3]...)
		g.shuffle(options)
		return model.Question{
			Text:        tpl.Question,
			Kind:        model.KindMCQ,
			Points:      1,
			Explanation: fmt.Sprintf("Answer: %s.", tpl.Correct),
			MCQ: &model.MCQData{
				Options:      options,
				CorrectIndex: lo.IndexOf(options, tpl.Correct),
			},
			Provenance: model.Provenance{Provider: FallbackProvider, IsFallback: true},
		}
	})
}

func (g *QuestionGenerator) shuffle(options []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
}

// GenerateCoding 生成 count 道带标准输入输出用例的编程题
func (g *QuestionGenerator) GenerateCoding(ctx context.Context, topic string, difficulty model.Difficulty, language string, count int) ([]model.Question, error) {
	topic = strings.TrimSpace(topic)
	language = strings.ToLower(strings.TrimSpace(language))
	if topic == "" {
		return nil, util.Validation("topic is required")
	}
	if count <= 0 {
		return nil, util.Validation("coding question count must be positive, got %d", count)
	}
	if _, ok := LanguageID(language); !ok {
		return nil, util.ErrUnsupportedLanguage
	}

	ctx, span := tracing.Tracer.Start(ctx, "assessment.generate_coding")
	defer span.End()

	questions := make([]model.Question, 0, count)
	for i := 0; i < count; i++ {
		source := "provider"
		q := g.codingFromProvider(ctx, topic, difficulty, language).OrElse(func(err error) model.Question {
			g.recordFailure(string(model.KindCoding), topic, err)
			source = "fallback"
			return g.CodingFallback(language, i)
		})
		monitoring.QuestionsGenerated.WithLabelValues(string(model.KindCoding), source).Inc()
		questions = append(questions, q)
	}
	return questions, nil
}

func (g *QuestionGenerator) codingFromProvider(ctx context.Context, topic string, difficulty model.Difficulty, language string) Result[model.Question] {
	if g.provider == nil {
		return Fail[model.Question](&GenerationError{Reason: FailureUnavailable, Err: ErrAINotConfigured})
	}
	text, err := g.provider.Chat(ctx, mcqSystemPrompt, codingPrompt(topic, difficulty, language))
	if err != nil {
		return Fail[model.Question](&GenerationError{Reason: FailureUnavailable, Err: err})
	}
	q, err := ParseGeneratedCoding(text, language, g.provider.Name())
	if err != nil {
		return Fail[model.Question](err)
	}
	return Ok(q)
}

// CodingFallback 循环取内置编程题库第 i 题
func (g *QuestionGenerator) CodingFallback(language string, i int) model.Question {
	tpl := codingPool[i%len(codingPool)]
	return model.Question{
		Text:   tpl.Question,
		Kind:   model.KindCoding,
		Points: 1,
		Coding: &model.CodingData{
			StarterCode: tpl.starterFor(language),
			Language:    language,
			TestCases:   append([]model.TestCase(nil), tpl.TestCases...),
		},
		Provenance: model.Provenance{Provider: FallbackProvider, IsFallback: true},
	}
}
