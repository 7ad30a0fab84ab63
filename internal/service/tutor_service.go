package service

import (
	"context"
	"fmt"
	"strings"

	"leave_assessment_backend/internal/util"
)

const tutorSystemPrompt = "You are a helpful programming instructor. Reply with JSON only."

type CodeEvaluation struct {
	Correctness   int      `json:"correctness"`
	CodeQuality   int      `json:"codeQuality"`
	BestPractices int      `json:"bestPractices"`
	OverallScore  int      `json:"overallScore"`
	Passed        bool     `json:"passed"`
	Feedback      string   `json:"feedback"`
	Strengths     []string `json:"strengths"`
	Improvements  []string `json:"improvements"`
}

type CodeHints struct {
	Hints          []string `json:"hints"`
	Approach       string   `json:"approach"`
	TimeComplexity string   `json:"timeComplexity"`
}

type CodeExplanation struct {
	Purpose    string   `json:"purpose"`
	Steps      []string `json:"steps"`
	Concepts   []string `json:"concepts"`
	Complexity struct {
		Time  string `json:"time"`
		Space string `json:"space"`
	} `json:"complexity"`
}

// TutorService AI 代码点评、提示与讲解；AI 失败一律返回上游错误，没有本地兜底
type TutorService struct {
	provider ChatCompleter
}

func NewTutorService(provider ChatCompleter) *TutorService {
	return &TutorService{provider: provider}
}

func (s *TutorService) ask(ctx context.Context, prompt string, out interface{}) error {
	if s.provider == nil {
		return util.Upstream("AI tutor unavailable", ErrAINotConfigured)
	}
	text, err := s.provider.Chat(ctx, tutorSystemPrompt, prompt)
	if err != nil {
		return util.Upstream("AI tutor unavailable", err)
	}
	if err := DecodeProviderJSON(text, out); err != nil {
		return util.Upstream("AI tutor returned an unreadable answer", err)
	}
	return nil
}

func (s *TutorService) EvaluateCode(ctx context.Context, question, code, language, expectedOutput string) (*CodeEvaluation, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(code) == "" || strings.TrimSpace(language) == "" {
		return nil, util.Validation("question, code and language are required")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate this coding solution.\n\nQuestion: %s\n\nLanguage: %s\n\nStudent's code:\n```%s\n%s\n```\n\n",
		question, language, strings.ToLower(language), code)
	if expectedOutput != "" {
		fmt.Fprintf(&b, "Expected output: %s\n\n", expectedOutput)
	}
	b.WriteString(`Score correctness, code quality and best practices from 0 to 100, give an overall score
and pass if the overall score is at least 60. Format response as JSON:
{
  "correctness": 85,
  "codeQuality": 80,
  "bestPractices": 75,
  "overallScore": 80,
  "passed": true,
  "feedback": "Detailed feedback...",
  "strengths": ["Point 1"],
  "improvements": ["Suggestion 1"]
}`)

	var eval CodeEvaluation
	if err := s.ask(ctx, b.String(), &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

func (s *TutorService) Hints(ctx context.Context, question, code string) (*CodeHints, error) {
	if strings.TrimSpace(question) == "" {
		return nil, util.Validation("question is required")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Provide hints for this problem.\n\nQuestion: %s\n\n", question)
	if code != "" {
		fmt.Fprintf(&b, "Student's current attempt:\n```\n%s\n```\n\n", code)
	}
	b.WriteString(`Give 3 progressive hints, from a high-level approach to an implementation tip, without
the complete solution. Format as JSON:
{
  "hints": ["Hint 1...", "Hint 2...", "Hint 3..."],
  "approach": "General approach description",
  "timeComplexity": "Expected time complexity"
}`)

	var hints CodeHints
	if err := s.ask(ctx, b.String(), &hints); err != nil {
		return nil, err
	}
	return &hints, nil
}

func (s *TutorService) Explain(ctx context.Context, code, language string) (*CodeExplanation, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(language) == "" {
		return nil, util.Validation("code and language are required")
	}
	prompt := fmt.Sprintf("Explain this %s code in simple terms for a student:\n\n```%s\n%s\n```\n\n", language, strings.ToLower(language), code) +
		`Format as JSON:
{
  "purpose": "What this code does...",
  "steps": ["Step 1...", "Step 2..."],
  "concepts": ["Concept 1"],
  "complexity": {"time": "O(n)", "space": "O(1)"}
}`

	var explanation CodeExplanation
	if err := s.ask(ctx, prompt, &explanation); err != nil {
		return nil, err
	}
	return &explanation, nil
}
