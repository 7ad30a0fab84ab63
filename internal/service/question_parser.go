package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"leave_assessment_backend/internal/model"
)

// FailureReason AI 出题失败原因
type FailureReason string

const (
	FailureUnavailable  FailureReason = "unavailable"
	FailureMalformed    FailureReason = "malformed"
	FailureInvalidShape FailureReason = "invalid_shape"
)

// GenerationError 带分类的 AI 出题错误
type GenerationError struct {
	Reason FailureReason
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("question provider %s: %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func reasonOf(err error) FailureReason {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Reason
	}
	return FailureUnavailable
}

var errNoJSON = errors.New("no JSON payload found")

// ExtractJSONPayload 从 AI 回复中提取 JSON，支持代码块包裹或夹在文字中
func ExtractJSONPayload(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errNoJSON
	}

	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return nonEmpty(strings.TrimSpace(rest))
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		// 去掉 ```JSON、```javascript 这类语言标记
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
			rest = rest[nl+1:]
		}
		return nonEmpty(strings.TrimSpace(rest))
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", errNoJSON
	}
	closer := byte(']')
	if text[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(text, closer)
	if end < start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

func nonEmpty(s string) (string, error) {
	if s == "" {
		return "", errNoJSON
	}
	return s, nil
}

// DecodeProviderJSON 提取并解析到 v
func DecodeProviderJSON(text string, v interface{}) error {
	payload, err := ExtractJSONPayload(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), v)
}

type generatedMCQ struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Points        int      `json:"points"`
}

// ParseGeneratedQuestions 解析出恰好 count 道选择题
// 非 JSON 为 FailureMalformed；结构不符或数量不足为 FailureInvalidShape
func ParseGeneratedQuestions(text string, count int, provider string) ([]model.Question, error) {
	var items []generatedMCQ
	if err := DecodeProviderJSON(text, &items); err != nil {
		return nil, &GenerationError{Reason: FailureMalformed, Err: err}
	}
	if len(items) < count {
		return nil, &GenerationError{
			Reason: FailureInvalidShape,
			Err:    fmt.Errorf("provider returned %d questions, need %d", len(items), count),
		}
	}

	questions := make([]model.Question, 0, count)
	for i, item := range items[:count] {
		q, err := item.toQuestion(provider)
		if err != nil {
			return nil, &GenerationError{Reason: FailureInvalidShape, Err: fmt.Errorf("item %d: %w", i, err)}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (g generatedMCQ) toQuestion(provider string) (model.Question, error) {
	if g.CorrectAnswer == nil {
		return model.Question{}, errors.New("missing correctAnswer")
	}
	points := g.Points
	if points < 1 {
		points = 1
	}
	options := make([]string, len(g.Options))
	for i, o := range g.Options {
		options[i] = strings.TrimSpace(o)
	}
	q := model.Question{
		Text:        strings.TrimSpace(g.Question),
		Kind:        model.KindMCQ,
		Points:      points,
		Explanation: g.Explanation,
		MCQ:         &model.MCQData{Options: options, CorrectIndex: *g.CorrectAnswer},
		Provenance:  model.Provenance{Provider: provider},
	}
	return q, q.Validate()
}

type generatedCoding struct {
	Question    string `json:"question"`
	StarterCode string `json:"starterCode"`
	TestCases   []struct {
		Input          string `json:"input"`
		ExpectedOutput string `json:"expectedOutput"`
	} `json:"testCases"`
	Points int `json:"points"`
}

// ParseGeneratedCoding 解析一道带测试用例的编程题
func ParseGeneratedCoding(text, language, provider string) (model.Question, error) {
	var item generatedCoding
	if err := DecodeProviderJSON(text, &item); err != nil {
		return model.Question{}, &GenerationError{Reason: FailureMalformed, Err: err}
	}
	if len(item.TestCases) == 0 {
		return model.Question{}, &GenerationError{Reason: FailureInvalidShape, Err: errors.New("coding question has no test cases")}
	}
	points := item.Points
	if points < 1 {
		points = 1
	}
	cases := make([]model.TestCase, len(item.TestCases))
	for i, tc := range item.TestCases {
		cases[i] = model.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput}
	}
	q := model.Question{
		Text:   strings.TrimSpace(item.Question),
		Kind:   model.KindCoding,
		Points: points,
		Coding: &model.CodingData{
			StarterCode: item.StarterCode,
			Language:    language,
			TestCases:   cases,
		},
		Provenance: model.Provenance{Provider: provider},
	}
	if err := q.Validate(); err != nil {
		return model.Question{}, &GenerationError{Reason: FailureInvalidShape, Err: err}
	}
	return q, nil
}
