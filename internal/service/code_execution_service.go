package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leave_assessment_backend/internal/config"
	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/logger"
	"leave_assessment_backend/pkg/monitoring"
	"leave_assessment_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Judge0 语言 ID
var languageIDs = map[string]int{
	"javascript": 63,
	"python":     71,
	"java":       62,
	"c":          50,
	"cpp":        54,
	"csharp":     51,
	"go":         60,
	"ruby":       72,
	"php":        68,
	"swift":      83,
	"kotlin":     78,
	"rust":       73,
	"typescript": 74,
	"sql":        82,
}

// LanguageID 语言名（不区分大小写）转沙箱 ID
func LanguageID(language string) (int, bool) {
	id, ok := languageIDs[strings.ToLower(strings.TrimSpace(language))]
	return id, ok
}

const (
	statusInQueue    = "In Queue"
	statusProcessing = "Processing"
)

type ExecutionResult struct {
	Status        string `json:"status"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compileOutput"`
	Time          string `json:"time"`
	Memory        int    `json:"memory"`
	ExitCode      *int   `json:"exitCode,omitempty"`
}

type TestCaseResult struct {
	Index          int    `json:"testCase"`
	Passed         bool   `json:"passed"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Time           string `json:"time,omitempty"`
	Memory         int    `json:"memory,omitempty"`
	Error          string `json:"error,omitempty"`
}

type TestRunReport struct {
	PassedCount int              `json:"passedCount"`
	TotalCount  int              `json:"totalCount"`
	AllPassed   bool             `json:"allPassed"`
	Results     []TestCaseResult `json:"results"`
}

type SyntaxReport struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CodeRunner 评估与测验判分所需的沙箱能力
type CodeRunner interface {
	RunTestCases(ctx context.Context, code, language string, cases []model.TestCase) (*TestRunReport, error)
}

type CodeExecutionService struct {
	config  config.Judge0Config
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewCodeExecutionService(cfg config.Judge0Config) *CodeExecutionService {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.PollRetries <= 0 {
		cfg.PollRetries = 10
	}
	return &CodeExecutionService{
		config:  cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (s *CodeExecutionService) rapidAPI() bool {
	return strings.Contains(s.config.URL, "rapidapi") || strings.Contains(s.config.Host, "rapidapi")
}

func (s *CodeExecutionService) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.rapidAPI() {
		if s.config.APIKey == "" {
			return nil, errors.New("judge0 API key not configured for RapidAPI-hosted sandbox")
		}
		req.Header.Set("X-RapidAPI-Key", s.config.APIKey)
		req.Header.Set("X-RapidAPI-Host", s.config.Host)
	}
	return req, nil
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionResponse struct {
	Token  string `json:"token"`
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	ExitCode      *int    `json:"exit_code"`
	Message       string  `json:"message"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *CodeExecutionService) do(req *http.Request, out *submissionResponse) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return util.Upstream("code execution service unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return util.Upstream("read code execution response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return util.Upstream("code execution service error",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return util.Upstream("decode code execution response", err)
	}
	return nil
}

func (s *CodeExecutionService) submit(ctx context.Context, code string, languageID int, stdin string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	payload, err := json.Marshal(submissionRequest{SourceCode: code, LanguageID: languageID, Stdin: stdin})
	if err != nil {
		return "", err
	}
	query := url.Values{"base64_encoded": {"false"}, "wait": {"false"}}
	req, err := s.newRequest(ctx, http.MethodPost, "/submissions", query, bytes.NewReader(payload))
	if err != nil {
		return "", util.Upstream("build submission", err)
	}
	var out submissionResponse
	if err := s.do(req, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", util.Upstream("code execution service returned no token", errors.New(out.Message))
	}
	return out.Token, nil
}

func (s *CodeExecutionService) fetch(ctx context.Context, token string) (*submissionResponse, error) {
	query := url.Values{"base64_encoded": {"false"}}
	req, err := s.newRequest(ctx, http.MethodGet, "/submissions/"+url.PathEscape(token), query, nil)
	if err != nil {
		return nil, util.Upstream("build result request", err)
	}
	var out submissionResponse
	if err := s.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run 提交一次代码并轮询结果，轮询次数用尽返回 ErrExecutionTimeout
func (s *CodeExecutionService) Run(ctx context.Context, code, language, stdin string) (*ExecutionResult, error) {
	languageID, ok := LanguageID(language)
	if !ok {
		return nil, util.ErrUnsupportedLanguage
	}

	ctx, span := tracing.Tracer.Start(ctx, "judge.run")
	defer span.End()
	span.SetAttributes(attribute.String("language", language))

	start := time.Now()
	result, err := s.run(ctx, code, languageID, stdin)
	if errors.Is(err, context.DeadlineExceeded) {
		err = util.ErrExecutionTimeout
	}
	status := "ok"
	switch {
	case errors.Is(err, util.ErrExecutionTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
		span.RecordError(err)
	}
	monitoring.JudgeExecutions.WithLabelValues(strings.ToLower(language), status).Inc()
	monitoring.JudgeLatency.WithLabelValues(strings.ToLower(language)).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Log.Warn("code execution failed", zap.String("language", language), zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (s *CodeExecutionService) run(ctx context.Context, code string, languageID int, stdin string) (*ExecutionResult, error) {
	token, err := s.submit(ctx, code, languageID, stdin)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.config.PollRetries; attempt++ {
		timer := time.NewTimer(s.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		out, err := s.fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		if out.Status.Description == statusInQueue || out.Status.Description == statusProcessing {
			continue
		}
		result := &ExecutionResult{
			Status:        out.Status.Description,
			Stdout:        deref(out.Stdout),
			Stderr:        deref(out.Stderr),
			CompileOutput: deref(out.CompileOutput),
			Time:          deref(out.Time),
			ExitCode:      out.ExitCode,
		}
		if out.Memory != nil {
			result.Memory = *out.Memory
		}
		return result, nil
	}
	return nil, util.ErrExecutionTimeout
}

// RunTestCases 逐个用例顺序执行；单个用例失败只记录在结果里
// 只有不支持的语言会让整批失败
func (s *CodeExecutionService) RunTestCases(ctx context.Context, code, language string, cases []model.TestCase) (*TestRunReport, error) {
	if _, ok := LanguageID(language); !ok {
		return nil, util.ErrUnsupportedLanguage
	}

	report := &TestRunReport{Results: make([]TestCaseResult, 0, len(cases))}
	for i, tc := range cases {
		expected := strings.TrimSpace(tc.ExpectedOutput)
		res := TestCaseResult{Index: i + 1, Input: tc.Input, ExpectedOutput: expected}

		out, err := s.Run(ctx, code, language, tc.Input)
		if err != nil {
			res.Error = err.Error()
			report.Results = append(report.Results, res)
			continue
		}
		res.ActualOutput = strings.TrimSpace(out.Stdout)
		res.Passed = res.ActualOutput == expected
		res.Time = out.Time
		res.Memory = out.Memory
		if !res.Passed && out.CompileOutput != "" {
			res.Error = out.CompileOutput
		}
		report.Results = append(report.Results, res)
	}

	for _, r := range report.Results {
		if r.Passed {
			report.PassedCount++
		}
	}
	report.TotalCount = len(report.Results)
	report.AllPassed = report.TotalCount > 0 && report.PassedCount == report.TotalCount
	return report, nil
}

// ValidateSyntax 无输入运行一次，有编译输出即视为语法错误
func (s *CodeExecutionService) ValidateSyntax(ctx context.Context, code, language string) (*SyntaxReport, error) {
	out, err := s.Run(ctx, code, language, "")
	if err != nil {
		return nil, err
	}
	if out.CompileOutput != "" {
		return &SyntaxReport{Valid: false, Message: "Syntax Error", Details: out.CompileOutput}, nil
	}
	return &SyntaxReport{Valid: true, Message: "Code syntax is valid"}, nil
}
