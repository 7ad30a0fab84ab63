package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"leave_assessment_backend/internal/config"
	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/repository"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/events"
	"leave_assessment_backend/pkg/logger"
	"leave_assessment_backend/pkg/monitoring"

	"github.com/jinzhu/copier"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type AssessmentService struct {
	Repo      repository.LeaveRepository
	Generator *QuestionGenerator
	Runner    CodeRunner
	Lock      repository.GenerationLock
	Events    events.Publisher
	Config    config.AssessmentConfig
	// 可选，教师查看结果时附带学生测验记录
	QuizHistory QuizHistory

	// 锁被占用时的轮询间隔与次数
	waitInterval time.Duration
	waitRounds   int
	now          func() time.Time
}

func NewAssessmentService(
	repo repository.LeaveRepository,
	generator *QuestionGenerator,
	runner CodeRunner,
	lock repository.GenerationLock,
	publisher events.Publisher,
	cfg config.AssessmentConfig,
) *AssessmentService {
	return &AssessmentService{
		Repo:         repo,
		Generator:    generator,
		Runner:       runner,
		Lock:         lock,
		Events:       publisher,
		Config:       cfg,
		waitInterval: 500 * time.Millisecond,
		waitRounds:   10,
		now:          time.Now,
	}
}

// QuizHistory 提供学生的测验汇总
type QuizHistory interface {
	StudentStats(ctx context.Context, studentID uint) (model.QuizStats, error)
}

// 数量上限与 config.MaxQuestionCount / config.MaxCodingCount 一致
type AttachRequest struct {
	Section     string `json:"section" binding:"required"`
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count" binding:"omitempty,min=1,max=50"`
	CodingCount int    `json:"codingCount" binding:"omitempty,min=0,max=5"`
	Language    string `json:"language"`
}

// PreviewRequest 只生成不保存
type PreviewRequest struct {
	Topic       string `json:"topic" binding:"required"`
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count" binding:"omitempty,min=1,max=50"`
	CodingCount int    `json:"codingCount" binding:"omitempty,min=0,max=5"`
	Language    string `json:"language"`
}

type SubmitRequest struct {
	Answers   []model.Answer `json:"answers"`
	StartedAt *time.Time     `json:"startedAt"`
}

// StudentQuestion 学生看到的题目：不含答案、解析和期望输出
type StudentQuestion struct {
	Index         int                `json:"index"`
	Text          string             `json:"text"`
	Kind          model.QuestionKind `json:"kind"`
	Points        int                `json:"points"`
	Options       []string           `json:"options,omitempty"`
	StarterCode   string             `json:"starterCode,omitempty"`
	Language      string             `json:"language,omitempty"`
	TestCaseCount int                `json:"testCaseCount,omitempty"`
}

type AssessmentOutcome struct {
	Score            float64              `json:"score"`
	Passed           bool                 `json:"passed"`
	EarnedPoints     int                  `json:"earnedPoints"`
	TotalPoints      int                  `json:"totalPoints"`
	PassThreshold    float64              `json:"passThreshold"`
	SubmittedAt      *time.Time           `json:"submittedAt,omitempty"`
	TimeTakenSeconds int                  `json:"timeTakenSeconds"`
	CodingResults    []model.CodingResult `json:"codingResults,omitempty"`
}

type StudentAssessment struct {
	LeaveID       string                `json:"leaveId"`
	State         model.AssessmentState `json:"state"`
	Section       string                `json:"section"`
	Difficulty    model.Difficulty      `json:"difficulty"`
	QuestionCount int                   `json:"questionCount"`
	TotalPoints   int                   `json:"totalPoints"`
	PassThreshold float64               `json:"passThreshold"`
	Questions     []StudentQuestion     `json:"questions"`
	Result        *AssessmentOutcome    `json:"result,omitempty"`
}

type SubmissionResult struct {
	AssessmentOutcome
	Items []GradedItem `json:"items"`
}

type TeacherAssessmentView struct {
	LeaveID    string                `json:"leaveId"`
	StudentID  uint                  `json:"studentId"`
	State      model.AssessmentState `json:"state"`
	Section    string                `json:"section"`
	Difficulty model.Difficulty      `json:"difficulty"`
	Questions  []model.Question      `json:"questions"`
	Answers    []model.Answer        `json:"answers"`
	Items      []GradedItem          `json:"items,omitempty"`
	Result     *AssessmentOutcome    `json:"result,omitempty"`
	QuizStats  *model.QuizStats      `json:"quizStats,omitempty"`
}

func (s *AssessmentService) difficulty(raw string) (model.Difficulty, error) {
	def, err := model.ParseDifficulty(s.Config.DefaultDifficulty, model.DifficultyMedium)
	if err != nil {
		def = model.DifficultyMedium
	}
	d, err := model.ParseDifficulty(raw, def)
	if err != nil {
		return "", util.Validation("%s", err.Error())
	}
	return d, nil
}

// buildQuestionSet 生成选择题，按需追加编程题
func (s *AssessmentService) buildQuestionSet(ctx context.Context, section string, difficulty model.Difficulty, count, codingCount int, language string) ([]model.Question, error) {
	questions, err := s.Generator.Generate(ctx, section, difficulty, count)
	if err != nil {
		return nil, err
	}
	if codingCount > 0 {
		if language == "" {
			language = s.Config.CodingLanguage
		}
		coding, err := s.Generator.GenerateCoding(ctx, section, difficulty, language, codingCount)
		if err != nil {
			return nil, err
		}
		questions = append(questions, coding...)
	}
	return questions, nil
}

// Preview 生成一组题目供教师预览，不写库
func (s *AssessmentService) Preview(ctx context.Context, req PreviewRequest) ([]model.Question, error) {
	difficulty, err := s.difficulty(req.Difficulty)
	if err != nil {
		return nil, err
	}
	count := req.Count
	if count == 0 {
		count = s.Config.QuestionCount
	}
	return s.buildQuestionSet(ctx, req.Topic, difficulty, count, req.CodingCount, req.Language)
}

// Attach 教师为请假生成并锁定题目，只能成功一次
// 之后再调用返回 ErrQuestionSetFrozen 或 ErrAlreadySubmitted
func (s *AssessmentService) Attach(ctx context.Context, leaveID string, req AttachRequest) (*model.LeaveRequest, error) {
	section := strings.TrimSpace(req.Section)
	if section == "" {
		return nil, util.Validation("section is required")
	}
	difficulty, err := s.difficulty(req.Difficulty)
	if err != nil {
		return nil, err
	}
	count := req.Count
	if count == 0 {
		count = s.Config.QuestionCount
	}

	leave, err := s.Repo.FindByID(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	if err := s.attachable(&leave.Assessment); err != nil {
		return nil, err
	}

	questions, err := s.buildQuestionSet(ctx, section, difficulty, count, req.CodingCount, req.Language)
	if err != nil {
		return nil, err
	}

	stored, err := s.Repo.AttachQuestions(ctx, leaveID, section, difficulty, questions)
	if err != nil {
		return nil, err
	}
	if !stored {
		current, err := s.Repo.FindByID(ctx, leaveID)
		if err != nil {
			return nil, err
		}
		if err := s.attachable(&current.Assessment); err != nil {
			return nil, err
		}
		return nil, util.ErrQuestionSetFrozen
	}

	if err := leave.Assessment.Attach(section, difficulty, questions); err != nil {
		return nil, err
	}
	s.publish(ctx, events.AssessmentPrepared, leave, map[string]interface{}{"questionCount": len(questions)})
	return leave, nil
}

func (s *AssessmentService) attachable(spec *model.AssessmentSpec) error {
	if spec.Attempted {
		return util.ErrAlreadySubmitted
	}
	if spec.CanAttach() != nil {
		return util.ErrQuestionSetFrozen
	}
	return nil
}

// FetchForStudent 返回不含答案的题目，首次访问时按需生成
func (s *AssessmentService) FetchForStudent(ctx context.Context, leaveID string, requester model.Requester) (*StudentAssessment, error) {
	leave, err := s.Repo.FindByID(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	if !requester.CanAccess(leave.StudentID) {
		return nil, util.ErrPermissionDenied
	}
	if leave.Assessment.CanFetch() != nil {
		return nil, util.ErrNotEligible
	}

	if !leave.Assessment.Attempted && !leave.Assessment.Materialized() {
		leave, err = s.materialize(ctx, leave)
		if err != nil {
			return nil, err
		}
	}
	return toStudentAssessment(leave)
}

// materialize 持生成锁出题，条件写入后重新读取，所有调用方看到同一套题
func (s *AssessmentService) materialize(ctx context.Context, leave *model.LeaveRequest) (*model.LeaveRequest, error) {
	if s.Lock != nil {
		key := repository.GenerationLockKey(leave.ID)
		token, ok, err := s.Lock.Acquire(ctx, key, s.Config.GenerationLockTTL)
		switch {
		case err != nil:
			logger.Log.Warn("generation lock unavailable, generating without it", zap.String("leaveId", leave.ID), zap.Error(err))
		case !ok:
			if current, err := s.waitForQuestions(ctx, leave.ID); err != nil || current != nil {
				return current, err
			}
		default:
			defer func() {
				if err := s.Lock.Release(context.Background(), key, token); err != nil {
					logger.Log.Warn("release generation lock", zap.String("leaveId", leave.ID), zap.Error(err))
				}
			}()
			// 上一个持锁者可能在本次读取与加锁之间已写入题目
			current, err := s.Repo.FindByID(ctx, leave.ID)
			if err != nil {
				return nil, err
			}
			if current.Assessment.Materialized() || current.Assessment.Attempted {
				return current, nil
			}
			leave = current
		}
	}

	section := leave.Assessment.Section
	if section == "" {
		section = leave.LeaveType
	}
	difficulty, err := s.difficulty(string(leave.Assessment.Difficulty))
	if err != nil {
		return nil, err
	}
	questions, err := s.buildQuestionSet(ctx, section, difficulty, s.Config.QuestionCount, 0, "")
	if err != nil {
		return nil, err
	}
	stored, err := s.Repo.AttachQuestions(ctx, leave.ID, section, difficulty, questions)
	if err != nil {
		return nil, err
	}
	if stored {
		logger.Log.Info("assessment questions generated",
			zap.String("leaveId", leave.ID), zap.String("section", section), zap.Int("count", len(questions)))
	}
	return s.Repo.FindByID(ctx, leave.ID)
}

// waitForQuestions 等待持锁方写入题目；超时返回 nil, nil，由调用方自行生成
func (s *AssessmentService) waitForQuestions(ctx context.Context, leaveID string) (*model.LeaveRequest, error) {
	for i := 0; i < s.waitRounds; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.waitInterval):
		}
		current, err := s.Repo.FindByID(ctx, leaveID)
		if err != nil {
			return nil, err
		}
		if current.Assessment.Materialized() || current.Assessment.Attempted {
			return current, nil
		}
	}
	return nil, nil
}

// toStudentQuestions 去掉答案、解析和期望输出
func toStudentQuestions(source []model.Question) ([]StudentQuestion, error) {
	questions := make([]StudentQuestion, 0, len(source))
	if err := copier.Copy(&questions, source); err != nil {
		return nil, err
	}
	for i, q := range source {
		questions[i].Index = i
		if q.MCQ != nil {
			questions[i].Options = append([]string(nil), q.MCQ.Options...)
		}
		if q.Coding != nil {
			questions[i].StarterCode = q.Coding.StarterCode
			questions[i].Language = q.Coding.Language
			questions[i].TestCaseCount = len(q.Coding.TestCases)
		}
	}
	return questions, nil
}

func toStudentAssessment(leave *model.LeaveRequest) (*StudentAssessment, error) {
	spec := &leave.Assessment
	questions, err := toStudentQuestions(spec.Questions)
	if err != nil {
		return nil, err
	}

	out := &StudentAssessment{
		LeaveID:       leave.ID,
		State:         spec.State(),
		Section:       spec.Section,
		Difficulty:    spec.Difficulty,
		QuestionCount: len(questions),
		TotalPoints:   lo.SumBy([]model.Question(spec.Questions), pointsOf),
		PassThreshold: spec.PassThreshold,
		Questions:     questions,
	}
	if spec.Attempted {
		out.Result = outcomeOf(spec)
	}
	return out, nil
}

func outcomeOf(spec *model.AssessmentSpec) *AssessmentOutcome {
	return &AssessmentOutcome{
		Score:            spec.Score,
		Passed:           spec.Passed,
		EarnedPoints:     spec.EarnedPoints,
		TotalPoints:      spec.TotalPoints,
		PassThreshold:    spec.PassThreshold,
		SubmittedAt:      spec.SubmittedAt,
		TimeTakenSeconds: spec.TimeTakenSeconds,
		CodingResults:    spec.CodingResults,
	}
}

// Submit 按已锁定的题目判分，结果只记录一次
func (s *AssessmentService) Submit(ctx context.Context, leaveID string, requester model.Requester, req SubmitRequest) (*SubmissionResult, error) {
	if len(req.Answers) == 0 {
		return nil, util.Validation("answers are required")
	}

	leave, err := s.Repo.FindByID(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	if requester.UserID != leave.StudentID {
		return nil, util.ErrPermissionDenied
	}
	spec := &leave.Assessment
	switch {
	case spec.Attempted:
		monitoring.Submissions.WithLabelValues("duplicate").Inc()
		return nil, util.ErrAlreadySubmitted
	case !spec.Required:
		return nil, util.ErrNotEligible
	case !spec.Materialized():
		return nil, util.ErrQuestionsNotReady
	}

	questions := []model.Question(spec.Questions)
	codingResults, codingPassed := runCodingAnswers(ctx, s.Runner, questions, req.Answers)
	grade := Grade(questions, req.Answers, GradeOptions{
		PassThreshold: s.Config.PassThreshold,
		CodingPassed:  codingPassed,
	})

	now := s.now()
	sub := model.Submission{
		Answers:       req.Answers,
		CodingResults: codingResults,
		Score:         grade.Percentage,
		Passed:        grade.Passed,
		EarnedPoints:  grade.EarnedPoints,
		TotalPoints:   grade.TotalPoints,
		PassThreshold: s.Config.PassThreshold,
		StartedAt:     req.StartedAt,
		SubmittedAt:   now,
	}
	if req.StartedAt != nil && req.StartedAt.Before(now) {
		sub.TimeTakenSeconds = int(now.Sub(*req.StartedAt).Seconds())
	}
	if err := spec.ApplySubmission(sub); err != nil {
		return nil, util.ErrAlreadySubmitted
	}

	if err := s.Repo.MarkSubmitted(ctx, leaveID, sub); err != nil {
		if errors.Is(err, util.ErrAlreadySubmitted) {
			monitoring.Submissions.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	outcome := "failed"
	if grade.Passed {
		outcome = "passed"
	}
	monitoring.Submissions.WithLabelValues(outcome).Inc()
	logger.Log.Info("assessment submitted",
		zap.String("leaveId", leaveID),
		zap.Uint("studentId", leave.StudentID),
		zap.Float64("score", grade.Percentage),
		zap.Bool("passed", grade.Passed))
	s.publish(ctx, events.AssessmentGraded, leave, map[string]interface{}{
		"score":  grade.Percentage,
		"passed": grade.Passed,
	})

	return &SubmissionResult{AssessmentOutcome: *outcomeOf(spec), Items: grade.Items}, nil
}

// runCodingAnswers 对带测试用例的编程题执行每题第一份答案
func runCodingAnswers(ctx context.Context, runner CodeRunner, questions []model.Question, answers []model.Answer) ([]model.CodingResult, map[int]bool) {
	passed := map[int]bool{}
	var results []model.CodingResult

	for _, a := range lo.UniqBy(answers, func(a model.Answer) int { return a.QuestionIndex }) {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(questions) {
			continue
		}
		q := questions[a.QuestionIndex]
		if q.Kind != model.KindCoding || q.Coding == nil || len(q.Coding.TestCases) == 0 {
			continue
		}
		if a.Code == nil || strings.TrimSpace(*a.Code) == "" {
			continue
		}

		language := q.Coding.Language
		if a.Language != nil && *a.Language != "" {
			language = *a.Language
		}
		result := model.CodingResult{QuestionIndex: a.QuestionIndex, TotalCount: len(q.Coding.TestCases)}
		if runner == nil {
			result.Error = "code execution is not configured"
			results = append(results, result)
			continue
		}
		report, err := runner.RunTestCases(ctx, *a.Code, language, q.Coding.TestCases)
		if err != nil {
			logger.Log.Warn("coding answer could not be executed",
				zap.Int("questionIndex", a.QuestionIndex), zap.String("language", language), zap.Error(err))
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.PassedCount = report.PassedCount
		result.TotalCount = report.TotalCount
		result.AllPassed = report.AllPassed
		passed[a.QuestionIndex] = report.AllPassed
		results = append(results, result)
	}
	return results, passed
}

// GetResultForTeacher 教师查看完整题目、答案及逐题判分
func (s *AssessmentService) GetResultForTeacher(ctx context.Context, leaveID string) (*TeacherAssessmentView, error) {
	leave, err := s.Repo.FindByID(ctx, leaveID)
	if err != nil {
		return nil, err
	}
	spec := &leave.Assessment
	if !spec.Required {
		return nil, util.ErrNotEligible
	}

	view := &TeacherAssessmentView{
		LeaveID:    leave.ID,
		StudentID:  leave.StudentID,
		State:      spec.State(),
		Section:    spec.Section,
		Difficulty: spec.Difficulty,
		Questions:  spec.Questions,
		Answers:    spec.SubmittedAnswers,
	}
	if spec.Attempted {
		codingPassed := map[int]bool{}
		for _, r := range spec.CodingResults {
			codingPassed[r.QuestionIndex] = r.AllPassed
		}
		view.Items = Grade(spec.Questions, spec.SubmittedAnswers, GradeOptions{
			PassThreshold: spec.PassThreshold,
			CodingPassed:  codingPassed,
		}).Items
		view.Result = outcomeOf(spec)
	}
	if s.QuizHistory != nil {
		stats, err := s.QuizHistory.StudentStats(ctx, leave.StudentID)
		if err != nil {
			logger.Log.Warn("load quiz history", zap.Uint("studentId", leave.StudentID), zap.Error(err))
		} else {
			view.QuizStats = &stats
		}
	}
	return view, nil
}

func (s *AssessmentService) publish(ctx context.Context, eventType string, leave *model.LeaveRequest, data interface{}) {
	if s.Events == nil {
		return
	}
	err := s.Events.Publish(ctx, events.Event{
		Type:       eventType,
		LeaveID:    leave.ID,
		StudentID:  leave.StudentID,
		OccurredAt: s.now(),
		Data:       data,
	})
	if err != nil {
		logger.Log.Warn("publish event failed", zap.String("type", eventType), zap.String("leaveId", leave.ID), zap.Error(err))
	}
}
