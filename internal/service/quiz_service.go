package service

import (
	"context"
	"math"
	"strings"
	"time"

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

const (
	quizPassedMessage = "Congratulations! You passed!"
	quizFailedMessage = "Quiz completed. Keep practicing!"
)

// QuizService 独立测验：教师维护题目，学生每个测验只能作答一次
type QuizService struct {
	Repo   repository.QuizRepository
	Runner CodeRunner
	Events events.Publisher

	now func() time.Time
}

func NewQuizService(repo repository.QuizRepository, runner CodeRunner, publisher events.Publisher) *QuizService {
	return &QuizService{Repo: repo, Runner: runner, Events: publisher, now: time.Now}
}

type QuizInput struct {
	Title        string           `json:"title" binding:"required"`
	Description  string           `json:"description"`
	Category     string           `json:"category"`
	Class        string           `json:"class"`
	Subject      string           `json:"subject"`
	Difficulty   string           `json:"difficulty"`
	Questions    []model.Question `json:"questions" binding:"required"`
	Duration     int              `json:"duration"`
	PassingScore float64          `json:"passingScore"`
	IsActive     *bool            `json:"isActive"`
}

// StudentQuiz 学生视角，不含答案
type StudentQuiz struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	Class         string            `json:"class"`
	Subject       string            `json:"subject"`
	Difficulty    model.Difficulty  `json:"difficulty"`
	Duration      int               `json:"duration"`
	PassingScore  float64           `json:"passingScore"`
	QuestionCount int               `json:"questionCount"`
	TotalPoints   int               `json:"totalPoints"`
	CreatedAt     time.Time         `json:"createdAt"`
	Questions     []StudentQuestion `json:"questions,omitempty"`
}

type StudentQuizDetail struct {
	StudentQuiz
	HasAttempted bool               `json:"hasAttempted"`
	LastAttempt  *model.QuizAttempt `json:"lastAttempt,omitempty"`
}

type QuizSubmission struct {
	Message string             `json:"message"`
	Attempt *model.QuizAttempt `json:"attempt"`
	Items   []GradedItem       `json:"items"`
}

type MyQuizAttempts struct {
	Attempts []model.QuizAttempt `json:"attempts"`
	Stats    model.QuizStats     `json:"stats"`
}

// QuizResult 学生查看已作答测验，含正确答案与逐题判分
type QuizResult struct {
	QuizID    string             `json:"quizId"`
	Title     string             `json:"title"`
	Questions []model.Question   `json:"questions"`
	Attempt   *model.QuizAttempt `json:"attempt"`
	Items     []GradedItem       `json:"items"`
}

type TeacherQuiz struct {
	model.Quiz
	QuestionCount int     `json:"questionCount"`
	AttemptCount  int64   `json:"attemptCount"`
	AverageScore  float64 `json:"averageScore"`
}

func (s *QuizService) fromInput(quiz *model.Quiz, in QuizInput) error {
	difficulty, err := model.ParseDifficulty(in.Difficulty, model.DifficultyMedium)
	if err != nil {
		return util.Validation("%s", err.Error())
	}
	quiz.Title = strings.TrimSpace(in.Title)
	quiz.Description = in.Description
	quiz.Category = model.QuizCategory(in.Category)
	quiz.ClassName = in.Class
	quiz.Subject = in.Subject
	quiz.Difficulty = difficulty
	quiz.Questions = lo.Map(in.Questions, func(q model.Question, _ int) model.Question {
		if q.Points < 1 {
			q.Points = 1
		}
		return q
	})
	quiz.DurationMinutes = in.Duration
	quiz.PassingScore = in.PassingScore
	if in.IsActive != nil {
		quiz.IsActive = *in.IsActive
	}
	quiz.ApplyDefaults()
	if err := quiz.Validate(); err != nil {
		return util.Validation("%s", err.Error())
	}
	return nil
}

// Create 教师创建测验
func (s *QuizService) Create(ctx context.Context, teacherID uint, in QuizInput) (*model.Quiz, error) {
	quiz := &model.Quiz{CreatedBy: teacherID, IsActive: true}
	if err := s.fromInput(quiz, in); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	logger.Log.Info("quiz created", zap.String("quizId", quiz.ID), zap.Uint("teacherId", teacherID), zap.Int("questions", len(quiz.Questions)))
	return quiz, nil
}

func (s *QuizService) Update(ctx context.Context, id string, in QuizInput) (*model.Quiz, error) {
	quiz, err := s.Repo.FindQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fromInput(quiz, in); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) Delete(ctx context.Context, id string) error {
	if err := s.Repo.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	logger.Log.Info("quiz deleted", zap.String("quizId", id))
	return nil
}

// ListForTeacher 返回全部测验及作答人数、平均分
func (s *QuizService) ListForTeacher(ctx context.Context) ([]TeacherQuiz, error) {
	quizzes, err := s.Repo.ListQuizzes(ctx, false)
	if err != nil {
		return nil, err
	}
	summaries, err := s.Repo.SummarizeByQuiz(ctx, lo.Map(quizzes, func(q model.Quiz, _ int) string { return q.ID }))
	if err != nil {
		return nil, err
	}
	return lo.Map(quizzes, func(q model.Quiz, _ int) TeacherQuiz {
		summary := summaries[q.ID]
		return TeacherQuiz{
			Quiz:          q,
			QuestionCount: len(q.Questions),
			AttemptCount:  summary.AttemptCount,
			AverageScore:  roundScore(summary.AverageScore),
		}
	}), nil
}

func toStudentQuiz(q *model.Quiz, withQuestions bool) (StudentQuiz, error) {
	var out StudentQuiz
	if err := copier.Copy(&out, q); err != nil {
		return out, err
	}
	out.Category = string(q.Category)
	out.Class = q.ClassName
	out.Duration = q.DurationMinutes
	out.QuestionCount = len(q.Questions)
	out.TotalPoints = lo.SumBy([]model.Question(q.Questions), pointsOf)
	out.Questions = nil
	if withQuestions {
		questions, err := toStudentQuestions(q.Questions)
		if err != nil {
			return out, err
		}
		out.Questions = questions
	}
	return out, nil
}

// ListForStudent 只返回启用的测验，按创建时间倒序
func (s *QuizService) ListForStudent(ctx context.Context) ([]StudentQuiz, error) {
	quizzes, err := s.Repo.ListQuizzes(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]StudentQuiz, 0, len(quizzes))
	for i := range quizzes {
		sq, err := toStudentQuiz(&quizzes[i], false)
		if err != nil {
			return nil, err
		}
		out = append(out, sq)
	}
	return out, nil
}

func (s *QuizService) GetForStudent(ctx context.Context, id string, studentID uint) (*StudentQuizDetail, error) {
	quiz, err := s.Repo.FindQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	sq, err := toStudentQuiz(quiz, true)
	if err != nil {
		return nil, err
	}
	detail := &StudentQuizDetail{StudentQuiz: sq}
	attempt, err := s.Repo.FindAttempt(ctx, studentID, id)
	switch {
	case err == nil:
		detail.HasAttempted = true
		detail.LastAttempt = attempt
	case util.KindOf(err) != util.KindNotFound:
		return nil, err
	}
	return detail, nil
}

// Submit 判分并保存作答记录；重复提交由唯一索引拒绝
func (s *QuizService) Submit(ctx context.Context, id string, studentID uint, req SubmitRequest) (*QuizSubmission, error) {
	if len(req.Answers) == 0 {
		return nil, util.Validation("answers are required")
	}
	quiz, err := s.Repo.FindQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quiz.IsActive {
		return nil, util.ErrQuizNotFound
	}
	if _, err := s.Repo.FindAttempt(ctx, studentID, id); err == nil {
		monitoring.Submissions.WithLabelValues("duplicate").Inc()
		return nil, util.ErrQuizAlreadyAttempted
	} else if util.KindOf(err) != util.KindNotFound {
		return nil, err
	}

	questions := []model.Question(quiz.Questions)
	codingResults, codingPassed := runCodingAnswers(ctx, s.Runner, questions, req.Answers)
	grade := Grade(questions, req.Answers, GradeOptions{
		PassThreshold: quiz.PassingScore,
		CodingPassed:  codingPassed,
	})

	now := s.now()
	attempt := &model.QuizAttempt{
		StudentID:    studentID,
		QuizID:       quiz.ID,
		QuizTitle:    quiz.Title,
		Answers:       req.Answers,
		CodingResults: codingResults,
		Percentage:   grade.Percentage,
		EarnedPoints: grade.EarnedPoints,
		TotalPoints:  grade.TotalPoints,
		Passed:       grade.Passed,
		StartedAt:    req.StartedAt,
		SubmittedAt:  now,
	}
	if req.StartedAt != nil && req.StartedAt.Before(now) {
		attempt.TimeTakenSeconds = int(now.Sub(*req.StartedAt).Seconds())
	}
	if err := s.Repo.CreateAttempt(ctx, attempt); err != nil {
		if util.KindOf(err) == util.KindConflict {
			monitoring.Submissions.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	message := quizFailedMessage
	outcome := "failed"
	if grade.Passed {
		message = quizPassedMessage
		outcome = "passed"
	}
	monitoring.Submissions.WithLabelValues(outcome).Inc()
	logger.Log.Info("quiz submitted",
		zap.String("quizId", quiz.ID),
		zap.Uint("studentId", studentID),
		zap.Float64("score", grade.Percentage),
		zap.Bool("passed", grade.Passed))
	s.publish(ctx, quiz.ID, studentID, map[string]interface{}{"score": grade.Percentage, "passed": grade.Passed})

	return &QuizSubmission{Message: message, Attempt: attempt, Items: grade.Items}, nil
}

func (s *QuizService) MyAttempts(ctx context.Context, studentID uint) (*MyQuizAttempts, error) {
	attempts, err := s.Repo.ListAttemptsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &MyQuizAttempts{Attempts: attempts, Stats: model.SummarizeAttempts(attempts)}, nil
}

// StudentStats 供教师审批请假时参考
func (s *QuizService) StudentStats(ctx context.Context, studentID uint) (model.QuizStats, error) {
	attempts, err := s.Repo.ListAttemptsByStudent(ctx, studentID)
	if err != nil {
		return model.QuizStats{}, err
	}
	return model.SummarizeAttempts(attempts), nil
}

// Results 作答后才能查看答案
func (s *QuizService) Results(ctx context.Context, id string, studentID uint) (*QuizResult, error) {
	attempt, err := s.Repo.FindAttempt(ctx, studentID, id)
	if err != nil {
		return nil, err
	}
	quiz, err := s.Repo.FindQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	codingPassed := map[int]bool{}
	for _, r := range attempt.CodingResults {
		codingPassed[r.QuestionIndex] = r.AllPassed
	}
	items := Grade(quiz.Questions, attempt.Answers, GradeOptions{
		PassThreshold: quiz.PassingScore,
		CodingPassed:  codingPassed,
	}).Items
	return &QuizResult{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		Questions: quiz.Questions,
		Attempt:   attempt,
		Items:     items,
	}, nil
}

func (s *QuizService) publish(ctx context.Context, quizID string, studentID uint, data interface{}) {
	if s.Events == nil {
		return
	}
	err := s.Events.Publish(ctx, events.Event{
		Type:       events.QuizSubmitted,
		QuizID:     quizID,
		StudentID:  studentID,
		OccurredAt: s.now(),
		Data:       data,
	})
	if err != nil {
		logger.Log.Warn("publish event failed", zap.String("type", events.QuizSubmitted), zap.String("quizId", quizID), zap.Error(err))
	}
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
