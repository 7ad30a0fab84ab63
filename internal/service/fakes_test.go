package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/repository"
	"leave_assessment_backend/internal/util"
)

// memLeaveRepo is an in-memory LeaveRepository with the same conditional-write rules as
// the SQL and Mongo implementations.
type memLeaveRepo struct {
	mu     sync.Mutex
	leaves map[string]model.LeaveRequest
	seq    int

	attachCalls int
}

func newMemLeaveRepo() *memLeaveRepo {
	return &memLeaveRepo{leaves: map[string]model.LeaveRequest{}}
}

func (r *memLeaveRepo) Create(_ context.Context, leave *model.LeaveRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if leave.ID == "" {
		leave.ID = model.GenerateUUID()
	}
	r.seq++
	leave.CreatedAt = time.Unix(int64(r.seq), 0)
	r.leaves[leave.ID] = *leave
	return nil
}

func (r *memLeaveRepo) put(leave model.LeaveRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves[leave.ID] = leave
}

func (r *memLeaveRepo) FindByID(_ context.Context, id string) (*model.LeaveRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	leave, ok := r.leaves[id]
	if !ok {
		return nil, util.ErrLeaveNotFound
	}
	return &leave, nil
}

func (r *memLeaveRepo) List(_ context.Context, filter repository.LeaveFilter) ([]model.LeaveRequest, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LeaveRequest
	for _, l := range r.leaves {
		if filter.StudentID > 0 && l.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memLeaveRepo) FindActiveOverlapping(_ context.Context, studentID uint, start, end time.Time) ([]model.LeaveRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LeaveRequest
	for _, l := range r.leaves {
		if l.StudentID != studentID || l.Status == model.LeaveRejected {
			continue
		}
		if l.Overlaps(start, end) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memLeaveRepo) UpdateReview(_ context.Context, id string, status model.LeaveStatus, reviewer uint, remarks string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return util.ErrLeaveNotFound
	}
	if l.Status != model.LeavePending {
		return util.ErrLeaveAlreadyDecided
	}
	l.Status = status
	l.ReviewedBy = &reviewer
	l.TeacherRemarks = remarks
	l.ReviewedAt = &at
	r.leaves[id] = l
	return nil
}

func (r *memLeaveRepo) DeletePending(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return util.ErrLeaveNotFound
	}
	if l.Status != model.LeavePending {
		return util.ErrLeaveAlreadyDecided
	}
	delete(r.leaves, id)
	return nil
}

func (r *memLeaveRepo) MarkAssessmentRequired(_ context.Context, id, section string, difficulty model.Difficulty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return util.ErrLeaveNotFound
	}
	if !l.Assessment.Attempted {
		l.Assessment.MarkRequired(section, difficulty)
		r.leaves[id] = l
	}
	return nil
}

func (r *memLeaveRepo) AttachQuestions(_ context.Context, id, section string, difficulty model.Difficulty, questions []model.Question) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachCalls++
	l, ok := r.leaves[id]
	if !ok {
		return false, util.ErrLeaveNotFound
	}
	if l.Assessment.QuestionCount != 0 || l.Assessment.Attempted {
		return false, nil
	}
	l.Assessment.MarkRequired(section, difficulty)
	l.Assessment.Questions = questions
	l.Assessment.QuestionCount = len(questions)
	r.leaves[id] = l
	return true, nil
}

func (r *memLeaveRepo) MarkSubmitted(_ context.Context, id string, sub model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return util.ErrLeaveNotFound
	}
	if l.Assessment.Attempted {
		return util.ErrAlreadySubmitted
	}
	if err := l.Assessment.ApplySubmission(sub); err != nil {
		return util.ErrAlreadySubmitted
	}
	r.leaves[id] = l
	return nil
}

// stubProvider answers every chat with a fixed reply or error.
type stubProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (p *stubProvider) Chat(_ context.Context, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.reply, p.err
}

func (p *stubProvider) Name() string { return "stub:test" }

// stubRunner reports a fixed test run outcome for any code.
type stubRunner struct {
	mu     sync.Mutex
	report *TestRunReport
	err    error
	codes  []string
}

func (r *stubRunner) RunTestCases(_ context.Context, code, _ string, cases []model.TestCase) (*TestRunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	if r.err != nil {
		return nil, r.err
	}
	rep := *r.report
	rep.TotalCount = len(cases)
	return &rep, nil
}

type memAttendance map[uint]model.AttendanceSummary

func (m memAttendance) FindByStudentID(_ context.Context, studentID uint) (*model.AttendanceSummary, error) {
	s, ok := m[studentID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

// memQuizRepo is an in-memory QuizRepository; CreateAttempt enforces one attempt per
// student and quiz like the unique index does.
type memQuizRepo struct {
	mu       sync.Mutex
	quizzes  []model.Quiz
	attempts []model.QuizAttempt
}

func newMemQuizRepo() *memQuizRepo { return &memQuizRepo{} }

func (r *memQuizRepo) CreateQuiz(_ context.Context, quiz *model.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if quiz.ID == "" {
		quiz.ID = model.GenerateUUID()
	}
	quiz.CreatedAt = time.Unix(int64(len(r.quizzes)+1), 0)
	r.quizzes = append(r.quizzes, *quiz)
	return nil
}

func (r *memQuizRepo) FindQuiz(_ context.Context, id string) (*model.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.quizzes {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, util.ErrQuizNotFound
}

func (r *memQuizRepo) ListQuizzes(_ context.Context, activeOnly bool) ([]model.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Quiz
	for _, q := range r.quizzes {
		if activeOnly && !q.IsActive {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memQuizRepo) UpdateQuiz(_ context.Context, quiz *model.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.quizzes {
		if q.ID == quiz.ID {
			r.quizzes[i] = *quiz
			return nil
		}
	}
	return util.ErrQuizNotFound
}

func (r *memQuizRepo) DeleteQuiz(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, q := range r.quizzes {
		if q.ID == id {
			r.quizzes = append(r.quizzes[:i], r.quizzes[i+1:]...)
			kept := r.attempts[:0]
			for _, a := range r.attempts {
				if a.QuizID != id {
					kept = append(kept, a)
				}
			}
			r.attempts = kept
			return nil
		}
	}
	return util.ErrQuizNotFound
}

func (r *memQuizRepo) CreateAttempt(_ context.Context, attempt *model.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.StudentID == attempt.StudentID && a.QuizID == attempt.QuizID {
			return util.ErrQuizAlreadyAttempted
		}
	}
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	r.attempts = append(r.attempts, *attempt)
	return nil
}

func (r *memQuizRepo) FindAttempt(_ context.Context, studentID uint, quizID string) (*model.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.StudentID == studentID && a.QuizID == quizID {
			return &a, nil
		}
	}
	return nil, util.ErrQuizNotAttempted
}

func (r *memQuizRepo) ListAttemptsByStudent(_ context.Context, studentID uint) ([]model.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QuizAttempt
	for _, a := range r.attempts {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (r *memQuizRepo) SummarizeByQuiz(_ context.Context, quizIDs []string) (map[string]repository.QuizSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]repository.QuizSummary{}
	for _, id := range quizIDs {
		var sum float64
		var n int64
		for _, a := range r.attempts {
			if a.QuizID == id {
				sum += a.Percentage
				n++
			}
		}
		if n > 0 {
			out[id] = repository.QuizSummary{QuizID: id, AttemptCount: n, AverageScore: sum / float64(n)}
		}
	}
	return out, nil
}
