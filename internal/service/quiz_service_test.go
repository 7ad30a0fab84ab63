package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/events"
)

type quizFixture struct {
	svc      *QuizService
	repo     *memQuizRepo
	runner   *stubRunner
	recorder *events.Recorder
}

func newQuizFixture() *quizFixture {
	repo := newMemQuizRepo()
	runner := &stubRunner{report: &TestRunReport{AllPassed: true}}
	recorder := &events.Recorder{}
	svc := NewQuizService(repo, runner, recorder)
	svc.now = func() time.Time { return fixedNow }
	return &quizFixture{svc: svc, repo: repo, runner: runner, recorder: recorder}
}

func sampleQuizInput() QuizInput {
	return QuizInput{
		Title:    "SQL basics",
		Category: "Database",
		Questions: []model.Question{
			{Text: "Which clause filters rows?", Kind: model.KindMCQ,
				MCQ: &model.MCQData{Options: []string{"WHERE", "ORDER BY", "LIMIT", "FROM"}, CorrectIndex: 0}},
			{Text: "Which clause sorts rows?", Kind: model.KindMCQ, Points: 2,
				MCQ: &model.MCQData{Options: []string{"GROUP BY", "ORDER BY"}, CorrectIndex: 1}},
			{Text: "Print the sum of two numbers", Kind: model.KindCoding,
				Coding: &model.CodingData{Language: "python", TestCases: []model.TestCase{{Input: "1 2", ExpectedOutput: "3"}}}},
		},
	}
}

func TestCreateQuizAppliesDefaults(t *testing.T) {
	f := newQuizFixture()

	quiz, err := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if quiz.ID == "" || quiz.CreatedBy != teacher.UserID || !quiz.IsActive {
		t.Errorf("quiz = %+v", quiz)
	}
	if quiz.DurationMinutes != model.DefaultQuizDuration || quiz.PassingScore != model.DefaultQuizPassingScore || quiz.Difficulty != model.DifficultyMedium {
		t.Errorf("defaults not applied: %+v", quiz)
	}
	if quiz.Questions[0].Points != 1 || quiz.Questions[1].Points != 2 {
		t.Errorf("points = %d,%d", quiz.Questions[0].Points, quiz.Questions[1].Points)
	}
}

func TestCreateQuizValidation(t *testing.T) {
	f := newQuizFixture()
	tests := []struct {
		name   string
		mutate func(in *QuizInput)
	}{
		{"no questions", func(in *QuizInput) { in.Questions = nil }},
		{"bad category", func(in *QuizInput) { in.Category = "Cooking" }},
		{"bad difficulty", func(in *QuizInput) { in.Difficulty = "extreme" }},
		{"passing score over 100", func(in *QuizInput) { in.PassingScore = 120 }},
		{"mcq without options", func(in *QuizInput) {
			in.Questions = []model.Question{{Text: "?", Kind: model.KindMCQ, MCQ: &model.MCQData{}}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleQuizInput()
			tc.mutate(&in)
			if _, err := f.svc.Create(context.Background(), teacher.UserID, in); util.KindOf(err) != util.KindValidation {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
}

func TestStudentQuizViewsHideAnswers(t *testing.T) {
	f := newQuizFixture()
	active, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())
	hidden := sampleQuizInput()
	off := false
	hidden.IsActive = &off
	if _, err := f.svc.Create(context.Background(), teacher.UserID, hidden); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.ListForStudent(context.Background())
	if err != nil {
		t.Fatalf("ListForStudent returned error: %v", err)
	}
	if len(list) != 1 || list[0].ID != active.ID || list[0].QuestionCount != 3 || list[0].TotalPoints != 4 || len(list[0].Questions) != 0 {
		t.Fatalf("list = %+v", list)
	}

	detail, err := f.svc.GetForStudent(context.Background(), active.ID, student.UserID)
	if err != nil {
		t.Fatalf("GetForStudent returned error: %v", err)
	}
	if detail.HasAttempted || detail.LastAttempt != nil || len(detail.Questions) != 3 {
		t.Errorf("detail = %+v", detail)
	}
	if detail.Title != "SQL basics" || detail.Category != "Database" || detail.Duration != model.DefaultQuizDuration {
		t.Errorf("detail header = %+v", detail.StudentQuiz)
	}
	body, err := json.Marshal(detail)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"correctIndex", "expectedOutput"} {
		if strings.Contains(string(body), secret) {
			t.Errorf("student view leaks %q: %s", secret, body)
		}
	}

	if _, err := f.svc.GetForStudent(context.Background(), "missing", student.UserID); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("error = %v, want ErrQuizNotFound", err)
	}
}

func TestSubmitQuizOnce(t *testing.T) {
	f := newQuizFixture()
	quiz, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())
	started := fixedNow.Add(-90 * time.Second)
	code := "a, b = map(int, input().split())\nprint(a + b)"

	res, err := f.svc.Submit(context.Background(), quiz.ID, student.UserID, SubmitRequest{
		Answers: []model.Answer{
			pick(0, 0),
			pick(1, 0),
			{QuestionIndex: 2, Code: &code},
		},
		StartedAt: &started,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Attempt.EarnedPoints != 2 || res.Attempt.TotalPoints != 4 || res.Attempt.Percentage != 50 || res.Attempt.Passed {
		t.Errorf("attempt = %+v", res.Attempt)
	}
	if res.Message != quizFailedMessage || res.Attempt.TimeTakenSeconds != 90 {
		t.Errorf("message = %q time = %d", res.Message, res.Attempt.TimeTakenSeconds)
	}
	if len(f.runner.codes) != 1 || len(res.Attempt.CodingResults) != 1 || !res.Attempt.CodingResults[0].AllPassed {
		t.Errorf("coding results = %+v", res.Attempt.CodingResults)
	}
	if got := f.recorder.Types(); len(got) != 1 || got[0] != events.QuizSubmitted || f.recorder.Events[0].QuizID != quiz.ID {
		t.Errorf("events = %+v", f.recorder.Events)
	}

	_, err = f.svc.Submit(context.Background(), quiz.ID, student.UserID, SubmitRequest{Answers: []model.Answer{pick(0, 0)}})
	if !errors.Is(err, util.ErrQuizAlreadyAttempted) {
		t.Errorf("second submit error = %v, want ErrQuizAlreadyAttempted", err)
	}
	if len(f.repo.attempts) != 1 {
		t.Errorf("attempts stored = %d, want 1", len(f.repo.attempts))
	}

	detail, err := f.svc.GetForStudent(context.Background(), quiz.ID, student.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if !detail.HasAttempted || detail.LastAttempt == nil || detail.LastAttempt.Percentage != 50 {
		t.Errorf("detail after submit = %+v", detail)
	}
}

func TestSubmitQuizPasses(t *testing.T) {
	f := newQuizFixture()
	quiz, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())

	res, err := f.svc.Submit(context.Background(), quiz.ID, student.UserID, SubmitRequest{
		Answers: []model.Answer{pick(0, 0), pick(1, 1)},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.Attempt.Percentage != 75 || !res.Attempt.Passed || res.Message != quizPassedMessage {
		t.Errorf("result = %+v message = %q", res.Attempt, res.Message)
	}
}

func TestSubmitQuizRejections(t *testing.T) {
	f := newQuizFixture()
	quiz, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())
	in := sampleQuizInput()
	off := false
	in.IsActive = &off
	inactive, _ := f.svc.Create(context.Background(), teacher.UserID, in)

	tests := []struct {
		name string
		id   string
		req  SubmitRequest
		want error
	}{
		{"no answers", quiz.ID, SubmitRequest{}, nil},
		{"unknown quiz", "missing", SubmitRequest{Answers: []model.Answer{pick(0, 0)}}, util.ErrQuizNotFound},
		{"inactive quiz", inactive.ID, SubmitRequest{Answers: []model.Answer{pick(0, 0)}}, util.ErrQuizNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tc.id, student.UserID, tc.req)
			if tc.want == nil {
				if util.KindOf(err) != util.KindValidation {
					t.Errorf("error = %v, want validation", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestQuizResultsAndStats(t *testing.T) {
	f := newQuizFixture()
	first, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())
	second, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())

	if _, err := f.svc.Results(context.Background(), first.ID, student.UserID); !errors.Is(err, util.ErrQuizNotAttempted) {
		t.Errorf("results before attempt error = %v, want ErrQuizNotAttempted", err)
	}

	code := "print(3)"
	if _, err := f.svc.Submit(context.Background(), first.ID, student.UserID, SubmitRequest{
		Answers: []model.Answer{pick(0, 0), pick(1, 1), {QuestionIndex: 2, Code: &code}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(context.Background(), second.ID, student.UserID, SubmitRequest{
		Answers: []model.Answer{pick(0, 3)},
	}); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Results(context.Background(), first.ID, student.UserID)
	if err != nil {
		t.Fatalf("Results returned error: %v", err)
	}
	if len(result.Questions) != 3 || result.Questions[0].MCQ == nil {
		t.Fatalf("results must carry the answer key")
	}
	if len(result.Items) != 3 || !result.Items[0].Correct || !result.Items[1].Correct || !result.Items[2].Correct {
		t.Errorf("items = %+v", result.Items)
	}

	mine, err := f.svc.MyAttempts(context.Background(), student.UserID)
	if err != nil {
		t.Fatalf("MyAttempts returned error: %v", err)
	}
	want := model.QuizStats{TotalAttempts: 2, Passed: 1, Failed: 1, AverageScore: 50}
	if len(mine.Attempts) != 2 || mine.Stats != want {
		t.Errorf("stats = %+v, want %+v", mine.Stats, want)
	}

	teacherView, err := f.svc.ListForTeacher(context.Background())
	if err != nil {
		t.Fatalf("ListForTeacher returned error: %v", err)
	}
	if len(teacherView) != 2 {
		t.Fatalf("teacher list = %d, want 2", len(teacherView))
	}
	for _, q := range teacherView {
		if q.AttemptCount != 1 || q.QuestionCount != 3 {
			t.Errorf("quiz %s summary = %+v", q.ID, q)
		}
	}
}

func TestUpdateAndDeleteQuiz(t *testing.T) {
	f := newQuizFixture()
	quiz, _ := f.svc.Create(context.Background(), teacher.UserID, sampleQuizInput())
	if _, err := f.svc.Submit(context.Background(), quiz.ID, student.UserID, SubmitRequest{Answers: []model.Answer{pick(0, 0)}}); err != nil {
		t.Fatal(err)
	}

	in := sampleQuizInput()
	in.Title = "SQL joins"
	in.PassingScore = 80
	updated, err := f.svc.Update(context.Background(), quiz.ID, in)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Title != "SQL joins" || updated.PassingScore != 80 || updated.CreatedBy != teacher.UserID {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := f.svc.Update(context.Background(), "missing", in); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("error = %v, want ErrQuizNotFound", err)
	}

	if err := f.svc.Delete(context.Background(), quiz.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(f.repo.attempts) != 0 {
		t.Errorf("attempts left after delete = %d", len(f.repo.attempts))
	}
	if err := f.svc.Delete(context.Background(), quiz.ID); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("error = %v, want ErrQuizNotFound", err)
	}
}
