package service

import (
	"testing"

	"leave_assessment_backend/internal/model"
)

func mcq(points, correct int) model.Question {
	return model.Question{
		Text:   "q",
		Kind:   model.KindMCQ,
		Points: points,
		MCQ:    &model.MCQData{Options: []string{"a", "b", "c", "d"}, CorrectIndex: correct},
	}
}

func coding(points int) model.Question {
	return model.Question{
		Text:   "write code",
		Kind:   model.KindCoding,
		Points: points,
		Coding: &model.CodingData{Language: "python", TestCases: []model.TestCase{{Input: "1", ExpectedOutput: "1"}}},
	}
}

func pick(idx, selected int) model.Answer {
	return model.Answer{QuestionIndex: idx, SelectedIndex: intPtr(selected)}
}

func TestGrade(t *testing.T) {
	threeMCQ := []model.Question{mcq(1, 0), mcq(1, 1), mcq(1, 2)}

	tests := []struct {
		name       string
		questions  []model.Question
		answers    []model.Answer
		opts       GradeOptions
		earned     int
		total      int
		percentage float64
		passed     bool
	}{
		{
			name:      "all correct",
			questions: threeMCQ,
			answers:   []model.Answer{pick(0, 0), pick(1, 1), pick(2, 2)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    3, total: 3, percentage: 100, passed: true,
		},
		{
			name:      "two of three rounds to two places",
			questions: threeMCQ,
			answers:   []model.Answer{pick(0, 0), pick(1, 1), pick(2, 0)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    2, total: 3, percentage: 66.67, passed: true,
		},
		{
			name:      "one of three fails",
			questions: threeMCQ,
			answers:   []model.Answer{pick(0, 0)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    1, total: 3, percentage: 33.33, passed: false,
		},
		{
			name:      "threshold is inclusive",
			questions: []model.Question{mcq(3, 0), mcq(2, 0)},
			answers:   []model.Answer{pick(0, 0), pick(1, 1)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    3, total: 5, percentage: 60, passed: true,
		},
		{
			name:      "caller threshold overrides default",
			questions: []model.Question{mcq(3, 0), mcq(2, 0)},
			answers:   []model.Answer{pick(0, 0), pick(1, 1)},
			opts:      GradeOptions{PassThreshold: 80},
			earned:    3, total: 5, percentage: 60, passed: false,
		},
		{
			name:      "out of range indexes are ignored",
			questions: threeMCQ,
			answers:   []model.Answer{pick(-1, 0), pick(3, 0), pick(99, 0), pick(0, 0)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    1, total: 3, percentage: 33.33, passed: false,
		},
		{
			name:      "first answer per question counts",
			questions: threeMCQ,
			answers:   []model.Answer{pick(0, 3), pick(0, 0), pick(1, 1), pick(1, 1)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    1, total: 3, percentage: 33.33, passed: false,
		},
		{
			name:      "missing selection is wrong",
			questions: threeMCQ,
			answers:   []model.Answer{{QuestionIndex: 0}},
			opts:      GradeOptions{PassThreshold: 0},
			earned:    0, total: 3, percentage: 0, passed: true,
		},
		{
			name:      "coding without a passing run earns nothing",
			questions: []model.Question{mcq(1, 0), coding(2)},
			answers:   []model.Answer{pick(0, 0), {QuestionIndex: 1, Code: strPtr("print(1)")}},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    1, total: 3, percentage: 33.33, passed: false,
		},
		{
			name:      "coding with a passing run earns its points",
			questions: []model.Question{mcq(1, 0), coding(2)},
			answers:   []model.Answer{pick(0, 0), {QuestionIndex: 1, Code: strPtr("print(1)")}},
			opts:      GradeOptions{PassThreshold: 60, CodingPassed: map[int]bool{1: true}},
			earned:    3, total: 3, percentage: 100, passed: true,
		},
		{
			name:      "coding passed but unanswered earns nothing",
			questions: []model.Question{coding(2)},
			answers:   nil,
			opts:      GradeOptions{PassThreshold: 60, CodingPassed: map[int]bool{0: true}},
			earned:    0, total: 2, percentage: 0, passed: false,
		},
		{
			name:      "empty question set scores zero",
			questions: nil,
			answers:   []model.Answer{pick(0, 0)},
			opts:      GradeOptions{PassThreshold: 60},
			earned:    0, total: 0, percentage: 0, passed: false,
		},
		{
			name:      "points below one count as one",
			questions: []model.Question{mcq(0, 0), mcq(1, 0)},
			answers:   []model.Answer{pick(0, 0)},
			opts:      GradeOptions{PassThreshold: 50},
			earned:    1, total: 2, percentage: 50, passed: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(tc.questions, tc.answers, tc.opts)
			if got.EarnedPoints != tc.earned || got.TotalPoints != tc.total {
				t.Errorf("points = %d/%d, want %d/%d", got.EarnedPoints, got.TotalPoints, tc.earned, tc.total)
			}
			if got.Percentage != tc.percentage {
				t.Errorf("percentage = %v, want %v", got.Percentage, tc.percentage)
			}
			if got.Passed != tc.passed {
				t.Errorf("passed = %v, want %v", got.Passed, tc.passed)
			}
			if len(got.Items) != len(tc.questions) {
				t.Errorf("items = %d, want %d", len(got.Items), len(tc.questions))
			}
		})
	}
}

func TestGradeIsPure(t *testing.T) {
	questions := []model.Question{mcq(1, 0), mcq(2, 1)}
	answers := []model.Answer{pick(0, 0), pick(1, 0)}

	first := Grade(questions, answers, GradeOptions{PassThreshold: 60})
	second := Grade(questions, answers, GradeOptions{PassThreshold: 60})
	if first.Percentage != second.Percentage || first.EarnedPoints != second.EarnedPoints {
		t.Errorf("grading the same input twice differs: %+v vs %+v", first, second)
	}
	if *answers[1].SelectedIndex != 0 || questions[1].MCQ.CorrectIndex != 1 {
		t.Errorf("inputs were modified")
	}
}
