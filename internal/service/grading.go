package service

import (
	"math"

	"leave_assessment_backend/internal/model"

	"github.com/samber/lo"
)

type GradeOptions struct {
	PassThreshold float64
	// 按题号标记测试用例全部通过的编程题
	CodingPassed map[int]bool
}

// GradedItem 逐题判分结果
type GradedItem struct {
	QuestionIndex int                `json:"questionIndex"`
	Kind          model.QuestionKind `json:"kind"`
	Points        int                `json:"points"`
	Earned        int                `json:"earned"`
	Answered      bool               `json:"answered"`
	Correct       bool               `json:"correct"`
	SelectedIndex *int               `json:"selectedIndex,omitempty"`
}

type GradeResult struct {
	EarnedPoints int          `json:"earnedPoints"`
	TotalPoints  int          `json:"totalPoints"`
	Percentage   float64      `json:"percentage"`
	Passed       bool         `json:"passed"`
	Items        []GradedItem `json:"items"`
}

func pointsOf(q model.Question) int {
	if q.Points < 1 {
		return 1
	}
	return q.Points
}

// Grade 纯函数判分：越界题号忽略，同一题只取第一份答案
func Grade(questions []model.Question, answers []model.Answer, opts GradeOptions) GradeResult {
	valid := lo.Filter(answers, func(a model.Answer, _ int) bool {
		return a.QuestionIndex >= 0 && a.QuestionIndex < len(questions)
	})
	byIndex := lo.KeyBy(lo.UniqBy(valid, func(a model.Answer) int { return a.QuestionIndex }),
		func(a model.Answer) int { return a.QuestionIndex })

	result := GradeResult{Items: make([]GradedItem, len(questions))}
	for i, q := range questions {
		item := GradedItem{QuestionIndex: i, Kind: q.Kind, Points: pointsOf(q)}
		answer, answered := byIndex[i]
		item.Answered = answered

		if answered {
			switch q.Kind {
			case model.KindMCQ:
				item.SelectedIndex = answer.SelectedIndex
				item.Correct = q.MCQ != nil && answer.SelectedIndex != nil && *answer.SelectedIndex == q.MCQ.CorrectIndex
			case model.KindCoding:
				item.Correct = opts.CodingPassed[i]
			}
		}
		if item.Correct {
			item.Earned = item.Points
		}

		result.TotalPoints += item.Points
		result.EarnedPoints += item.Earned
		result.Items[i] = item
	}

	if result.TotalPoints > 0 {
		pct := float64(result.EarnedPoints) / float64(result.TotalPoints) * 100
		result.Percentage = math.Round(pct*100) / 100
	}
	result.Passed = result.Percentage >= opts.PassThreshold
	return result
}
