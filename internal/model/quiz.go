package model

import (
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
)

type QuizCategory string

var QuizCategories = []QuizCategory{"JavaScript", "React", "Node.js", "Database", "General", "Python", "DSA"}

// ValidCategory 校验分类，空值视为 General
func ValidCategory(c QuizCategory) bool {
	if c == "" {
		return true
	}
	for _, v := range QuizCategories {
		if v == c {
			return true
		}
	}
	return false
}

const (
	DefaultQuizDuration     = 30
	DefaultQuizPassingScore = 60
)

// Quiz 教师发布的独立测验，题目结构与请假评估共用
// swagger:model Quiz
type Quiz struct {
	UUIDBase        `bson:",inline"`
	Title           string                        `gorm:"size:200;not null" json:"title" bson:"title"`
	Description     string                        `gorm:"type:text" json:"description" bson:"description"`
	Category        QuizCategory                  `gorm:"size:32;default:'General'" json:"category" bson:"category"`
	ClassName       string                        `gorm:"size:100" json:"class" bson:"class"`
	Subject         string                        `gorm:"size:100" json:"subject" bson:"subject"`
	Difficulty      Difficulty                    `gorm:"size:10;default:'Medium'" json:"difficulty" bson:"difficulty"`
	Questions       datatypes.JSONSlice[Question] `gorm:"type:json" json:"questions" bson:"questions"`
	DurationMinutes int                           `gorm:"default:30" json:"duration" bson:"duration"`
	PassingScore    float64                       `gorm:"default:60" json:"passingScore" bson:"passingScore"`
	IsActive        bool                          `gorm:"default:true;index" json:"isActive" bson:"isActive"`
	CreatedBy       uint                          `gorm:"index;not null" json:"createdBy" bson:"createdBy"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// Validate 检查题目与及格线
func (q *Quiz) Validate() error {
	if q.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("a quiz needs at least one question")
	}
	if !ValidCategory(q.Category) {
		return fmt.Errorf("invalid category %q", q.Category)
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return fmt.Errorf("passing score must be between 0 and 100, got %v", q.PassingScore)
	}
	for i, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// ApplyDefaults 补齐未填写的字段
func (q *Quiz) ApplyDefaults() {
	if q.Category == "" {
		q.Category = "General"
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if q.DurationMinutes <= 0 {
		q.DurationMinutes = DefaultQuizDuration
	}
	if q.PassingScore == 0 {
		q.PassingScore = DefaultQuizPassingScore
	}
}

// QuizAttempt 每个学生每个测验只有一条记录
// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase         `bson:",inline"`
	StudentID        uint                        `gorm:"not null;uniqueIndex:idx_attempt_student_quiz;index:idx_attempt_student_created,priority:1" json:"studentId" bson:"studentId"`
	QuizID           string                      `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_student_quiz;index" json:"quizId" bson:"quizId"`
	QuizTitle        string                      `gorm:"size:200" json:"quizTitle" bson:"quizTitle"`
	Answers          datatypes.JSONSlice[Answer]       `gorm:"type:json" json:"answers" bson:"answers"`
	CodingResults    datatypes.JSONSlice[CodingResult] `gorm:"type:json" json:"codingResults,omitempty" bson:"codingResults,omitempty"`
	Percentage       float64                     `json:"percentage" bson:"percentage"`
	EarnedPoints     int                         `json:"earnedPoints" bson:"earnedPoints"`
	TotalPoints      int                         `json:"totalPoints" bson:"totalPoints"`
	Passed           bool                        `json:"passed" bson:"passed"`
	TimeTakenSeconds int                         `json:"timeTaken" bson:"timeTaken"`
	StartedAt        *time.Time                  `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	SubmittedAt      time.Time                   `gorm:"index:idx_attempt_student_created,priority:2" json:"submittedAt" bson:"submittedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// QuizStats 学生测验汇总
type QuizStats struct {
	TotalAttempts int     `json:"totalAttempts"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	AverageScore  float64 `json:"averageScore"`
}

// SummarizeAttempts 平均分保留两位小数
func SummarizeAttempts(attempts []QuizAttempt) QuizStats {
	stats := QuizStats{TotalAttempts: len(attempts)}
	if len(attempts) == 0 {
		return stats
	}
	var sum float64
	for _, a := range attempts {
		if a.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
		sum += a.Percentage
	}
	stats.AverageScore = math.Round(sum/float64(len(attempts))*100) / 100
	return stats
}
