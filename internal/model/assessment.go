package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionKind string

const (
	KindMCQ    QuestionKind = "mcq"
	KindCoding QuestionKind = "coding"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty 不区分大小写，空值返回 def
func ParseDifficulty(s string, def Difficulty) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("invalid difficulty %q (expected Easy, Medium or Hard)", s)
}

// Provenance 题目来源
type Provenance struct {
	Provider   string `json:"provider" bson:"provider"`
	IsFallback bool   `json:"isFallback" bson:"isFallback"`
}

type MCQData struct {
	Options      []string `json:"options" bson:"options"`
	CorrectIndex int      `json:"correctIndex" bson:"correctIndex"`
}

type TestCase struct {
	Input          string `json:"input" bson:"input"`
	ExpectedOutput string `json:"expectedOutput" bson:"expectedOutput"`
}

type CodingData struct {
	StarterCode string     `json:"starterCode,omitempty" bson:"starterCode,omitempty"`
	Language    string     `json:"language,omitempty" bson:"language,omitempty"`
	TestCases   []TestCase `json:"testCases,omitempty" bson:"testCases,omitempty"`
}

// Question 由 Kind 决定填充 MCQ 还是 Coding
// swagger:model Question
type Question struct {
	Text        string       `json:"text" bson:"text"`
	Kind        QuestionKind `json:"kind" bson:"kind"`
	Points      int          `json:"points" bson:"points"`
	Explanation string       `json:"explanation,omitempty" bson:"explanation,omitempty"`
	MCQ         *MCQData     `json:"mcq,omitempty" bson:"mcq,omitempty"`
	Coding      *CodingData  `json:"coding,omitempty" bson:"coding,omitempty"`
	Provenance  Provenance   `json:"provenance" bson:"provenance"`
}

// Validate 按题型校验结构
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	if q.Points < 1 {
		return fmt.Errorf("points must be >= 1, got %d", q.Points)
	}
	switch q.Kind {
	case KindMCQ:
		if q.MCQ == nil || q.Coding != nil {
			return fmt.Errorf("mcq question must carry mcq data only")
		}
		if len(q.MCQ.Options) < 2 {
			return fmt.Errorf("mcq question needs at least 2 options, got %d", len(q.MCQ.Options))
		}
		if q.MCQ.CorrectIndex < 0 || q.MCQ.CorrectIndex >= len(q.MCQ.Options) {
			return fmt.Errorf("correct index %d out of range for %d options", q.MCQ.CorrectIndex, len(q.MCQ.Options))
		}
	case KindCoding:
		if q.Coding == nil || q.MCQ != nil {
			return fmt.Errorf("coding question must carry coding data only")
		}
	default:
		return fmt.Errorf("unknown question kind %q", q.Kind)
	}
	return nil
}

// Answer 学生的一份作答，按题号对应锁定的题目
type Answer struct {
	QuestionIndex int     `json:"questionIndex" bson:"questionIndex"`
	SelectedIndex *int    `json:"selectedIndex,omitempty" bson:"selectedIndex,omitempty"`
	Code          *string `json:"code,omitempty" bson:"code,omitempty"`
	Language      *string `json:"language,omitempty" bson:"language,omitempty"`
}

// CodingResult 提交时编程题运行测试用例的结果
type CodingResult struct {
	QuestionIndex int    `json:"questionIndex" bson:"questionIndex"`
	PassedCount   int    `json:"passedCount" bson:"passedCount"`
	TotalCount    int    `json:"totalCount" bson:"totalCount"`
	AllPassed     bool   `json:"allPassed" bson:"allPassed"`
	Error         string `json:"error,omitempty" bson:"error,omitempty"`
}

type AssessmentState string

const (
	StateNotRequired AssessmentState = "not_required"
	StatePending     AssessmentState = "pending"
	StateAttempted   AssessmentState = "attempted"
)

// AssessmentSpec 内嵌在请假记录中，没有独立 ID
type AssessmentSpec struct {
	Required         bool                              `gorm:"default:false" json:"required" bson:"required"`
	Section          string                            `gorm:"size:100" json:"section" bson:"section"`
	Difficulty       Difficulty                        `gorm:"size:10" json:"difficulty" bson:"difficulty"`
	Questions        datatypes.JSONSlice[Question]     `gorm:"type:json" json:"questions" bson:"questions"`
	QuestionCount    int                               `gorm:"default:0" json:"questionCount" bson:"questionCount"`
	Attempted        bool                              `gorm:"default:false;index" json:"attempted" bson:"attempted"`
	SubmittedAnswers datatypes.JSONSlice[Answer]       `gorm:"type:json" json:"submittedAnswers" bson:"submittedAnswers"`
	CodingResults    datatypes.JSONSlice[CodingResult] `gorm:"type:json" json:"codingResults,omitempty" bson:"codingResults,omitempty"`
	Score            float64                           `gorm:"default:0" json:"score" bson:"score"`
	Passed           bool                              `gorm:"default:false" json:"passed" bson:"passed"`
	EarnedPoints     int                               `gorm:"default:0" json:"earnedPoints" bson:"earnedPoints"`
	TotalPoints      int                               `gorm:"default:0" json:"totalPoints" bson:"totalPoints"`
	PassThreshold    float64                           `gorm:"default:0" json:"passThreshold" bson:"passThreshold"`
	StartedAt        *time.Time                        `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	SubmittedAt      *time.Time                        `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	TimeTakenSeconds int                               `gorm:"default:0" json:"timeTakenSeconds" bson:"timeTakenSeconds"`
}

func (s *AssessmentSpec) State() AssessmentState {
	switch {
	case s.Attempted:
		return StateAttempted
	case s.Required:
		return StatePending
	default:
		return StateNotRequired
	}
}

// Materialized 是否已生成题目
func (s *AssessmentSpec) Materialized() bool {
	return len(s.Questions) > 0
}

// ErrTransition 状态流转不合法
type ErrTransition struct {
	From AssessmentState
	Op   string
}

func (e *ErrTransition) Error() string {
	return fmt.Sprintf("cannot %s assessment in state %s", e.Op, e.From)
}

// CanAttach NOT_REQUIRED 或尚无题目的 PENDING 才能生成题目
func (s *AssessmentSpec) CanAttach() error {
	if s.State() == StateAttempted || s.Materialized() {
		return &ErrTransition{From: s.State(), Op: "attach"}
	}
	return nil
}

func (s *AssessmentSpec) CanFetch() error {
	if s.State() == StateNotRequired {
		return &ErrTransition{From: s.State(), Op: "fetch"}
	}
	return nil
}

func (s *AssessmentSpec) CanSubmit() error {
	if s.State() != StatePending || !s.Materialized() {
		return &ErrTransition{From: s.State(), Op: "submit"}
	}
	return nil
}

// MarkRequired 进入 PENDING，题目延迟到首次访问时生成
func (s *AssessmentSpec) MarkRequired(section string, difficulty Difficulty) {
	s.Required = true
	s.Section = section
	s.Difficulty = difficulty
}

// Attach 锁定题目
func (s *AssessmentSpec) Attach(section string, difficulty Difficulty, questions []Question) error {
	if err := s.CanAttach(); err != nil {
		return err
	}
	s.MarkRequired(section, difficulty)
	s.Questions = questions
	s.QuestionCount = len(questions)
	return nil
}

// Submission 进入 ATTEMPTED 时记录的数据
type Submission struct {
	Answers          []Answer
	CodingResults    []CodingResult
	Score            float64
	Passed           bool
	EarnedPoints     int
	TotalPoints      int
	PassThreshold    float64
	StartedAt        *time.Time
	SubmittedAt      time.Time
	TimeTakenSeconds int
}

// ApplySubmission 内存中完成 ATTEMPTED 流转；存储层用条件写入做同样的事
func (s *AssessmentSpec) ApplySubmission(sub Submission) error {
	if err := s.CanSubmit(); err != nil {
		return err
	}
	submittedAt := sub.SubmittedAt
	s.Attempted = true
	s.SubmittedAnswers = sub.Answers
	s.CodingResults = sub.CodingResults
	s.Score = sub.Score
	s.Passed = sub.Passed
	s.EarnedPoints = sub.EarnedPoints
	s.TotalPoints = sub.TotalPoints
	s.PassThreshold = sub.PassThreshold
	s.StartedAt = sub.StartedAt
	s.SubmittedAt = &submittedAt
	s.TimeTakenSeconds = sub.TimeTakenSeconds
	return nil
}
