package repository

import (
	"context"
	"errors"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/util"

	"gorm.io/gorm"
)

// QuizSummary 单个测验的作答统计
type QuizSummary struct {
	QuizID       string  `json:"quizId"`
	AttemptCount int64   `json:"attemptCount"`
	AverageScore float64 `json:"averageScore"`
}

// QuizRepository 测验与作答记录存储；CreateAttempt 依赖 (student, quiz) 唯一索引保证只作答一次
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *model.Quiz) error
	FindQuiz(ctx context.Context, id string) (*model.Quiz, error)
	ListQuizzes(ctx context.Context, activeOnly bool) ([]model.Quiz, error)
	UpdateQuiz(ctx context.Context, quiz *model.Quiz) error
	// DeleteQuiz 同时删除该测验的全部作答记录
	DeleteQuiz(ctx context.Context, id string) error

	// CreateAttempt 重复作答返回 util.ErrQuizAlreadyAttempted
	CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error
	// FindAttempt 未作答返回 util.ErrQuizNotAttempted
	FindAttempt(ctx context.Context, studentID uint, quizID string) (*model.QuizAttempt, error)
	ListAttemptsByStudent(ctx context.Context, studentID uint) ([]model.QuizAttempt, error)
	SummarizeByQuiz(ctx context.Context, quizIDs []string) (map[string]QuizSummary, error)
}

type GormQuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *GormQuizRepository {
	return &GormQuizRepository{DB: db}
}

func (r *GormQuizRepository) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *GormQuizRepository) FindQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *GormQuizRepository) ListQuizzes(ctx context.Context, activeOnly bool) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	query := r.DB.WithContext(ctx).Model(&model.Quiz{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("created_at desc").Find(&quizzes).Error
	return quizzes, err
}

func (r *GormQuizRepository) UpdateQuiz(ctx context.Context, quiz *model.Quiz) error {
	res := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ?", quiz.ID).
		Select("title", "description", "category", "class_name", "subject", "difficulty",
			"questions", "duration_minutes", "passing_score", "is_active").
		Updates(quiz)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 内容未变化时 MySQL 也返回 0 行
		var count int64
		if err := r.DB.WithContext(ctx).Model(&model.Quiz{}).Where("id = ?", quiz.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return util.ErrQuizNotFound
		}
	}
	return nil
}

func (r *GormQuizRepository) DeleteQuiz(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Quiz{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrQuizNotFound
		}
		return tx.Where("quiz_id = ?", id).Delete(&model.QuizAttempt{}).Error
	})
}

func (r *GormQuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	err := r.DB.WithContext(ctx).Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return util.ErrQuizAlreadyAttempted
	}
	return err
}

func (r *GormQuizRepository) FindAttempt(ctx context.Context, studentID uint, quizID string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).Where("student_id = ? AND quiz_id = ?", studentID, quizID).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotAttempted
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *GormQuizRepository) ListAttemptsByStudent(ctx context.Context, studentID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("submitted_at desc").
		Find(&attempts).Error
	return attempts, err
}

func (r *GormQuizRepository) SummarizeByQuiz(ctx context.Context, quizIDs []string) (map[string]QuizSummary, error) {
	out := make(map[string]QuizSummary, len(quizIDs))
	if len(quizIDs) == 0 {
		return out, nil
	}
	var rows []QuizSummary
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Select("quiz_id, COUNT(*) AS attempt_count, COALESCE(AVG(percentage), 0) AS average_score").
		Where("quiz_id IN ?", quizIDs).
		Group("quiz_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.QuizID] = row
	}
	return out, nil
}
