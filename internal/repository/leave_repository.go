package repository

import (
	"context"
	"errors"
	"time"

	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/util"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LeaveFilter 列表筛选条件，零值表示不限
type LeaveFilter struct {
	StudentID uint
	Status    model.LeaveStatus
	Page      int
	Limit     int
}

// LeaveRepository 请假及内嵌评估的存储
// AttachQuestions 与 MarkSubmitted 是条件写入，并发下评估状态机只在这里保证
type LeaveRepository interface {
	Create(ctx context.Context, leave *model.LeaveRequest) error
	FindByID(ctx context.Context, id string) (*model.LeaveRequest, error)
	List(ctx context.Context, filter LeaveFilter) ([]model.LeaveRequest, int64, error)
	FindActiveOverlapping(ctx context.Context, studentID uint, start, end time.Time) ([]model.LeaveRequest, error)
	UpdateReview(ctx context.Context, id string, status model.LeaveStatus, reviewer uint, remarks string, at time.Time) error
	DeletePending(ctx context.Context, id string) error
	MarkAssessmentRequired(ctx context.Context, id, section string, difficulty model.Difficulty) error
	// AttachQuestions 仅在尚无题目且未提交时写入，返回本次是否写入成功
	AttachQuestions(ctx context.Context, id, section string, difficulty model.Difficulty, questions []model.Question) (bool, error)
	// MarkSubmitted 仅在未提交时写入，否则返回 util.ErrAlreadySubmitted
	MarkSubmitted(ctx context.Context, id string, sub model.Submission) error
}

type GormLeaveRepository struct {
	DB *gorm.DB
}

func NewLeaveRepository(db *gorm.DB) *GormLeaveRepository {
	return &GormLeaveRepository{DB: db}
}

func (r *GormLeaveRepository) Create(ctx context.Context, leave *model.LeaveRequest) error {
	return r.DB.WithContext(ctx).Create(leave).Error
}

func (r *GormLeaveRepository) FindByID(ctx context.Context, id string) (*model.LeaveRequest, error) {
	var leave model.LeaveRequest
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&leave).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLeaveNotFound
	}
	if err != nil {
		return nil, err
	}
	return &leave, nil
}

func (r *GormLeaveRepository) List(ctx context.Context, filter LeaveFilter) ([]model.LeaveRequest, int64, error) {
	var leaves []model.LeaveRequest
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.LeaveRequest{})
	if filter.StudentID > 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}
	err := query.Order("created_at desc").Find(&leaves).Error
	return leaves, total, err
}

func (r *GormLeaveRepository) FindActiveOverlapping(ctx context.Context, studentID uint, start, end time.Time) ([]model.LeaveRequest, error) {
	var leaves []model.LeaveRequest
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND status IN ?", studentID, []model.LeaveStatus{model.LeavePending, model.LeaveApproved}).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Find(&leaves).Error
	return leaves, err
}

func (r *GormLeaveRepository) UpdateReview(ctx context.Context, id string, status model.LeaveStatus, reviewer uint, remarks string, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.LeaveRequest{}).
		Where("id = ? AND status = ?", id, model.LeavePending).
		Updates(map[string]interface{}{
			"status":          status,
			"reviewed_by":     reviewer,
			"teacher_remarks": remarks,
			"reviewed_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, id, util.ErrLeaveAlreadyDecided)
	}
	return nil
}

func (r *GormLeaveRepository) DeletePending(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.LeavePending).
		Delete(&model.LeaveRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, id, util.ErrLeaveAlreadyDecided)
	}
	return nil
}

func (r *GormLeaveRepository) MarkAssessmentRequired(ctx context.Context, id, section string, difficulty model.Difficulty) error {
	return r.DB.WithContext(ctx).Model(&model.LeaveRequest{}).
		Where("id = ? AND assessment_attempted = ?", id, false).
		Updates(map[string]interface{}{
			"assessment_required":   true,
			"assessment_section":    section,
			"assessment_difficulty": difficulty,
		}).Error
}

func (r *GormLeaveRepository) AttachQuestions(ctx context.Context, id, section string, difficulty model.Difficulty, questions []model.Question) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.LeaveRequest{}).
		Where("id = ? AND assessment_question_count = ? AND assessment_attempted = ?", id, 0, false).
		Updates(map[string]interface{}{
			"assessment_required":       true,
			"assessment_section":        section,
			"assessment_difficulty":     difficulty,
			"assessment_questions":      datatypes.NewJSONSlice(questions),
			"assessment_question_count": len(questions),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, r.missingOr(ctx, id, nil)
	}
	return true, nil
}

func (r *GormLeaveRepository) MarkSubmitted(ctx context.Context, id string, sub model.Submission) error {
	res := r.DB.WithContext(ctx).Model(&model.LeaveRequest{}).
		Where("id = ? AND assessment_attempted = ?", id, false).
		Updates(map[string]interface{}{
			"assessment_attempted":          true,
			"assessment_submitted_answers":  datatypes.NewJSONSlice(sub.Answers),
			"assessment_coding_results":     datatypes.NewJSONSlice(sub.CodingResults),
			"assessment_score":              sub.Score,
			"assessment_passed":             sub.Passed,
			"assessment_earned_points":      sub.EarnedPoints,
			"assessment_total_points":       sub.TotalPoints,
			"assessment_pass_threshold":     sub.PassThreshold,
			"assessment_started_at":         sub.StartedAt,
			"assessment_submitted_at":       sub.SubmittedAt,
			"assessment_time_taken_seconds": sub.TimeTakenSeconds,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, id, util.ErrAlreadySubmitted)
	}
	return nil
}

// missingOr 条件写入未命中时区分记录不存在与条件不满足
func (r *GormLeaveRepository) missingOr(ctx context.Context, id string, conflict error) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&model.LeaveRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return util.ErrLeaveNotFound
	}
	return conflict
}
