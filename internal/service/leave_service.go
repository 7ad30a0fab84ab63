package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"leave_assessment_backend/internal/config"
	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/internal/repository"
	"leave_assessment_backend/internal/util"
	"leave_assessment_backend/pkg/events"
	"leave_assessment_backend/pkg/logger"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	minDescriptionLength = 10
	maxDescriptionLength = 500
)

type LeaveService struct {
	Repo        repository.LeaveRepository
	Attendance  repository.AttendanceReader
	Assessments *AssessmentService
	Events      events.Publisher
	Config      config.AssessmentConfig

	now func() time.Time
}

func NewLeaveService(
	repo repository.LeaveRepository,
	attendance repository.AttendanceReader,
	assessments *AssessmentService,
	publisher events.Publisher,
	cfg config.AssessmentConfig,
) *LeaveService {
	return &LeaveService{
		Repo:        repo,
		Attendance:  attendance,
		Assessments: assessments,
		Events:      publisher,
		Config:      cfg,
		now:         time.Now,
	}
}

type CreateLeaveRequest struct {
	LeaveType            string `json:"leaveType" binding:"required"`
	Description          string `json:"description" binding:"required"`
	Reason               string `json:"reason"`
	StartDate            string `json:"startDate" binding:"required"`
	EndDate              string `json:"endDate" binding:"required"`
	AssessmentRequired   bool   `json:"assessmentRequired"`
	AssessmentSection    string `json:"assessmentSection"`
	AssessmentDifficulty string `json:"assessmentDifficulty"`
}

type UpdateStatusRequest struct {
	Status         model.LeaveStatus `json:"status" binding:"required"`
	TeacherRemarks string            `json:"teacherRemarks"`
}

// parseDate 支持 2006-01-02 与 RFC 3339，返回 UTC 日期
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(util.DateFormat, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, util.Validation("%s must be a date (YYYY-MM-DD)", field)
		}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (s *LeaveService) validateCreate(req CreateLeaveRequest) (start, end time.Time, err error) {
	if !lo.Contains(model.LeaveTypes, req.LeaveType) {
		return start, end, util.Validation("leaveType must be one of: %s", strings.Join(model.LeaveTypes, ", "))
	}
	n := utf8.RuneCountInString(strings.TrimSpace(req.Description))
	if n < minDescriptionLength || n > maxDescriptionLength {
		return start, end, util.Validation("description must be between %d and %d characters", minDescriptionLength, maxDescriptionLength)
	}
	if start, err = parseDate("startDate", req.StartDate); err != nil {
		return start, end, err
	}
	if end, err = parseDate("endDate", req.EndDate); err != nil {
		return start, end, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.Before(today) {
		return start, end, util.Validation("start date cannot be in the past")
	}
	if end.Before(start) {
		return start, end, util.Validation("end date must be after or equal to start date")
	}
	if req.AssessmentRequired && strings.TrimSpace(req.AssessmentSection) == "" {
		return start, end, util.Validation("assessmentSection is required when an assessment is required")
	}
	return start, end, nil
}

// Create 学生提交请假：记录当时的出勤情况，按需附加评估
func (s *LeaveService) Create(ctx context.Context, requester model.Requester, req CreateLeaveRequest) (*model.LeaveRequest, error) {
	if requester.Role != model.Student {
		return nil, &util.AppError{Kind: util.KindForbidden, Message: "only students can apply for leave"}
	}
	start, end, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	overlapping, err := s.Repo.FindActiveOverlapping(ctx, requester.UserID, start, end)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, util.ErrOverlappingLeave
	}

	leave := &model.LeaveRequest{
		StudentID:   requester.UserID,
		LeaveType:   req.LeaveType,
		Description: strings.TrimSpace(req.Description),
		Reason:      req.Reason,
		StartDate:   start,
		EndDate:     end,
		Status:      model.LeavePending,
	}
	leave.ComputeDays()

	if s.Attendance != nil {
		summary, err := s.Attendance.FindByStudentID(ctx, requester.UserID)
		if err != nil {
			logger.Log.Warn("attendance lookup failed", zap.Uint("studentId", requester.UserID), zap.Error(err))
		} else if summary != nil {
			leave.AttendancePercentage = summary.Percentage
			leave.AttendanceEligible = summary.IsEligible
		}
	}

	var difficulty model.Difficulty
	if req.AssessmentRequired {
		def, derr := model.ParseDifficulty(s.Config.DefaultDifficulty, model.DifficultyMedium)
		if derr != nil {
			def = model.DifficultyMedium
		}
		difficulty, err = model.ParseDifficulty(req.AssessmentDifficulty, def)
		if err != nil {
			return nil, util.Validation("%s", err.Error())
		}
		leave.Assessment.MarkRequired(strings.TrimSpace(req.AssessmentSection), difficulty)
	}

	if err := s.Repo.Create(ctx, leave); err != nil {
		return nil, err
	}
	logger.Log.Info("leave request created",
		zap.String("leaveId", leave.ID),
		zap.Uint("studentId", leave.StudentID),
		zap.Bool("assessmentRequired", req.AssessmentRequired))

	if req.AssessmentRequired && s.Assessments != nil {
		attached, err := s.Assessments.Attach(ctx, leave.ID, AttachRequest{
			Section:    leave.Assessment.Section,
			Difficulty: string(difficulty),
		})
		if err != nil {
			logger.Log.Warn("eager question generation failed, deferring to first fetch",
				zap.String("leaveId", leave.ID), zap.Error(err))
		} else {
			leave = attached
		}
	}

	s.publish(ctx, events.LeaveCreated, leave, map[string]interface{}{
		"leaveType":          leave.LeaveType,
		"numberOfDays":       leave.NumberOfDays,
		"assessmentRequired": leave.Assessment.Required,
	})
	out := leave.WithoutQuestionSet()
	return &out, nil
}

func redactAll(leaves []model.LeaveRequest) []model.LeaveRequest {
	return lo.Map(leaves, func(l model.LeaveRequest, _ int) model.LeaveRequest {
		return l.WithoutQuestionSet()
	})
}

func (s *LeaveService) ListMine(ctx context.Context, studentID uint, page, limit int) ([]model.LeaveRequest, int64, error) {
	leaves, total, err := s.Repo.List(ctx, repository.LeaveFilter{StudentID: studentID, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	return redactAll(leaves), total, nil
}

func (s *LeaveService) ListAll(ctx context.Context, status string, page, limit int) ([]model.LeaveRequest, int64, error) {
	st := model.LeaveStatus(status)
	if st != "" && st != model.LeavePending && st != model.LeaveApproved && st != model.LeaveRejected {
		return nil, 0, util.Validation("status must be pending, approved or rejected")
	}
	leaves, total, err := s.Repo.List(ctx, repository.LeaveFilter{Status: st, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, err
	}
	return redactAll(leaves), total, nil
}

func (s *LeaveService) Get(ctx context.Context, id string, requester model.Requester) (*model.LeaveRequest, error) {
	leave, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.CanAccess(leave.StudentID) {
		return nil, util.ErrPermissionDenied
	}
	out := leave.WithoutQuestionSet()
	return &out, nil
}

// UpdateStatus 审批待处理的请假
func (s *LeaveService) UpdateStatus(ctx context.Context, id string, reviewer model.Requester, req UpdateStatusRequest) (*model.LeaveRequest, error) {
	if req.Status != model.LeaveApproved && req.Status != model.LeaveRejected {
		return nil, util.Validation("please provide a valid status (approved or rejected)")
	}
	leave, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.Status != model.LeavePending {
		return nil, util.ErrLeaveAlreadyDecided
	}
	if req.Status == model.LeaveApproved && !leave.ReadyForApproval() {
		logger.Log.Info("leave approved without meeting attendance or assessment criteria",
			zap.String("leaveId", id),
			zap.Bool("attendanceEligible", leave.AttendanceEligible),
			zap.Bool("assessmentPassed", leave.Assessment.Passed))
	}

	at := s.now()
	if err := s.Repo.UpdateReview(ctx, id, req.Status, reviewer.UserID, req.TeacherRemarks, at); err != nil {
		return nil, err
	}
	reviewerID := reviewer.UserID
	leave.Status = req.Status
	leave.ReviewedBy = &reviewerID
	leave.ReviewedAt = &at
	leave.TeacherRemarks = req.TeacherRemarks

	s.publish(ctx, events.LeaveReviewed, leave, map[string]interface{}{"status": req.Status})
	out := leave.WithoutQuestionSet()
	return &out, nil
}

// Delete 学生撤回自己待审批的请假
func (s *LeaveService) Delete(ctx context.Context, id string, requester model.Requester) error {
	leave, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if leave.StudentID != requester.UserID {
		return util.ErrPermissionDenied
	}
	if leave.Status != model.LeavePending {
		return util.ErrLeaveAlreadyDecided
	}
	return s.Repo.DeletePending(ctx, id)
}

func (s *LeaveService) Stats(ctx context.Context, studentID uint) (*model.LeaveStats, error) {
	leaves, _, err := s.Repo.List(ctx, repository.LeaveFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	stats := &model.LeaveStats{}
	for _, l := range leaves {
		stats.Total++
		stats.TotalDaysRequested += l.NumberOfDays
		switch l.Status {
		case model.LeavePending:
			stats.Pending++
		case model.LeaveApproved:
			stats.Approved++
			stats.TotalDaysApproved += l.NumberOfDays
		case model.LeaveRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func (s *LeaveService) publish(ctx context.Context, eventType string, leave *model.LeaveRequest, data interface{}) {
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
