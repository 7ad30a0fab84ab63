package model

import (
	"math"
	"time"
)

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

var LeaveTypes = []string{"Sick Leave", "Personal Leave", "Family Emergency", "Medical Leave", "Other"}

// swagger:model LeaveRequest
type LeaveRequest struct {
	UUIDBase             `bson:",inline"`
	StudentID            uint           `gorm:"index;not null" json:"studentId" bson:"studentId"`
	LeaveType            string         `gorm:"size:32;not null" json:"leaveType" bson:"leaveType"`
	Description          string         `gorm:"size:500;not null" json:"description" bson:"description"`
	Reason               string         `gorm:"type:text" json:"reason,omitempty" bson:"reason,omitempty"`
	StartDate            time.Time      `gorm:"not null;index" json:"startDate" bson:"startDate"`
	EndDate              time.Time      `gorm:"not null;index" json:"endDate" bson:"endDate"`
	NumberOfDays         int            `json:"numberOfDays" bson:"numberOfDays"`
	Status               LeaveStatus    `gorm:"size:16;default:'pending';index" json:"status" bson:"status"`
	AttendancePercentage float64        `json:"attendancePercentage" bson:"attendancePercentage"`
	AttendanceEligible   bool           `json:"attendanceEligible" bson:"attendanceEligible"`
	ReviewedBy           *uint          `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	TeacherRemarks       string         `gorm:"type:text" json:"teacherRemarks,omitempty" bson:"teacherRemarks,omitempty"`
	ReviewedAt           *time.Time     `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	Assessment           AssessmentSpec `gorm:"embedded;embeddedPrefix:assessment_" json:"assessment" bson:"assessment"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// ComputeDays 按自然日计算，首尾都算
func (l *LeaveRequest) ComputeDays() {
	diff := l.EndDate.Sub(l.StartDate).Hours() / 24
	l.NumberOfDays = int(math.Ceil(diff)) + 1
}

// Overlaps 判断 [start,end] 是否与本次请假重叠
func (l *LeaveRequest) Overlaps(start, end time.Time) bool {
	return !l.StartDate.After(end) && !l.EndDate.Before(start)
}

// ReadyForApproval 出勤达标，且需要评估时已通过
func (l *LeaveRequest) ReadyForApproval() bool {
	if l.Assessment.Required && !l.Assessment.Passed {
		return false
	}
	return l.AttendanceEligible
}

// LeaveStats 学生请假按状态汇总
type LeaveStats struct {
	Total              int `json:"total"`
	Pending            int `json:"pending"`
	Approved           int `json:"approved"`
	Rejected           int `json:"rejected"`
	TotalDaysRequested int `json:"totalDaysRequested"`
	TotalDaysApproved  int `json:"totalDaysApproved"`
}

// WithoutQuestionSet 列表用副本：去掉题目（含答案）和原始作答，保留数量与结果
func (l LeaveRequest) WithoutQuestionSet() LeaveRequest {
	l.Assessment.Questions = nil
	l.Assessment.SubmittedAnswers = nil
	return l
}
