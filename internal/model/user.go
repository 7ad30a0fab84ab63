package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// Requester 当前登录的调用者
type Requester struct {
	UserID uint
	Role   UserRole
}

func (r Requester) IsStaff() bool {
	return r.Role == Teacher || r.Role == Admin
}

// CanAccess 本人或教职工可查看该学生的请假
func (r Requester) CanAccess(studentID uint) bool {
	return r.IsStaff() || r.UserID == studentID
}
