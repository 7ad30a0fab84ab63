package model

// AttendanceSummary 由考勤服务维护，这里只读
// swagger:model AttendanceSummary
type AttendanceSummary struct {
	BaseModel
	StudentID  uint    `gorm:"uniqueIndex;not null" json:"studentId" bson:"studentId"`
	Percentage float64 `gorm:"default:0" json:"attendancePercentage" bson:"attendancePercentage"`
	IsEligible bool    `gorm:"default:false" json:"isEligible" bson:"isEligible"`
}

func (AttendanceSummary) TableName() string {
	return "attendance_summaries"
}
