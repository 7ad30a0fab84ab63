package repository

import (
	"context"
	"errors"

	"leave_assessment_backend/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// AttendanceReader 查询学生出勤汇总，无记录返回 nil
type AttendanceReader interface {
	FindByStudentID(ctx context.Context, studentID uint) (*model.AttendanceSummary, error)
}

type AttendanceRepository struct {
	DB *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db}
}

func (r *AttendanceRepository) FindByStudentID(ctx context.Context, studentID uint) (*model.AttendanceSummary, error) {
	var summary model.AttendanceSummary
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

type MongoAttendanceRepository struct {
	coll *mongo.Collection
}

func NewMongoAttendanceRepository(db *mongo.Database) *MongoAttendanceRepository {
	return &MongoAttendanceRepository{coll: db.Collection("attendance_summaries")}
}

func (r *MongoAttendanceRepository) FindByStudentID(ctx context.Context, studentID uint) (*model.AttendanceSummary, error) {
	var summary model.AttendanceSummary
	err := r.coll.FindOne(ctx, bson.M{"studentId": studentID}).Decode(&summary)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
