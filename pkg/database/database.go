package database

import (
	"fmt"

	"leave_assessment_backend/internal/config"
	"leave_assessment_backend/internal/model"
	"leave_assessment_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB 打开 MySQL 连接，表结构由 Migrate 单独处理
func InitDB(cfg *config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Database connection established", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

// Migrate 同步本服务的表；attendance_summaries 属于考勤服务，这里建表只为新库能启动
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.LeaveRequest{},
		&model.AttendanceSummary{},
		&model.Quiz{},
		&model.QuizAttempt{},
	); err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return nil
}
