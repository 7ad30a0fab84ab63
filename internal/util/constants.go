package util

import "leave_assessment_backend/internal/config"

const DateFormat = "2006-01-02"

const (
	DatabaseMySQL = "mysql"
	DatabaseMongo = "mongo"
)

// 单次请求的题目数量上限，只在 HTTP 边界和配置校验处生效
const (
	MaxQuestionCount = config.MaxQuestionCount
	MaxCodingCount   = config.MaxCodingCount
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)
