package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParsePositiveInt 解析正整数，解析失败或非正数时返回默认值
func ParsePositiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Pagination 读取 page/limit 查询参数，limit 不超过 MaxPageSize
func Pagination(c *gin.Context) (page, limit int) {
	page = ParsePositiveInt(c.Query("page"), 1)
	limit = ParsePositiveInt(c.Query("limit"), DefaultPageSize)
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
