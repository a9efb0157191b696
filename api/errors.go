package api

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"fintrack/models"
	"fintrack/repository"

	"github.com/gin-gonic/gin"
)

// ErrInternalServer 500 时返回给客户端的统一消息
const ErrInternalServer = "Internal server error"

// respondError 把仓储层错误映射为 HTTP 状态码，500 只返回 fallback，详情写日志
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrAccountInUse):
		Conflict(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, repository.ErrConflict):
		Conflict(c, err.Error())
	case errors.Is(err, repository.ErrNoFieldsToUpdate):
		BadRequest(c, "No valid fields to update")
	case errors.Is(err, repository.ErrInvalidArgument):
		BadRequest(c, err.Error())
	default:
		log.Printf("[API] %s %s 失败: %v", c.Request.Method, c.FullPath(), err)
		if fallback == "" {
			fallback = ErrInternalServer
		}
		InternalError(c, fallback)
	}
}

// parseID 解析路径中的数字 id
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// 接受的时间格式，按顺序尝试
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseFlexibleTime 解析客户端传来的时间，只有日期时 dateOnly 为 true
// 无时区的时间按 UTC 处理
func parseFlexibleTime(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(models.DateLayout, s); err == nil {
		return d, true, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, errors.New("unrecognized time format")
}

// parseEndTime 解析截止时间，纯日期视为当天 23:59:59
func parseEndTime(s string) (time.Time, error) {
	t, dateOnly, err := parseFlexibleTime(s)
	if err != nil {
		return t, err
	}
	if dateOnly {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// validDate 校验 YYYY-MM-DD
func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
