package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在或不属于当前用户
	ErrNotFound = errors.New("not found")
	// ErrConflict 唯一约束冲突
	ErrConflict = errors.New("already exists")
	// ErrAccountInUse 账户仍被交易引用，不能删除
	ErrAccountInUse = errors.New("account in use")
	// ErrNoFieldsToUpdate 更新请求没有任何字段
	ErrNoFieldsToUpdate = errors.New("no fields to update")
	// ErrInvalidArgument 参数不合法，如无法解析的日期
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLocalAccountExists 同名本地密码账户已存在，第三方登录不合并
	ErrLocalAccountExists = errors.New("local account already exists")
)

// AccountInUseError 账户仍被交易引用，消息直接返回给客户端
type AccountInUseError struct {
	Transactions int64
}

func (e *AccountInUseError) Error() string {
	return fmt.Sprintf("Cannot delete account: %d transactions exist. Delete transactions first.", e.Transactions)
}

// Is 使 errors.Is(err, ErrAccountInUse) 成立
func (e *AccountInUseError) Is(target error) bool {
	return target == ErrAccountInUse
}

// notFound 把 gorm 的记录不存在转换为 "<entity> not found"，其余错误原样返回
func notFound(entity string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return err
}

// isUniqueViolation 兼容 sqlite 与 mysql 的唯一约束报错
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

// escapeLike 转义 LIKE 中的通配符，配合 ESCAPE '!' 使用
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "!", "!!")
	s = strings.ReplaceAll(s, "%", "!%")
	s = strings.ReplaceAll(s, "_", "!_")
	return s
}

// containsPattern 生成子串匹配 pattern
func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

// round2 金额保留两位小数
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
