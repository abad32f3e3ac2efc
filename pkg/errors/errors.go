// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidArg     = errors.New("invalid argument")
	ErrUnavailable    = errors.New("upstream unavailable")
	ErrBudgetExceeded = errors.New("daily token budget exceeded")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// StageError 标记失败发生在哪个处理阶段
type StageError struct {
	Stage string
	Err   error
}

// Error 实现 error 接口
func (e *StageError) Error() string {
	return fmt.Sprintf("%s 阶段错误: %v", e.Stage, e.Err)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError 创建阶段错误；err 为 nil 时返回 nil
func NewStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf 返回错误链中最外层的阶段名，不存在时为空
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
