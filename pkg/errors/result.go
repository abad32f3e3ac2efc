package errors

import (
	"errors"
)

// Kind 失败分类，子系统边界按 Kind 决定如何降级
type Kind int

const (
	KindNone Kind = iota
	KindUpstream
	KindBudget
	KindValidation
	KindNotFound
	KindInternal
)

// String 返回 Kind 的名称，用于日志与指标标签
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUpstream:
		return "upstream"
	case KindBudget:
		return "budget"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Result 带标签的结果：Ok(value) 或 Err(kind)，调用方必须显式检查
type Result[T any] struct {
	value T
	kind  Kind
	err   error
}

// Ok 构造成功结果
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail 构造失败结果，可同时携带降级后的值（如兜底文案）
func Fail[T any](kind Kind, err error, degraded T) Result[T] {
	if kind == KindNone {
		kind = KindInternal
	}
	return Result[T]{value: degraded, kind: kind, err: err}
}

// IsOk 是否成功
func (r Result[T]) IsOk() bool { return r.kind == KindNone }

// Kind 返回失败分类，成功时为 KindNone
func (r Result[T]) Kind() Kind { return r.kind }

// Err 返回底层错误，成功时为 nil
func (r Result[T]) Err() error { return r.err }

// Value 返回值；失败时为降级值
func (r Result[T]) Value() T { return r.value }

// Unwrap 以 Go 惯用形式返回 (value, error)
func (r Result[T]) Unwrap() (T, error) {
	if r.IsOk() {
		return r.value, nil
	}
	if r.err == nil {
		return r.value, errors.New(r.kind.String())
	}
	return r.value, r.err
}

// KindOf 根据哨兵错误推断 Kind
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBudgetExceeded):
		return KindBudget
	case errors.Is(err, ErrInvalidArg):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnavailable):
		return KindUpstream
	default:
		return KindInternal
	}
}
