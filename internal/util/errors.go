package util

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类，决定 HTTP 状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUpstream
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// AppError 业务层统一错误
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is 类型与信息一致即视为同一错误，包装后仍可 errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func newKind(kind ErrorKind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func Validation(format string, args ...interface{}) error {
	return newKind(KindValidation, fmt.Sprintf(format, args...))
}

func NotFoundErr(format string, args ...interface{}) error {
	return newKind(KindNotFound, fmt.Sprintf(format, args...))
}

func Upstream(msg string, err error) error {
	return &AppError{Kind: KindUpstream, Message: msg, Err: err}
}

// KindOf 取错误分类，未知错误视为内部错误
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

var (
	ErrPermissionDenied    = newKind(KindForbidden, "you do not have access to this leave request")
	ErrLeaveNotFound       = newKind(KindNotFound, "leave request not found")
	ErrNotEligible         = newKind(KindValidation, "no assessment is required for this leave request")
	ErrAlreadySubmitted    = newKind(KindConflict, "assessment already submitted")
	ErrQuestionSetFrozen   = newKind(KindConflict, "question set already generated and cannot be regenerated")
	ErrQuestionsNotReady   = newKind(KindConflict, "assessment questions have not been generated yet")
	ErrLeaveAlreadyDecided = newKind(KindConflict, "leave request has already been reviewed")
	ErrOverlappingLeave    = newKind(KindConflict, "you already have a leave request for this period")
	ErrUnsupportedLanguage = newKind(KindValidation, "unsupported language")
	ErrExecutionTimeout    = newKind(KindTimeout, "execution timeout - please try again")
	ErrGeneration          = newKind(KindInternal, "could not produce the requested number of questions")
)

var (
	ErrQuizNotFound         = newKind(KindNotFound, "quiz not found")
	ErrQuizAlreadyAttempted = newKind(KindConflict, "you have already attempted this quiz")
	ErrQuizNotAttempted     = newKind(KindNotFound, "you have not attempted this quiz")
)
