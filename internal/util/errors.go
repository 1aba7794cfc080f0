package util

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 错误类别，对外暴露为稳定的 reason code
type ErrorKind string

const (
	KindUnauthenticated         ErrorKind = "UNAUTHENTICATED"
	KindInvalidReference        ErrorKind = "INVALID_REFERENCE"
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindQuizNotRunning          ErrorKind = "QUIZ_NOT_RUNNING"
	KindNotAssigned             ErrorKind = "NOT_ASSIGNED"
	KindAttemptLimitReached     ErrorKind = "ATTEMPT_LIMIT_REACHED"
	KindAttemptAlreadyCompleted ErrorKind = "ATTEMPT_ALREADY_COMPLETED"
	KindForbidden               ErrorKind = "FORBIDDEN"
	KindAlreadySubmitted        ErrorKind = "ALREADY_SUBMITTED"
	KindValidationFailure       ErrorKind = "VALIDATION_FAILURE"
	KindStorageFailure          ErrorKind = "STORAGE_FAILURE"
	KindConflict                ErrorKind = "CONFLICT"
	KindInvalidCredentials      ErrorKind = "INVALID_CREDENTIALS"
	KindNotVerified             ErrorKind = "NOT_VERIFIED"
	KindNotApproved             ErrorKind = "NOT_APPROVED"
)

// AppError carries a kind plus an optional cause.
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

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind, so wrapped sentinels compare by kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// Validation 构造带字段描述的校验错误
func Validation(format string, args ...interface{}) *AppError {
	return NewError(KindValidationFailure, fmt.Sprintf(format, args...))
}

// StorageFailure 主存储操作失败，调用方可重试
func StorageFailure(op string, err error) *AppError {
	return WrapError(KindStorageFailure, op+" failed", err)
}

var (
	ErrUnauthenticated         = NewError(KindUnauthenticated, "unauthenticated")
	ErrInvalidReference        = NewError(KindInvalidReference, "invalid reference")
	ErrQuizNotFound            = NewError(KindNotFound, "quiz not found")
	ErrAttemptNotFound         = NewError(KindNotFound, "attempt not found")
	ErrUserNotFound            = NewError(KindNotFound, "user not found")
	ErrQuizNotRunning          = NewError(KindQuizNotRunning, "quiz is not currently running")
	ErrNotAssigned             = NewError(KindNotAssigned, "quiz is not assigned to this user")
	ErrAttemptLimitReached     = NewError(KindAttemptLimitReached, "attempt limit reached")
	ErrAttemptAlreadyCompleted = NewError(KindAttemptAlreadyCompleted, "user already attempted this quiz")
	ErrPermissionDenied        = NewError(KindForbidden, "permission denied")
	ErrAlreadySubmitted        = NewError(KindAlreadySubmitted, "attempt already submitted")
	ErrAttemptNotCompleted     = NewError(KindConflict, "attempt is not completed")
	ErrQuizLive                = NewError(KindConflict, "questions cannot change once the quiz window has started")
	ErrEmailRegistered         = NewError(KindConflict, "email already registered")
	ErrSuperadminExists        = NewError(KindForbidden, "a superadmin already exists")
	ErrInvalidCredentials      = NewError(KindInvalidCredentials, "invalid email or password")
	ErrEmailNotVerified        = NewError(KindNotVerified, "email not verified")
	ErrAccountNotApproved      = NewError(KindNotApproved, "account is not approved yet")
	ErrOTPInvalid              = NewError(KindValidationFailure, "invalid otp")
	ErrOTPExpired              = NewError(KindValidationFailure, "otp expired or not found")
	ErrOTPCooldown             = NewError(KindConflict, "otp requested too recently")
	ErrResetTokenInvalid       = NewError(KindValidationFailure, "password reset token is invalid or has expired")
	ErrPasswordMismatch        = NewError(KindValidationFailure, "passwords do not match")
	ErrTokenRevoked            = NewError(KindUnauthenticated, "token has been revoked")
)

// KindOf 返回错误类别，非 AppError 返回空串
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// HTTPStatus 错误类别到 HTTP 状态码的映射
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindUnauthenticated, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindInvalidReference, KindQuizNotRunning:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotAssigned, KindForbidden, KindNotVerified, KindNotApproved:
		return http.StatusForbidden
	case KindAttemptLimitReached, KindAttemptAlreadyCompleted, KindAlreadySubmitted, KindConflict:
		return http.StatusConflict
	case KindValidationFailure:
		return http.StatusUnprocessableEntity
	case KindStorageFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
