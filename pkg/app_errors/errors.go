package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInternalServerError = errors.New("internal server error")

	ErrUserNotFound     = errors.New("user not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAttendeeNotFound = errors.New("attendee not found")
	ErrFileNotFound     = errors.New("file not found")

	ErrNotBookable               = errors.New("schedule is not available for booking")
	ErrCapacityExceeded          = errors.New("not enough capacity for this schedule")
	ErrCapacityViolation         = errors.New("capacity cannot be reduced below booked count")
	ErrOutsideModificationWindow = errors.New("booking can no longer be modified")
	ErrMinimumAttendeeViolation  = errors.New("a booking must have at least one attendee")
	ErrInvalidTransition         = errors.New("invalid booking status transition")
	ErrResourceInUse             = errors.New("resource is in use")
	ErrConflict                  = errors.New("resource was modified concurrently, retry")
)

// 回傳給客戶端的錯誤代碼，版本間不變
const (
	CodeInvalidInput              = "INVALID_INPUT"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"
	CodeNotFound                  = "NOT_FOUND"
	CodeNotBookable               = "NOT_BOOKABLE"
	CodeCapacityExceeded          = "CAPACITY_EXCEEDED"
	CodeCapacityViolation         = "CAPACITY_VIOLATION"
	CodeOutsideModificationWindow = "OUTSIDE_MODIFICATION_WINDOW"
	CodeMinimumAttendeeViolation  = "MINIMUM_ATTENDEE_VIOLATION"
	CodeInvalidTransition         = "INVALID_TRANSITION"
	CodeResourceInUse             = "RESOURCE_IN_USE"
	CodeConflict                  = "CONFLICT"
	CodeInternal                  = "INTERNAL_ERROR"
)

// DetailedError 帶有人類可讀原因的錯誤，errors.Is 仍可比對到原始 sentinel
type DetailedError struct {
	err    error
	detail string
	fields map[string]interface{}
}

func (e *DetailedError) Error() string {
	return fmt.Sprintf("%s: %s", e.err.Error(), e.detail)
}

func (e *DetailedError) Unwrap() error {
	return e.err
}

// WithDetail 為 sentinel error 附上可直接顯示的原因
func WithDetail(err error, format string, args ...interface{}) error {
	return &DetailedError{err: err, detail: fmt.Sprintf(format, args...)}
}

// WithFields 同 WithDetail，另附上回傳給客戶端的數值（例如剩餘名額、剩餘天數）
func WithFields(err error, fields map[string]interface{}, format string, args ...interface{}) error {
	return &DetailedError{err: err, detail: fmt.Sprintf(format, args...), fields: fields}
}

// Fields 取出 WithFields 附上的數值，沒有時為 nil
func Fields(err error) map[string]interface{} {
	var de *DetailedError
	if errors.As(err, &de) {
		return de.fields
	}
	return nil
}

// Detail 取出 WithDetail 附上的原因，沒有時為空字串
func Detail(err error) string {
	var de *DetailedError
	if errors.As(err, &de) {
		return de.detail
	}
	return ""
}

// Code 錯誤對應的代碼
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrNotBookable):
		return CodeNotBookable
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrCapacityViolation):
		return CodeCapacityViolation
	case errors.Is(err, ErrOutsideModificationWindow):
		return CodeOutsideModificationWindow
	case errors.Is(err, ErrMinimumAttendeeViolation):
		return CodeMinimumAttendeeViolation
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrResourceInUse):
		return CodeResourceInUse
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrAttendeeNotFound) ||
		errors.Is(err, ErrFileNotFound)
}
