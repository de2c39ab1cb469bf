package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError carries an error code and the HTTP status it maps to.
type AppError struct {
	Code   string
	Status int
	Msg    string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Msg {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *AppError) ErrorCode() string {
	return e.Code
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError without an underlying cause.
func New(code string, status int, msg string) *AppError {
	return &AppError{
		Code:   code,
		Status: status,
		Msg:    msg,
	}
}

// Wrap attaches a code, status and client-facing message to err.
func Wrap(err error, code string, status int, msg string) *AppError {
	return &AppError{
		Code:   code,
		Status: status,
		Msg:    msg,
		Err:    err,
	}
}

func NotFound(code string, msg string) *AppError {
	return New(code, http.StatusNotFound, msg)
}

func Unauthorized(code string, msg string) *AppError {
	return New(code, http.StatusUnauthorized, msg)
}

func BadRequest(code string, msg string) *AppError {
	return New(code, http.StatusBadRequest, msg)
}

func Internal(err error, msg string) *AppError {
	return Wrap(err, ErrInternalServer, http.StatusInternalServerError, msg)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code string) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}
