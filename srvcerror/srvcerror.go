package srvcerror

import (
	"errors"
	"net/http"
)

type Error struct {
	errorCode  string
	msgToUser  string // public
	dbgInfoErr error  // private, for debugging

	httpStatus int // optional, status returned by the backend
}

func (e *Error) Error() string {
	return e.msgToUser
}

func (e *Error) ErrorCode() string {
	return e.errorCode
}

func (e *Error) DebugInfo() error {
	return e.dbgInfoErr
}

// Unwrap exposes the debug error to errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.dbgInfoErr
}

func (e *Error) SetDebug(err error) *Error {
	e.dbgInfoErr = err
	return e
}

func (e *Error) HttpStatusCode() int {
	if e.httpStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.httpStatus
}

func (e *Error) SetHttpStatusCode(code int) *Error {
	e.httpStatus = code
	return e
}

// WithMessage returns a copy carrying a different user message
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.msgToUser = msg
	return &cp
}

func New(errorCode string, msgToUser string) *Error {
	return &Error{
		errorCode: errorCode,
		msgToUser: msgToUser,
	}
}

// HasCode reports whether err is an *Error with the given code
func HasCode(err error, code string) bool {
	var srvcErr *Error
	if errors.As(err, &srvcErr) {
		return srvcErr.ErrorCode() == code
	}
	return false
}

// UserMessage returns the public message of err, or fallback when err
// is not a service error or carries no message
func UserMessage(err error, fallback string) string {
	var srvcErr *Error
	if errors.As(err, &srvcErr) && srvcErr.Error() != "" {
		return srvcErr.Error()
	}
	return fallback
}

const (
	ErrCodeInternalServerError = "internal_server_error"
	ErrCodeSubmitFailed        = "submit_failed"
	ErrCodeInvalidSubmission   = "invalid_submission"
	ErrCodeChannelFailed       = "channel_failed"
	ErrCodeJudgeTimeout        = "judge_timeout"
	ErrCodeHistoryFetchFailed  = "history_fetch_failed"
	ErrCodeRequestFailed       = "request_failed"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeRateLimited         = "rate_limited"
	ErrCodeNotFound            = "not_found"
	ErrCodeForbidden           = "forbidden"
)

func ErrInternalSE() *Error {
	return New(
		ErrCodeInternalServerError,
		"internal server error",
	).SetHttpStatusCode(http.StatusInternalServerError)
}

func ErrSubmitFailed() *Error {
	return New(ErrCodeSubmitFailed, "Failed to submit code.")
}

func ErrInvalidSubmission(msg string) *Error {
	return New(ErrCodeInvalidSubmission, msg).
		SetHttpStatusCode(http.StatusBadRequest)
}

func ErrChannelFailed() *Error {
	return New(ErrCodeChannelFailed, "Live judging status is unavailable, check the submission history.")
}

func ErrJudgeTimeout() *Error {
	return New(ErrCodeJudgeTimeout, "Judging did not finish in time, check the submission history.")
}

func ErrHistoryFetchFailed() *Error {
	return New(ErrCodeHistoryFetchFailed, "Could not load submission history.")
}

func ErrRequestFailed(msg string) *Error {
	return New(ErrCodeRequestFailed, msg)
}

func ErrUnauthorized() *Error {
	return New(ErrCodeUnauthorized, "unauthorized").
		SetHttpStatusCode(http.StatusUnauthorized)
}

func ErrRateLimited() *Error {
	return New(ErrCodeRateLimited, "rate limited").
		SetHttpStatusCode(http.StatusTooManyRequests)
}

func ErrNotFound(what string) *Error {
	return New(ErrCodeNotFound, what+" not found").
		SetHttpStatusCode(http.StatusNotFound)
}

func ErrForbidden() *Error {
	return New(ErrCodeForbidden, "forbidden").
		SetHttpStatusCode(http.StatusForbidden)
}
