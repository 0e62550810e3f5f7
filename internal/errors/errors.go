package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	// CodeLoad marks a dataset that is missing, unreadable or lacks a required column.
	// It is fatal at startup.
	CodeLoad ErrorCode = "LOAD_ERROR"
	// CodeInvalidArg rejects caller input before any aggregation work starts.
	CodeInvalidArg ErrorCode = "INVALID_ARGUMENT"
	CodeRateLimit  ErrorCode = "RATE_LIMIT_EXCEEDED"
)

var statusCodes = map[ErrorCode]int{
	CodeInternal:   http.StatusInternalServerError,
	CodeLoad:       http.StatusServiceUnavailable,
	CodeInvalidArg: http.StatusBadRequest,
	CodeRateLimit:  http.StatusTooManyRequests,
}

type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	status, ok := statusCodes[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

func Load(message string) *AppError {
	return New(CodeLoad, message)
}

func LoadWrap(err error, message string) *AppError {
	return Wrap(err, CodeLoad, message)
}

func InvalidArgument(message string) *AppError {
	return New(CodeInvalidArg, message)
}

func InvalidArgumentf(format string, args ...any) *AppError {
	return New(CodeInvalidArg, fmt.Sprintf(format, args...))
}

func RateLimit(message string) *AppError {
	return New(CodeRateLimit, message)
}

func WithDetails(err *AppError, details string) *AppError {
	err.Details = details
	return err
}

// From returns the *AppError in err's chain, or an internal error wrapping err.
func From(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "An unexpected error occurred")
}

// HasCode reports whether err is, or wraps, an *AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes the JSON error envelope. Client errors log at warn, the rest at error.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	appErr := From(err)
	appErr.RequestID = requestID

	if encodeErr := writeJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr}); encodeErr != nil {
		logger.Error("failed to encode error response",
			"encode_error", encodeErr,
			"original_error", err,
			"request_id", requestID,
		)
		return
	}

	level := slog.LevelError
	if appErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "request failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	_ = writeJSON(w, http.StatusOK, SuccessResponse{Data: data, Success: true})
}

func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	WriteSuccess(w, data)
}
