package common

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternal            = errors.New("internal error")
	ErrDatabase            = errors.New("database error")
	ErrValidation          = errors.New("validation failed")
	ErrUnsupportedFileType = constants.ErrUnsupportedFileType
	ErrConfiguration       = errors.New("backend not configured")
	ErrNotReady            = errors.New("extraction not ready")
	ErrExtractionFailure   = errors.New("extraction failed")
)

// Error codes carried by AppError.Code.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnsupportedFile = "UNSUPPORTED_FILE_TYPE"
	CodeConfiguration   = "CONFIG_ERROR"
	CodeNotReady        = "NOT_READY"
	CodeExtraction      = "EXTRACTION_FAILED"
	CodeDatabase        = "DB_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NotFound(what string, id any) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s %v not found", what, id), ErrNotFound)
}

func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func ConfigurationError(message string) *AppError {
	return NewAppError(CodeConfiguration, message, ErrConfiguration)
}

func NotReady(message string) *AppError {
	return NewAppError(CodeNotReady, message, ErrNotReady)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ToStatus maps an application error onto a gRPC status for transport layers.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedFileType), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrConfiguration):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Truncate caps s at n characters (runes).
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for count := 0; i < len(s); count++ {
		if count == n {
			return s[:i]
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s
}
