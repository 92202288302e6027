package utils

import (
	"errors"
	"fmt"

	"github.com/dl-alexandre/gdsync/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Auth errors (10-19)
	ExitAuthRequired = 10
	ExitAuthExpired  = 11
	// File operation errors (20-29)
	ExitFileNotFound     = 20
	ExitPermissionDenied = 21
	ExitQuotaExceeded    = 22
	ExitNotDownloadable  = 24
	// Network errors (30-39)
	ExitNetworkError = 30
	ExitTimeout      = 31
	ExitRateLimited  = 32
	ExitCancelled    = 34
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	ExitInvalidPath     = 41
	// Programmer errors (70-79)
	ExitUnsupportedOperation = 70
	ExitDisposed             = 71
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeAuthRequired         = "AUTH_REQUIRED"
	ErrCodeAuthExpired          = "AUTH_EXPIRED"
	ErrCodeFileNotFound         = "FILE_NOT_FOUND"
	ErrCodePermissionDenied     = "PERMISSION_DENIED"
	ErrCodeQuotaExceeded        = "QUOTA_EXCEEDED"
	ErrCodeNotDownloadable      = "NOT_DOWNLOADABLE"
	ErrCodeNetworkError         = "NETWORK_ERROR"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInvalidArgument      = "INVALID_ARGUMENT"
	ErrCodeInvalidPath          = "INVALID_PATH"
	ErrCodePolicyViolation      = "POLICY_VIOLATION"
	ErrCodeCancelled            = "CANCELLED"
	ErrCodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	ErrCodeDisposed             = "DISPOSED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeUnknown              = "UNKNOWN"
)

// Sentinels for errors.Is. Matching is by code, so any AppError carrying the
// same code satisfies errors.Is(err, ErrNotFound).
var (
	ErrNotFound        = &AppError{CLIError: types.CLIError{Code: ErrCodeFileNotFound}}
	ErrInvalidArgument = &AppError{CLIError: types.CLIError{Code: ErrCodeInvalidArgument}}
	ErrCancelled       = &AppError{CLIError: types.CLIError{Code: ErrCodeCancelled}}
	ErrTransport       = &AppError{CLIError: types.CLIError{Code: ErrCodeNetworkError}}
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithDriveReason(reason string) *CLIErrorBuilder {
	b.err.DriveReason = reason
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeAuthRequired:         ExitAuthRequired,
		ErrCodeAuthExpired:          ExitAuthExpired,
		ErrCodeFileNotFound:         ExitFileNotFound,
		ErrCodePermissionDenied:     ExitPermissionDenied,
		ErrCodeQuotaExceeded:        ExitQuotaExceeded,
		ErrCodeNotDownloadable:      ExitNotDownloadable,
		ErrCodeNetworkError:         ExitNetworkError,
		ErrCodeTimeout:              ExitTimeout,
		ErrCodeRateLimited:          ExitRateLimited,
		ErrCodeCancelled:            ExitCancelled,
		ErrCodeInvalidArgument:      ExitInvalidArgument,
		ErrCodeInvalidPath:          ExitInvalidPath,
		ErrCodeUnsupportedOperation: ExitUnsupportedOperation,
		ErrCodeDisposed:             ExitDisposed,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
	cause    error
}

func (e *AppError) Error() string {
	if e.CLIError.Message == "" {
		return e.CLIError.Code
	}
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

// Unwrap exposes the underlying cause, e.g. context.Canceled
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.CLIError.Code == e.CLIError.Code
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

// WrapAppError creates an AppError that unwraps to cause
func WrapAppError(cause error, cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr, cause: cause}
}

// InvalidArgument builds the error returned for blank or malformed inputs
func InvalidArgument(name, message string) *AppError {
	return NewAppError(NewCLIError(ErrCodeInvalidArgument, message).
		WithContext("argument", name).
		Build())
}

// ErrorCode extracts the code of an AppError, or ErrCodeUnknown
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.CLIError.Code
	}
	return ErrCodeUnknown
}
