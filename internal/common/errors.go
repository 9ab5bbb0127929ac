package common

import (
	"errors"
	"fmt"
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

// Error codes carried by AppError. One code per failure class; per-document
// failures never abort a batch, CONFIG_ERROR is fatal at startup. Degraded
// pages, parse gaps and reconciliation mismatches are validation findings,
// not errors.
const (
	CodeFatalInput = "FATAL_INPUT"
	CodeTemplate   = "TEMPLATE_ERROR"
	CodeConfig     = "CONFIG_ERROR"
	CodeOversized  = "OVERSIZED_INPUT"
)

// Common application errors
var (
	ErrFatalInput     = errors.New("document unreadable")
	ErrTemplate       = errors.New("template error")
	ErrConfig         = errors.New("invalid configuration")
	ErrOversizedInput = errors.New("input exceeds size limit")
	ErrInvalidInput   = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// FatalInputError marks a document as unreadable beyond recovery.
func FatalInputError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrFatalInput
	}
	return NewAppError(CodeFatalInput, message, cause)
}

// TemplateError aborts template output for a single document.
func TemplateError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrTemplate
	}
	return NewAppError(CodeTemplate, message, cause)
}

func TemplateErrorf(format string, args ...interface{}) *AppError {
	return TemplateError(fmt.Sprintf(format, args...), nil)
}

// ConfigError is fatal at startup, before any document is processed.
func ConfigError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrConfig
	}
	return NewAppError(CodeConfig, message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code == code
	}
	return false
}
