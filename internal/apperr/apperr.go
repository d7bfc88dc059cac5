// Package apperr is the error taxonomy shared by the messaging core and the
// HTTP layer. Every mutation failure carries a Code the API maps to a status
// and a Message that is safe to show to the user.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnauthenticated        Code = "UNAUTHENTICATED"
	CodeNotAMember             Code = "NOT_A_MEMBER"
	CodeForbidden              Code = "FORBIDDEN"
	CodeNotFound               Code = "NOT_FOUND"
	CodeInvalidReference       Code = "INVALID_REFERENCE"
	CodeInvalidOperation       Code = "INVALID_OPERATION"
	CodeInvalidArgument        Code = "INVALID_ARGUMENT"
	CodeRateLimited            Code = "RATE_LIMITED"
	CodeInvalidOrExpiredInvite Code = "INVALID_OR_EXPIRED_INVITE"
	CodeAlreadyMember          Code = "ALREADY_MEMBER"
	CodeInternal               Code = "INTERNAL"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on Code so sentinel values below work with errors.Is even
// when the message differs.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Unauthenticated(msg string) error  { return New(CodeUnauthenticated, msg) }
func NotAMember(msg string) error       { return New(CodeNotAMember, msg) }
func Forbidden(msg string) error        { return New(CodeForbidden, msg) }
func NotFound(msg string) error         { return New(CodeNotFound, msg) }
func InvalidReference(msg string) error { return New(CodeInvalidReference, msg) }
func InvalidOperation(msg string) error { return New(CodeInvalidOperation, msg) }
func InvalidArg(msg string) error       { return New(CodeInvalidArgument, msg) }
func RateLimited(msg string) error      { return New(CodeRateLimited, msg) }

func Internal(cause error) error {
	return Wrap(CodeInternal, "internal server error", cause)
}

// CodeOf classifies any error. Errors that are not an *AppError are INTERNAL.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// MessageOf returns the user-presentable message for err.
func MessageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}
