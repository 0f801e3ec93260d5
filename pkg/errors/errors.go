// Package errors defines the typed error codes the ledger services return.
// Callers branch on Code; transports read Metadata to pick a status.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeTransactionAborted Code = "TRANSACTION_ABORTED"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a transport should surface a code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, public string, retryable, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: public, DetailsAllowed: details}
}

var codeTable = map[Code]Metadata{
	CodeValidation:         meta(http.StatusBadRequest, "validation failed", false, true),
	CodeNotFound:           meta(http.StatusNotFound, "resource not found", false, false),
	CodeInvalidState:       meta(http.StatusUnprocessableEntity, "state transition disallowed", false, true),
	CodeInsufficientFunds:  meta(http.StatusUnprocessableEntity, "insufficient available balance", false, true),
	CodeTransactionAborted: meta(http.StatusConflict, "transaction aborted", true, false),
	CodeInternal:           meta(http.StatusInternalServerError, "internal server error", true, false),
	CodeDependency:         meta(http.StatusServiceUnavailable, "dependency unavailable", true, true),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := codeTable[code]; ok {
		return m
	}
	return codeTable[CodeInternal]
}

// Error is a coded error with an optional cause and structured details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches cause to a new coded error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries a typed error with the given code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether the caller may retry the operation that produced
// err. Untyped errors are treated as internal and therefore retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}

// AbortedUnlessTyped passes typed errors through and wraps anything else
// raised inside a transaction scope as CodeTransactionAborted.
func AbortedUnlessTyped(err error, message string) error {
	if err == nil || As(err) != nil {
		return err
	}
	return Wrap(CodeTransactionAborted, err, message)
}
