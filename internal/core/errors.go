package core

import "fmt"

type ErrorCode string

const (
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeAccountDeactivated ErrorCode = "ACCOUNT_DEACTIVATED"
	CodeWrongAuthMethod    ErrorCode = "WRONG_AUTH_METHOD"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
)

// Error is a domain failure callers can tell apart by Code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// holds regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrAccountDeactivated = &Error{Code: CodeAccountDeactivated, Message: "account is deactivated"}
	ErrWrongAuthMethod    = &Error{Code: CodeWrongAuthMethod, Message: "account uses OAuth sign-in"}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
)

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func notFound(format string, args ...any) *Error {
	return newError(CodeNotFound, fmt.Sprintf(format, args...))
}
