package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an error reported to one connection.
type ErrorCode string

const (
	CodeMalformedMessage ErrorCode = "MalformedMessage"
	CodeUnknownToken     ErrorCode = "UnknownToken"
	CodeNotInLobby       ErrorCode = "NotInLobby"
	CodeNotYourTurn      ErrorCode = "NotYourTurn"
	CodeNotHost          ErrorCode = "NotHost"
	CodeNotJoined        ErrorCode = "NotJoined"
	CodeAlreadyJoined    ErrorCode = "AlreadyJoined"
	CodeInvalidUsername  ErrorCode = "InvalidUsername"
	CodeUsernameTaken    ErrorCode = "UsernameTaken"
	CodeGameFull         ErrorCode = "GameFull"
	CodeInternal         ErrorCode = "Internal"
)

// Error is both a server message and a Go error.
type Error struct {
	Code    ErrorCode `json:"error"`
	Message string    `json:"message,omitempty"`
}

// Sentinels for errors.Is; only the code is compared.
var (
	ErrMalformedMessage = &Error{Code: CodeMalformedMessage}
	ErrUnknownToken     = &Error{Code: CodeUnknownToken}
	ErrNotInLobby       = &Error{Code: CodeNotInLobby}
	ErrNotYourTurn      = &Error{Code: CodeNotYourTurn}
	ErrNotHost          = &Error{Code: CodeNotHost}
	ErrNotJoined        = &Error{Code: CodeNotJoined}
	ErrAlreadyJoined    = &Error{Code: CodeAlreadyJoined}
	ErrInvalidUsername  = &Error{Code: CodeInvalidUsername}
	ErrUsernameTaken    = &Error{Code: CodeUsernameTaken}
	ErrGameFull         = &Error{Code: CodeGameFull}
)

// NewError builds an error with a human readable message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// AsError converts err into something that can be sent to a client.
// Errors that are not *Error are reported as Internal without details.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: "internal server error"}
}
