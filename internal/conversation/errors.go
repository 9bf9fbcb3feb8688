package conversation

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of engine failure.
type ErrorCode string

// Engine error codes.
const (
	CodeSessionNotFound            ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionInactive            ErrorCode = "SESSION_INACTIVE"
	CodeNoCurrentQuestion          ErrorCode = "NO_CURRENT_QUESTION"
	CodeStartConversationFailed    ErrorCode = "START_CONVERSATION_FAILED"
	CodeContinueConversationFailed ErrorCode = "CONTINUE_CONVERSATION_FAILED"
	CodeEndConversationFailed      ErrorCode = "END_CONVERSATION_FAILED"
	CodePauseConversationFailed    ErrorCode = "PAUSE_CONVERSATION_FAILED"
	CodeResumeConversationFailed   ErrorCode = "RESUME_CONVERSATION_FAILED"
)

// Sentinels for errors.Is. They match any *Error carrying the same code.
var (
	ErrSessionNotFound            = &Error{Code: CodeSessionNotFound}
	ErrSessionInactive            = &Error{Code: CodeSessionInactive}
	ErrNoCurrentQuestion          = &Error{Code: CodeNoCurrentQuestion}
	ErrStartConversationFailed    = &Error{Code: CodeStartConversationFailed}
	ErrContinueConversationFailed = &Error{Code: CodeContinueConversationFailed}
	ErrEndConversationFailed      = &Error{Code: CodeEndConversationFailed}
	ErrPauseConversationFailed    = &Error{Code: CodePauseConversationFailed}
	ErrResumeConversationFailed   = &Error{Code: CodeResumeConversationFailed}
)

// Error is the typed error returned by every public Engine method.
type Error struct {
	Code        ErrorCode
	SessionID   string
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.SessionID != "" {
		msg += fmt.Sprintf(" (session %s)", e.SessionID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, sessionID string, err error) *Error {
	return &Error{Code: code, SessionID: sessionID, Recoverable: true, Err: err}
}

// wrapError wraps err once in the operation-level code. Errors that already
// carry that code are returned unchanged.
func wrapError(code ErrorCode, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Code == code {
		return err
	}
	if sessionID == "" && ce != nil {
		sessionID = ce.SessionID
	}
	return newError(code, sessionID, err)
}

// CodeOf returns the innermost engine error code in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var code ErrorCode
	for err != nil {
		if ce, ok := err.(*Error); ok {
			code = ce.Code
		}
		err = errors.Unwrap(err)
	}
	return code
}

// IsRecoverable reports whether callers should offer a retry.
func IsRecoverable(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Recoverable
}
