package interactions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyResponded = errors.New("interaction already responded")
	ErrNotResponded     = errors.New("interaction not yet responded")
	ErrTransportClosed  = errors.New("response transport closed before completion")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Messages shown to users by the dispatcher itself.
const (
	GenericErrorMessage     = "🐛 Something went wrong, please try again later!"
	PermissionDeniedMessage = "⛔ You need to be a Haxxor Bunny admin to use this command"
	UnknownTypeMessage      = "😕 This shouldn't be here..."
)

// BotError is a failure tagged with whether its message may be shown to
// the user. Only the dispatcher decides what is shown; any error that is
// not a displayable BotError is replaced with GenericErrorMessage.
type BotError struct {
	Message         string
	UserDisplayable bool
	Cause           error
}

func (e *BotError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *BotError) Unwrap() error { return e.Cause }

// UserError is a displayable failure caused by the user's input.
func UserError(format string, args ...any) *BotError {
	return &BotError{Message: fmt.Sprintf(format, args...), UserDisplayable: true}
}

// Internal wraps an unexpected failure. Its message is only logged.
func Internal(msg string, cause error) *BotError {
	return &BotError{Message: msg, Cause: cause}
}

// PermissionDenied is returned when a restricted command is invoked by a
// user outside the allow-list.
func PermissionDenied() *BotError {
	return &BotError{Message: PermissionDeniedMessage, UserDisplayable: true}
}

// FieldError lists the arguments that failed validation.
type FieldError struct {
	Fields []string
	Cause  error
}

func (e *FieldError) Error() string {
	return "invalid arguments: " + strings.Join(e.Fields, ", ")
}

func (e *FieldError) Unwrap() error { return e.Cause }

// ArgError builds the one aggregated message naming every offending
// argument.
func ArgError(fields []string, cause error) *BotError {
	return &BotError{
		Message:         "❌ Invalid value for argument(s): `" + strings.Join(fields, "`, `") + "`",
		UserDisplayable: true,
		Cause:           &FieldError{Fields: fields, Cause: cause},
	}
}

// PublicMessage returns what the user may see for err.
func PublicMessage(err error) (string, bool) {
	var be *BotError
	if errors.As(err, &be) && be.UserDisplayable {
		return be.Message, true
	}
	return GenericErrorMessage, false
}
