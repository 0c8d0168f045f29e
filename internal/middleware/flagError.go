package middleware

import (
	"errors"

	"github.com/MrSnakeDoc/srcwatch/internal/errs"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
)

// ErrLogged marks an error whose message was already shown to the user.
var ErrLogged = errors.New("already logged")

// UsageError is a flag or argument misuse. It matches ErrLogged.
type UsageError struct {
	Code errs.Code
}

func (e *UsageError) Error() string        { return "already logged: " + string(e.Code) }
func (e *UsageError) Is(target error) bool { return target == ErrLogged }

// FlagComboError prints the message for code and returns a UsageError.
func FlagComboError(code errs.Code, a ...any) error {
	logger.LogError("%s", errs.Msg(code, a...))
	return &UsageError{Code: code}
}
