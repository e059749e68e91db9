package formula

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax            = errors.New("syntax error")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrNonNumeric        = errors.New("non-numeric result")
)

// Error is returned for every compile and evaluation failure. Kind is one of
// the package sentinels, so callers can match with errors.Is.
type Error struct {
	Kind  error
	Pos   int
	Ident string
	Msg   string
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrUndefinedVariable:
		return fmt.Sprintf("Undefined symbol %s", e.Ident)
	case e.Kind == ErrDivisionByZero:
		return "Division by zero"
	case e.Pos >= 0 && e.Kind == ErrSyntax:
		return fmt.Sprintf("%s (char %d)", e.Msg, e.Pos+1)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func syntaxErr(pos int, format string, args ...any) *Error {
	return &Error{Kind: ErrSyntax, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func undefinedErr(pos int, name string) *Error {
	return &Error{Kind: ErrUndefinedVariable, Pos: pos, Ident: name}
}

func divisionErr(pos int) *Error {
	return &Error{Kind: ErrDivisionByZero, Pos: pos}
}

func nonNumericErr(pos int, format string, args ...any) *Error {
	return &Error{Kind: ErrNonNumeric, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
