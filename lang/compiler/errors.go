package compiler

import (
	"fmt"
	"strings"
)

// Error is a single compile-time diagnostic, carrying the source line and
// the offending lexeme alongside the message.
type Error struct {
	Line  int
	Where string // the lexeme at which the error was reported, if any
	Msg   string
}

func (e *Error) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("[line %d] Error at '%s': %s", e.Line, e.Where, e.Msg)
}

// ErrorList aggregates every error reported during a single compilation, in
// report order. Because the compiler synchronizes after each error and
// keeps parsing, a single bad program can surface more than one diagnostic.
type ErrorList []*Error

func (el ErrorList) Error() string {
	switch len(el) {
	case 0:
		return "no errors"
	case 1:
		return el[0].Error()
	}
	var sb strings.Builder
	for i, e := range el {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Unwrap allows errors.Is/As to see through the list to each individual
// Error.
func (el ErrorList) Unwrap() []error {
	errs := make([]error, len(el))
	for i, e := range el {
		errs[i] = e
	}
	return errs
}
