package linter

import (
	"fmt"
	"strings"

	"github.com/pkgdev/pkgdev/pkg/filebuffer"
)

// PosError is implemented by findings that point at a span of source.
type PosError interface {
	error
	Span() (start, end filebuffer.Position)
}

type ErrLint struct {
	Filename string
	Errs     []error
}

func (e ErrLint) Error() string {
	var errs []string
	for _, err := range e.Errs {
		errs = append(errs, err.Error())
	}
	return strings.Join(errs, "\n")
}

type ErrParse struct {
	Pos     filebuffer.Position
	Message string
}

func (e ErrParse) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
}

func (e ErrParse) Span() (start, end filebuffer.Position) {
	return e.Pos, e.Pos
}

type ErrUnknownKey struct {
	Pos        filebuffer.Position
	End        filebuffer.Position
	Key        string
	Suggestion string
}

func (e ErrUnknownKey) Error() string {
	msg := fmt.Sprintf("%s:%d:%d: unknown setting %q", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Key)
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s, did you mean %q?", msg, e.Suggestion)
	}
	return msg
}

func (e ErrUnknownKey) Span() (start, end filebuffer.Position) {
	return e.Pos, e.End
}

type ErrDuplicateKey struct {
	Pos   filebuffer.Position
	End   filebuffer.Position
	Key   string
	First filebuffer.Position
}

func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("%s:%d:%d: duplicate setting %q, first set on line %d",
		e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Key, e.First.Line)
}

func (e ErrDuplicateKey) Span() (start, end filebuffer.Position) {
	return e.Pos, e.End
}
