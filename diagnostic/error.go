package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	perrors "github.com/pkg/errors"
)

// Error carries a batch of diagnostics alongside the underlying
// cause, so lint runs can report every finding at once.
type Error struct {
	Err         error
	Diagnostics []error
}

func (e *Error) Error() string {
	var errs []string
	for _, err := range e.Diagnostics {
		errs = append(errs, err.Error())
	}
	return strings.Join(errs, "\n")
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Spans(err error) (spans []*SpanError) {
	var e *Error
	if errors.As(err, &e) {
		for _, err := range e.Diagnostics {
			var span *SpanError
			if errors.As(err, &span) {
				spans = append(spans, span)
			}
		}
		return
	}
	var span *SpanError
	if errors.As(err, &span) {
		spans = append(spans, span)
	}
	return
}

func DisplayError(ctx context.Context, stderr io.Writer, err error) {
	spans := Spans(err)
	if len(spans) == 0 {
		color := Color(ctx)
		fmt.Fprint(stderr, color.Sprintf(
			"%s: %s\n",
			color.Bold(color.Red("error")),
			color.Bold(Cause(err)),
		))
		return
	}
	for _, span := range spans {
		fmt.Fprintf(stderr, "%s\n", span.Pretty(ctx, WithNumContext(1)))
	}
}

func Cause(err error) string {
	return perrors.Cause(err).Error()
}
