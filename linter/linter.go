// Package linter checks settings files against the known settings
// collected from a package's defaults.
package linter

import (
	"context"
	"errors"

	"github.com/pkgdev/pkgdev/diagnostic"
	"github.com/pkgdev/pkgdev/pkg/filebuffer"
	"github.com/pkgdev/pkgdev/settings"
)

type Linter struct {
	known           *settings.KnownSettings
	allowUnknown    bool
	allowDuplicates bool
}

type LintOption func(*Linter)

// WithKnownSettings enables unknown key reporting against ks.
func WithKnownSettings(ks *settings.KnownSettings) LintOption {
	return func(l *Linter) {
		l.known = ks
	}
}

func WithoutUnknownKeys() LintOption {
	return func(l *Linter) {
		l.allowUnknown = true
	}
}

func WithoutDuplicateKeys() LintOption {
	return func(l *Linter) {
		l.allowDuplicates = true
	}
}

// Lint scans a settings file and reports every finding at once. The
// file buffer is registered on ctx so findings can be rendered with
// source excerpts afterwards.
func Lint(ctx context.Context, filename string, src []byte, opts ...LintOption) error {
	linter := Linter{}
	for _, opt := range opts {
		opt(&linter)
	}

	fb := filebuffer.New(filename)
	_, err := fb.Write(src)
	if err != nil {
		return err
	}
	filebuffer.Buffers(ctx).Set(filename, fb)

	file, err := settings.Scan(string(src))
	if err != nil {
		return ErrLint{filename, []error{
			ErrParse{fb.Position(1, 1), err.Error()},
		}}
	}

	var (
		errs  []error
		first = make(map[string]filebuffer.Position)
	)
	for _, occ := range file.Keys {
		start := fb.Position(occ.Line, occ.Column)
		// Span covers the quoted key.
		end := fb.Position(occ.Line, occ.Column+len(occ.Key)+2)

		if pos, ok := first[occ.Key]; ok {
			if !linter.allowDuplicates {
				errs = append(errs, ErrDuplicateKey{start, end, occ.Key, pos})
			}
		} else {
			first[occ.Key] = start
		}

		if linter.known != nil && !linter.allowUnknown && !linter.known.Has(occ.Key) {
			errs = append(errs, ErrUnknownKey{
				Pos:        start,
				End:        end,
				Key:        occ.Key,
				Suggestion: diagnostic.Suggestion(occ.Key, linter.known.Keys()),
			})
		}
	}

	if len(errs) > 0 {
		return ErrLint{filename, errs}
	}
	return nil
}

// SpanErrors converts lint findings into renderable span errors.
func SpanErrors(err error) []*diagnostic.SpanError {
	var lintErr ErrLint
	if !errors.As(err, &lintErr) {
		return nil
	}
	var spans []*diagnostic.SpanError
	for _, err := range lintErr.Errs {
		posErr, ok := err.(PosError)
		if !ok {
			continue
		}
		start, end := posErr.Span()
		se := diagnostic.WithError(err, start, end,
			diagnostic.Spanf(diagnostic.Primary, start, end, ""))
		var span *diagnostic.SpanError
		if errors.As(se, &span) {
			spans = append(spans, span)
		}
	}
	return spans
}
