package diagnostic

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pkgdev/pkgdev/pkg/filebuffer"
	"github.com/stretchr/testify/require"
)

func TestSpanErrorPretty(t *testing.T) {
	t.Parallel()

	fb := filebuffer.New("User/Preferences.sublime-settings")
	_, err := io.WriteString(fb, "{\n\t\"front_size\": 12,\n}\n")
	require.NoError(t, err)

	buffers := filebuffer.NewBuffers()
	buffers.Set(fb.Filename(), fb)
	ctx := filebuffer.WithBuffers(context.Background(), buffers)

	start := fb.Position(2, 2)
	end := fb.Position(2, 14)
	spanErr := WithError(errors.New("unknown setting"), start, end,
		Spanf(Primary, start, end, "did you mean `font_size`?"))

	var se *SpanError
	require.True(t, errors.As(spanErr, &se))
	require.Equal(t, "User/Preferences.sublime-settings:2:2: unknown setting", se.Error())

	pretty := se.Pretty(ctx)
	require.Contains(t, pretty, "error: unknown setting")
	require.Contains(t, pretty, `"front_size": 12,`)
	require.Contains(t, pretty, "^^^^^^^^^^^^")
	require.Contains(t, pretty, "did you mean `font_size`?")
}

func TestSpans(t *testing.T) {
	t.Parallel()

	fb := filebuffer.New("test.sublime-settings")
	_, err := io.WriteString(fb, "{\n}\n")
	require.NoError(t, err)

	pos := fb.Position(1, 1)
	first := WithError(errors.New("first"), pos, pos)
	second := WithError(errors.New("second"), pos, pos)

	batch := &Error{Diagnostics: []error{first, second}}
	require.Len(t, Spans(batch), 2)
	require.Len(t, Spans(first), 1)
	require.Empty(t, Spans(errors.New("plain")))
}

func TestSuggestion(t *testing.T) {
	t.Parallel()

	candidates := []string{"font_size", "font_face", "theme"}
	require.Equal(t, "font_size", Suggestion("font_sizes", candidates))
	require.Equal(t, "theme", Suggestion("thema", candidates))
	require.Equal(t, "", Suggestion("color_scheme", candidates))
	require.Equal(t, "", Suggestion("font_size", nil))
}
