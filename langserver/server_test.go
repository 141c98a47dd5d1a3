package langserver

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/pkgdev/pkgdev/linter"
	"github.com/pkgdev/pkgdev/pkg/filebuffer"
	"github.com/pkgdev/pkgdev/resource"
	"github.com/pkgdev/pkgdev/settings"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *LangServer {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Default")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	err := os.WriteFile(filepath.Join(dir, "Preferences.sublime-settings"), []byte(`{
	// The font size.
	"font_size": 12,
	// Valid values are "system", "light" or "dark".
	"ui_mode": "system",
}`), 0o644)
	require.NoError(t, err)

	ls := NewServer(resource.NewRoots([]string{root}))

	loaded := make(chan struct{}, 1)
	ls.kbs["Preferences.sublime-settings"] = settings.New(
		"Preferences.sublime-settings", ls.roots,
		settings.WithOnLoaded(func() { loaded <- struct{}{} }))
	<-loaded
	return ls
}

func openDocument(ls *LangServer, uri lsp.DocumentURI, text string) TextDocument {
	td := NewTextDocument(uri, text)
	ls.tds[uri] = td
	return td
}

func TestSettingsKeyCompletions(t *testing.T) {
	t.Parallel()

	ls := newTestServer(t)
	td := openDocument(ls, "file:///User/Preferences.sublime-settings", "{\n\t\n}\n")

	list, err := ls.settingsCompletions(td, lsp.Position{Line: 1, Character: 1})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	require.Equal(t, "font_size", list.Items[0].Label)
	require.Equal(t, lsp.InsertTextFormat(lsp.ITFSnippet), list.Items[0].InsertTextFormat)
	require.Contains(t, list.Items[0].InsertText, `"font_size": `)
}

func TestSettingsValueCompletions(t *testing.T) {
	t.Parallel()

	ls := newTestServer(t)
	line := "\t\"ui_mode\": "
	td := openDocument(ls, "file:///User/Preferences.sublime-settings", "{\n"+line+"\n}\n")

	list, err := ls.settingsCompletions(td, lsp.Position{Line: 1, Character: len(line)})
	require.NoError(t, err)

	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
		require.Equal(t, lsp.CIKValue, item.Kind)
	}
	require.Equal(t, []string{"dark", "light", "system"}, labels)
}

func TestSettingsValueCompletionsInString(t *testing.T) {
	t.Parallel()

	ls := newTestServer(t)
	line := "\t\"ui_mode\": \""
	td := openDocument(ls, "file:///User/Preferences.sublime-settings", "{\n"+line+"\n}\n")

	// inside the open quote string values lose their quotes
	list, err := ls.settingsCompletions(td, lsp.Position{Line: 1, Character: len(line)})
	require.NoError(t, err)
	require.Len(t, list.Items, 3)
	for _, item := range list.Items {
		require.Equal(t, item.Label, item.InsertText)
	}

	// and non-string values are not offered at all
	line = "\t\"font_size\": \""
	td = openDocument(ls, "file:///User/Preferences.sublime-settings", "{\n"+line+"\n}\n")
	list, err = ls.settingsCompletions(td, lsp.Position{Line: 1, Character: len(line)})
	require.NoError(t, err)
	require.Empty(t, list.Items)
}

// startTestClient connects a client to the server over in-memory pipes
// and forwards server notifications per method.
func startTestClient(t *testing.T, ls *LangServer) (*jrpc2.Client, <-chan lsp.PublishDiagnosticsParams, <-chan applyWorkspaceEditParams) {
	t.Helper()

	sr, cw := io.Pipe()
	cr, sw := io.Pipe()
	go func() {
		ls.server.Start(channel.Header("")(sr, sw))
	}()

	diagnostics := make(chan lsp.PublishDiagnosticsParams, 2)
	edits := make(chan applyWorkspaceEditParams, 1)
	client := jrpc2.NewClient(channel.Header("")(cr, cw), &jrpc2.ClientOptions{
		OnNotify: func(req *jrpc2.Request) {
			switch req.Method() {
			case "textDocument/publishDiagnostics":
				var params lsp.PublishDiagnosticsParams
				if req.UnmarshalParams(&params) == nil {
					diagnostics <- params
				}
			case "workspace/applyEdit":
				var params applyWorkspaceEditParams
				if req.UnmarshalParams(&params) == nil {
					edits <- params
				}
			}
		},
	})
	t.Cleanup(func() {
		client.Close()
		ls.server.Stop()
	})
	return client, diagnostics, edits
}

func TestPublishDiagnosticsNotification(t *testing.T) {
	t.Parallel()

	ls := newTestServer(t)
	client, diagnostics, _ := startTestClient(t, ls)
	ctx := context.Background()

	uri := lsp.DocumentURI("file:///User/Preferences.sublime-settings")
	err := client.Notify(ctx, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:  uri,
			Text: "{\n\t\"font_sizes\": 14,\n}\n",
		},
	})
	require.NoError(t, err)

	select {
	case params := <-diagnostics:
		require.Equal(t, uri, params.URI)
		require.Len(t, params.Diagnostics, 1)
		require.Contains(t, params.Diagnostics[0].Message, `unknown setting "font_sizes"`)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for diagnostics")
	}

	// closing the document clears the published findings
	err = client.Notify(ctx, "textDocument/didClose", lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)

	select {
	case params := <-diagnostics:
		require.Equal(t, uri, params.URI)
		require.Empty(t, params.Diagnostics)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cleared diagnostics")
	}
}

func TestExecuteCommandAppliesEdit(t *testing.T) {
	t.Parallel()

	ls := newTestServer(t)
	client, diagnostics, edits := startTestClient(t, ls)
	ctx := context.Background()

	uri := lsp.DocumentURI("file:///User/Preferences.sublime-settings")
	err := client.Notify(ctx, "textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:  uri,
			Text: "{\n\t\"ui_mode\": \"dark\",\n}\n",
		},
	})
	require.NoError(t, err)

	// the open is acknowledged once its diagnostics arrive
	select {
	case <-diagnostics:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for diagnostics")
	}

	_, err = client.Call(ctx, "workspace/executeCommand", lsp.ExecuteCommandParams{
		Command:   InsertSettingCommand,
		Arguments: []interface{}{string(uri), "font_size"},
	})
	require.NoError(t, err)

	select {
	case params := <-edits:
		changes := params.Edit.Changes[string(uri)]
		require.Len(t, changes, 1)
		require.Contains(t, changes[0].NewText, `"font_size"`)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the edit")
	}
}

func TestApplyWorkspaceEditParamsShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(applyWorkspaceEditParams{
		Edit: lsp.WorkspaceEdit{
			Changes: map[string][]lsp.TextEdit{
				"file:///u.sublime-settings": {{NewText: "{}"}},
			},
		},
	})
	require.NoError(t, err)
	require.Contains(t, string(data), `"edit"`)
	require.Contains(t, string(data), `"changes"`)
}

func TestSyntaxCompletions(t *testing.T) {
	t.Parallel()

	text := "%YAML 1.2\n---\nname: Test\nscope: source.test\ncontexts:\n  main:\n    - match: \\w+\n      scope: \n"
	td := NewTextDocument("file:///Test.sublime-syntax", text)

	list, err := syntaxCompletions(td, lsp.Position{Line: 7, Character: 13})
	require.NoError(t, err)
	require.NotEmpty(t, list.Items)

	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	require.Contains(t, labels, "keyword")
	require.Contains(t, labels, "test")
}

func TestHoverKeyPattern(t *testing.T) {
	t.Parallel()

	loc := hoverKeyPattern.FindStringSubmatchIndex(`	"font_size": 12,`)
	require.NotNil(t, loc)
	require.Equal(t, "font_size", `	"font_size": 12,`[loc[2]:loc[3]])

	require.Nil(t, hoverKeyPattern.FindStringSubmatchIndex(`	12,`))
}

func TestDiagnosticFromErr(t *testing.T) {
	t.Parallel()

	pos := filebuffer.Position{Filename: "u.sublime-settings", Line: 2, Column: 2}
	end := filebuffer.Position{Filename: "u.sublime-settings", Line: 2, Column: 13}

	d, ok := diagnosticFromErr(linter.ErrUnknownKey{
		Pos: pos, End: end, Key: "font_sizes", Suggestion: "font_size",
	})
	require.True(t, ok)
	require.Equal(t, lsp.DiagnosticSeverity(lsp.Warning), d.Severity)
	require.Equal(t, 1, d.Range.Start.Line)
	require.Equal(t, 1, d.Range.Start.Character)
	require.Equal(t, `unknown setting "font_sizes", did you mean "font_size"?`, d.Message)

	_, ok = diagnosticFromErr(os.ErrNotExist)
	require.False(t, ok)
}

func TestEndPosition(t *testing.T) {
	t.Parallel()

	line, character := endPosition("{\n\t\"a\": 1,\n}")
	require.Equal(t, 2, line)
	require.Equal(t, 1, character)

	line, character = endPosition("")
	require.Equal(t, 0, line)
	require.Equal(t, 0, character)
}
