// Package langserver speaks the language server protocol over stdio
// for settings and syntax definition files.
package langserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/pkgdev/pkgdev/linter"
	"github.com/pkgdev/pkgdev/pkg/filebuffer"
	"github.com/pkgdev/pkgdev/resource"
	"github.com/pkgdev/pkgdev/settings"
	"github.com/pkgdev/pkgdev/syntax"
	lsp "github.com/sourcegraph/go-lsp"
)

const (
	// InsertSettingCommand patches a key's default value into the
	// user settings file on the client's behalf.
	InsertSettingCommand = "pkgdev.insertSetting"

	settingsExt = ".sublime-settings"
	syntaxExt   = ".sublime-syntax"
)

type LangServer struct {
	server  *jrpc2.Server
	roots   *resource.Roots
	buffers *filebuffer.BufferLookup

	tds map[lsp.DocumentURI]TextDocument
	tmu sync.RWMutex

	dbs map[lsp.DocumentURI]*debouncer
	dmu sync.Mutex

	kbs map[string]*settings.KnownSettings
	kmu sync.Mutex
}

func NewServer(roots *resource.Roots) *LangServer {
	ls := &LangServer{
		roots:   roots,
		buffers: filebuffer.NewBuffers(),
		tds:     make(map[lsp.DocumentURI]TextDocument),
		dbs:     make(map[lsp.DocumentURI]*debouncer),
		kbs:     make(map[string]*settings.KnownSettings),
	}

	ls.server = jrpc2.NewServer(handler.Map{
		"initialize":               handler.New(ls.initializeHandler),
		"exit":                     handler.New(ls.exitHandler),
		"$/cancelRequest":          handler.New(ls.cancelRequestHandler),
		"textDocument/didOpen":     handler.New(ls.textDocumentDidOpenHandler),
		"textDocument/didClose":    handler.New(ls.textDocumentDidCloseHandler),
		"textDocument/didChange":   handler.New(ls.textDocumentDidChangeHandler),
		"textDocument/hover":       handler.New(ls.textDocumentHoverHandler),
		"textDocument/completion":  handler.New(ls.textDocumentCompletionHandler),
		"workspace/executeCommand": handler.New(ls.workspaceExecuteCommandHandler),
	}, &jrpc2.ServerOptions{
		AllowPush: true,
	})

	return ls
}

func (ls *LangServer) Listen(ctx context.Context, r io.Reader, w io.WriteCloser) error {
	defer func() {
		r := recover()
		if r != nil {
			log.Printf("listen recovered panic: %s", r)
		}
	}()

	go func() {
		err := ls.roots.Watch(ctx, func() {
			log.Printf("package resources changed, reloading known settings")
			ls.kmu.Lock()
			for _, ks := range ls.kbs {
				ks.TriggerReload()
			}
			ls.kmu.Unlock()
		})
		if err != nil {
			log.Printf("watch: %s", err)
		}
	}()

	log.Printf("pkgdev-langserver listening")
	s := ls.server.Start(channel.Header("")(r, w))
	return s.Wait()
}

// knownSettings returns the knowledge base for a settings file,
// creating and loading it on first use.
func (ls *LangServer) knownSettings(filename string) *settings.KnownSettings {
	base := filepath.Base(filename)
	ls.kmu.Lock()
	defer ls.kmu.Unlock()
	ks, ok := ls.kbs[base]
	if !ok {
		ks = settings.New(base, ls.roots)
		ls.kbs[base] = ks
	}
	return ks
}

func (ls *LangServer) initializeHandler(ctx context.Context, params lsp.InitializeParams) (lsp.InitializeResult, error) {
	log.Printf("initialize %q", params.RootURI)

	return lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			HoverProvider: true,
			CompletionProvider: &lsp.CompletionOptions{
				TriggerCharacters: []string{".", "\"", "{", "/"},
			},
			ExecuteCommandProvider: &lsp.ExecuteCommandOptions{
				Commands: []string{InsertSettingCommand},
			},
			TextDocumentSync: &lsp.TextDocumentSyncOptionsOrKind{
				Options: &lsp.TextDocumentSyncOptions{
					OpenClose: true,
					Change:    lsp.TDSKFull,
				},
			},
		},
	}, nil
}

func (ls *LangServer) exitHandler(ctx context.Context, params lsp.None) error {
	log.Printf("exit")
	return nil
}

func (ls *LangServer) cancelRequestHandler(ctx context.Context, params lsp.None) error {
	log.Printf("cancel request")
	return nil
}

func (ls *LangServer) textDocumentDidOpenHandler(ctx context.Context, params lsp.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Printf("did open %q", uri)

	td := NewTextDocument(uri, params.TextDocument.Text)

	ls.tmu.Lock()
	ls.tds[uri] = td
	ls.tmu.Unlock()
	ls.buffers.Set(td.Filename(), td.Buffer)

	if td.Ext() == settingsExt {
		go ls.publishDiagnostics(ctx, td)
	}

	return nil
}

func (ls *LangServer) textDocumentDidCloseHandler(ctx context.Context, params lsp.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Printf("did close %q", uri)

	ls.tmu.Lock()
	if td, ok := ls.tds[uri]; ok {
		ls.buffers.Delete(td.Filename())
	}
	delete(ls.tds, uri)
	ls.tmu.Unlock()

	// Clear any published findings for the closed document.
	err := ls.server.Notify(ctx, "textDocument/publishDiagnostics", lsp.PublishDiagnosticsParams{
		URI: uri,
	})
	if err != nil {
		log.Printf("err: %s", err)
	}
	return nil
}

func (ls *LangServer) textDocumentDidChangeHandler(ctx context.Context, params lsp.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Printf("did change %q", uri)

	return ls.debounce(uri, 100*time.Millisecond, func() error {
		ls.tmu.Lock()

		td, ok := ls.tds[uri]
		if !ok {
			ls.tmu.Unlock()
			return fmt.Errorf("unknown uri %q", uri)
		}

		// Full sync: the last change carries the whole document.
		for _, change := range params.ContentChanges {
			td.Rewrite(change.Text)
		}
		ls.tds[uri] = td
		ls.tmu.Unlock()

		if len(params.ContentChanges) > 0 && td.Ext() == settingsExt {
			go ls.publishDiagnostics(ctx, td)
		}
		return nil
	})
}

func (ls *LangServer) publishDiagnostics(ctx context.Context, td TextDocument) {
	ks := ls.knownSettings(td.Filename())
	ctx = filebuffer.WithBuffers(ctx, ls.buffers)

	var diagnostics []lsp.Diagnostic
	err := linter.Lint(ctx, td.Filename(), []byte(td.Text), linter.WithKnownSettings(ks))
	if err != nil {
		var lintErr linter.ErrLint
		if !errors.As(err, &lintErr) {
			log.Printf("lint: %s", err)
			return
		}
		for _, err := range lintErr.Errs {
			d, ok := diagnosticFromErr(err)
			if !ok {
				continue
			}
			diagnostics = append(diagnostics, d)
		}
	}

	err = ls.server.Notify(ctx, "textDocument/publishDiagnostics", lsp.PublishDiagnosticsParams{
		URI:         td.Identifier.URI,
		Diagnostics: diagnostics,
	})
	if err != nil {
		log.Printf("err: %s", err)
	}
}

func diagnosticFromErr(err error) (lsp.Diagnostic, bool) {
	posErr, ok := err.(linter.PosError)
	if !ok {
		return lsp.Diagnostic{}, false
	}
	start, end := posErr.Span()

	d := lsp.Diagnostic{
		Range: lsp.Range{
			Start: lsp.Position{Line: start.Line - 1, Character: start.Column - 1},
			End:   lsp.Position{Line: end.Line - 1, Character: end.Column - 1},
		},
		Source: "pkgdev",
	}

	switch e := err.(type) {
	case linter.ErrParse:
		d.Severity = lsp.Error
		d.Message = e.Message
	case linter.ErrUnknownKey:
		d.Severity = lsp.Warning
		d.Message = fmt.Sprintf("unknown setting %q", e.Key)
		if e.Suggestion != "" {
			d.Message = fmt.Sprintf("%s, did you mean %q?", d.Message, e.Suggestion)
		}
	case linter.ErrDuplicateKey:
		d.Severity = lsp.Warning
		d.Message = fmt.Sprintf("duplicate setting %q, first set on line %d", e.Key, e.First.Line)
	default:
		d.Severity = lsp.Warning
		d.Message = err.Error()
	}
	return d, true
}

func (ls *LangServer) textDocumentHoverHandler(ctx context.Context, params lsp.TextDocumentPositionParams) (*lsp.Hover, error) {
	defer func() {
		r := recover()
		if r != nil {
			log.Printf("panic: %q", r)
		}
	}()

	uri := params.TextDocument.URI
	log.Printf("hover %q", uri)

	td, err := ls.textDocument(uri)
	if err != nil {
		return nil, err
	}
	if td.Ext() != settingsExt {
		return nil, nil
	}

	line, err := td.Line(params.Position.Line)
	if err != nil {
		return nil, nil
	}

	loc := hoverKeyPattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, nil
	}
	start, end := loc[2], loc[3]
	if params.Position.Character < start-1 || params.Position.Character > end+1 {
		return nil, nil
	}

	ks := ls.knownSettings(td.Filename())
	key := line[start:end]

	return &lsp.Hover{
		Contents: []lsp.MarkedString{lsp.RawMarkedString(ks.Tooltip(key))},
		Range: &lsp.Range{
			Start: lsp.Position{Line: params.Position.Line, Character: start},
			End:   lsp.Position{Line: params.Position.Line, Character: end},
		},
	}, nil
}

var (
	hoverKeyPattern = regexp.MustCompile(`^\s*"((?:[^"\\]|\\.)*)"\s*:`)
	valuePosPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"\s*:[^,{}\[\]]*$`)
)

func (ls *LangServer) textDocumentCompletionHandler(ctx context.Context, params lsp.CompletionParams) (*lsp.CompletionList, error) {
	defer func() {
		r := recover()
		if r != nil {
			log.Printf("panic: %q", r)
		}
	}()

	uri := params.TextDocument.URI
	log.Printf("completion %q", uri)

	td, err := ls.textDocument(uri)
	if err != nil {
		return nil, err
	}

	switch td.Ext() {
	case settingsExt:
		return ls.settingsCompletions(td, params.Position)
	case syntaxExt:
		return syntaxCompletions(td, params.Position)
	}
	return nil, nil
}

func (ls *LangServer) settingsCompletions(td TextDocument, pos lsp.Position) (*lsp.CompletionList, error) {
	line, err := td.Line(pos.Line)
	if err != nil {
		line = ""
	}
	prefix := line
	if pos.Character >= 0 && pos.Character <= len(line) {
		prefix = line[:pos.Character]
	}

	ks := ls.knownSettings(td.Filename())

	quotes := strings.Count(prefix, `"`) - strings.Count(prefix, `\"`)
	inString := quotes%2 == 1

	list := &lsp.CompletionList{}
	if m := valuePosPattern.FindStringSubmatch(prefix); m != nil {
		for _, c := range ks.ValueCompletions(m[1]) {
			insert := c.Insert
			if inString {
				// The client already typed the opening quote, so only
				// string values apply and their quotes must go.
				if len(insert) < 2 || insert[0] != '"' || insert[len(insert)-1] != '"' {
					continue
				}
				insert = insert[1 : len(insert)-1]
			}
			list.Items = append(list.Items, lsp.CompletionItem{
				Label:      c.Trigger,
				Kind:       lsp.CIKValue,
				Detail:     c.Detail,
				InsertText: insert,
			})
		}
		return list, nil
	}

	rest := ""
	if pos.Character >= 0 && pos.Character <= len(line) {
		rest = line[pos.Character:]
	}
	onEmptyLine := strings.TrimSpace(rest) == ""

	for _, kc := range ks.KeyCompletions(inString, onEmptyLine) {
		item := lsp.CompletionItem{
			Label:      kc.Key,
			Kind:       lsp.CIKField,
			InsertText: kc.Snippet,
		}
		if !inString {
			item.InsertTextFormat = lsp.ITFSnippet
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

func syntaxCompletions(td TextDocument, pos lsp.Position) (*lsp.CompletionList, error) {
	doc := syntax.ParseDocument(td.Text)
	result := syntax.Complete(doc, pos.Line, pos.Character)
	if result.Status != "" {
		log.Printf("completion: %s", result.Status)
	}

	list := &lsp.CompletionList{}
	for _, item := range result.Items {
		ci := lsp.CompletionItem{
			Label:      item.Trigger,
			Kind:       completionItemKind(item.Kind),
			Detail:     item.Details,
			InsertText: item.Snippet,
		}
		if item.IsSnippet {
			ci.InsertTextFormat = lsp.ITFSnippet
		}
		if ci.InsertText == "" {
			ci.InsertText = item.Trigger
		}
		list.Items = append(list.Items, ci)
	}
	return list, nil
}

func completionItemKind(kind syntax.Kind) lsp.CompletionItemKind {
	switch kind {
	case syntax.KindHeaderBase, syntax.KindHeaderDict, syntax.KindHeaderList, syntax.KindFunction:
		return lsp.CIKKeyword
	case syntax.KindFunctionTrue, syntax.KindFunctionFalse:
		return lsp.CIKValue
	case syntax.KindCapture:
		return lsp.CIKField
	case syntax.KindContext, syntax.KindBranch:
		return lsp.CIKReference
	case syntax.KindScope:
		return lsp.CIKConstant
	case syntax.KindVariable:
		return lsp.CIKVariable
	}
	return lsp.CIKText
}

func (ls *LangServer) workspaceExecuteCommandHandler(ctx context.Context, params lsp.ExecuteCommandParams) error {
	log.Printf("execute command %q", params.Command)

	if params.Command != InsertSettingCommand {
		return fmt.Errorf("unknown command %q", params.Command)
	}
	if len(params.Arguments) != 2 {
		return fmt.Errorf("%s expects [uri, key] arguments", InsertSettingCommand)
	}

	rawURI, ok := params.Arguments[0].(string)
	if !ok {
		return fmt.Errorf("%s uri argument must be a string", InsertSettingCommand)
	}
	key, ok := params.Arguments[1].(string)
	if !ok {
		return fmt.Errorf("%s key argument must be a string", InsertSettingCommand)
	}
	uri := lsp.DocumentURI(rawURI)

	td, err := ls.textDocument(uri)
	if err != nil {
		return err
	}

	ks := ls.knownSettings(td.Filename())
	patched, err := ks.WithDefault(td.Text, key)
	if err != nil {
		return err
	}

	endLine, endCharacter := endPosition(td.Text)
	return ls.server.Notify(ctx, "workspace/applyEdit", applyWorkspaceEditParams{
		Edit: lsp.WorkspaceEdit{
			Changes: map[string][]lsp.TextEdit{
				string(uri): {{
					Range: lsp.Range{
						Start: lsp.Position{Line: 0, Character: 0},
						End:   lsp.Position{Line: endLine, Character: endCharacter},
					},
					NewText: patched,
				}},
			},
		},
	})
}

// applyWorkspaceEditParams is the workspace/applyEdit request payload,
// which go-lsp does not define.
type applyWorkspaceEditParams struct {
	Edit lsp.WorkspaceEdit `json:"edit"`
}

func endPosition(text string) (line, character int) {
	lines := strings.Split(text, "\n")
	return len(lines) - 1, len(lines[len(lines)-1])
}

func (ls *LangServer) textDocument(uri lsp.DocumentURI) (TextDocument, error) {
	ls.tmu.RLock()
	defer ls.tmu.RUnlock()
	td, ok := ls.tds[uri]
	if !ok {
		return TextDocument{}, fmt.Errorf("unknown uri %q", uri)
	}
	return td, nil
}

type debouncer struct {
	timer        *time.Timer
	mu           sync.Mutex
	publish      chan func() error
	subscription chan error
}

func newDebouncer(interval time.Duration) *debouncer {
	d := &debouncer{
		timer:   time.NewTimer(interval),
		publish: make(chan func() error),
	}

	go func() {
		var f func() error
		for {
			select {
			case f = <-d.publish:
				d.timer.Reset(interval)
			case <-d.timer.C:
				d.mu.Lock()
				d.subscription <- f()
				d.subscription = nil
				d.mu.Unlock()
			}
		}
	}()

	return d
}

func (d *debouncer) debounce(subscription chan error, f func() error) {
	d.mu.Lock()
	if d.subscription != nil {
		d.subscription <- nil
	}
	d.publish <- f
	d.subscription = subscription
	d.mu.Unlock()
}

func (ls *LangServer) debounce(uri lsp.DocumentURI, interval time.Duration, f func() error) error {
	ls.dmu.Lock()
	debouncer, ok := ls.dbs[uri]
	if !ok {
		debouncer = newDebouncer(interval)
		ls.dbs[uri] = debouncer
	}
	ls.dmu.Unlock()

	subscription := make(chan error)
	debouncer.debounce(subscription, f)

	return <-subscription
}

// TextDocument is an open buffer tracked for the client.
type TextDocument struct {
	Identifier lsp.VersionedTextDocumentIdentifier
	Buffer     *filebuffer.FileBuffer
	Text       string
}

func NewTextDocument(uri lsp.DocumentURI, text string) TextDocument {
	filename := strings.TrimPrefix(string(uri), "file://")
	fb := filebuffer.New(filename)
	_, err := io.WriteString(fb, text)
	if err != nil {
		log.Printf("err: %s", err)
	}

	return TextDocument{
		Identifier: lsp.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: lsp.TextDocumentIdentifier{
				URI: uri,
			},
		},
		Buffer: fb,
		Text:   text,
	}
}

// Rewrite replaces the document content in place, keeping the buffer
// registered under its filename valid.
func (td *TextDocument) Rewrite(text string) {
	td.Buffer.Reset()
	_, err := io.WriteString(td.Buffer, text)
	if err != nil {
		log.Printf("err: %s", err)
	}
	td.Text = text
}

func (td TextDocument) Filename() string {
	return td.Buffer.Filename()
}

func (td TextDocument) Ext() string {
	return filepath.Ext(td.Filename())
}

// Line returns the 0-indexed line's text, or "" past the end.
func (td TextDocument) Line(ln int) (string, error) {
	data, err := td.Buffer.Line(ln)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
