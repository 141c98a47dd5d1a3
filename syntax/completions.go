package syntax

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkgdev/pkgdev/scope"
)

// Kind classifies a completion item so the editor can pick an icon and
// the right insertion format.
type Kind int

const (
	KindHeaderBase Kind = iota
	KindHeaderDict
	KindHeaderList
	KindFunction
	KindFunctionTrue
	KindFunctionFalse
	KindCapture
	KindContext
	KindScope
	KindVariable
	KindBranch
)

// Item is one completion suggestion.
type Item struct {
	Trigger string
	Kind    Kind
	Details string
	// Snippet is the text committed to the buffer, in LSP snippet
	// format when IsSnippet is set.
	Snippet   string
	IsSnippet bool
}

// Result is a completion answer plus an optional non-fatal status note,
// e.g. when a scope prefix walked off the naming conventions.
type Result struct {
	Items  []Item
	Status string
}

type template struct {
	trigger string
	kind    Kind
	details string
}

func formatStatic(templates []template) []Item {
	items := make([]Item, 0, len(templates))
	for _, tpl := range templates {
		item := Item{
			Trigger: tpl.trigger,
			Kind:    tpl.kind,
			Details: tpl.details,
		}
		switch tpl.kind {
		case KindHeaderDict, KindCapture, KindContext:
			item.Snippet = tpl.trigger + ":\n  "
			item.IsSnippet = true
		case KindHeaderList:
			item.Snippet = tpl.trigger + ":\n  - "
			item.IsSnippet = true
		case KindFunctionTrue:
			item.Snippet = tpl.trigger + ": ${1:true}"
			item.IsSnippet = true
		case KindFunctionFalse:
			item.Snippet = tpl.trigger + ": ${1:false}"
			item.IsSnippet = true
		default:
			item.Snippet = tpl.trigger + ": "
		}
		items = append(items, item)
	}
	return items
}

var headerCompletions = formatStatic([]template{
	{"name", KindHeaderBase, "The display name of the syntax."},
	{"scope", KindHeaderBase, "The main scope of the syntax."},
	{"version", KindHeaderBase, "The syntax definition version."},
	{"extends", KindHeaderBase, "The syntax which is to be extended."},
	{"first_line_match", KindHeaderBase, "The pattern to identify a file by content."},
	{"variables", KindHeaderDict, "The variables definitions."},
	{"contexts", KindHeaderDict, "The syntax contexts."},
	{"file_extensions", KindHeaderList, "The list of file extensions."},
	{"hidden_extensions", KindHeaderList, "The list of hidden file extensions."},
})

var contextCompletions = formatStatic([]template{
	{"meta_append", KindFunctionTrue, "Add rules to the end of the inherited context."},
	{"meta_content_scope", KindFunction, "A scope to apply to the content of a context."},
	{"meta_include_prototype", KindFunctionFalse, "Flag to in-/exclude `prototype`."},
	{"meta_prepend", KindFunctionTrue, "Add rules to the beginning of the inherited context."},
	{"meta_scope", KindFunction, "A scope to apply to the full context."},
	{"clear_scopes", KindFunction, "Clear meta scopes."},
	{"match", KindFunction, "Pattern to match tokens."},
	{"scope", KindFunction, "The scope to apply if a token matches."},
	{"captures", KindCapture, "Assigns scopes to the capture groups."},
	{"push", KindFunction, "Push a context onto the stack."},
	{"set", KindFunction, "Set a context onto the stack."},
	{"pop", KindFunctionTrue, "Pop context(s) from the stack."},
	{"with_prototype", KindFunction, "Rules to prepend to each context."},
	{"branch_point", KindFunction, "Name of the point to rewind to if a branch fails."},
	{"branch", KindFunction, "Push branches onto the stack."},
	{"fail", KindFunction, "Fail the current branch."},
	{"embed", KindFunction, "A context or syntax to embed."},
	{"embed_scope", KindFunction, "A scope to apply to the embedded syntax."},
	{"escape", KindFunction, "A pattern to denote the end of the embedded syntax."},
	{"escape_captures", KindCapture, "Assigns scopes to the capture groups."},
	{"include", KindFunction, "Includes a context."},
	{"apply_prototype", KindFunctionTrue, "Apply prototype of included syntax."},
})

var (
	scopeValuePattern   = regexp.MustCompile(`(?:^|[\s-])(?:scope|meta_scope|meta_content_scope|embed_scope):\s*[\w.\s-]*$`)
	captureValuePattern = regexp.MustCompile(`^\s+\d+:\s*[\w.\s-]*$`)
	contextValuePattern = regexp.MustCompile(`(?:^|[\s-])(?:push|set|include|embed):\s*\S*$`)
	contextListPattern  = regexp.MustCompile(`^\s*-\s*[\w-]*$`)
	failValuePattern    = regexp.MustCompile(`fail:\s*[\w-]*$`)
	keyLinePattern      = regexp.MustCompile(`^(\s*)((?:-\s+)*)([\w-]*)$`)
	referencePattern    = regexp.MustCompile(`[^,\[ ]*$`)
)

// Complete returns the completions for the cursor at the given
// 0-indexed line and character.
func Complete(doc *Document, line, character int) Result {
	prefix := doc.LinePrefix(line, character)

	// variables may be referenced anywhere inside a match pattern
	if open := strings.LastIndex(prefix, "{{"); open > strings.LastIndex(prefix, "}}") && open >= 0 {
		return Result{Items: variableItems(doc)}
	}

	// context references first: an external include may carry a
	// "scope:" selector that must not read as a scope position
	if contextValuePattern.MatchString(prefix) {
		return Result{Items: contextItems(doc, prefix)}
	}

	if scopeValuePattern.MatchString(prefix) || capturedScopeValue(prefix, doc, line) {
		return completeScope(doc, prefix)
	}
	if contextListPattern.MatchString(prefix) && doc.InSection(line, "contexts") {
		// a list item names a context only under push/set/branch;
		// elsewhere it starts a match rule
		switch doc.ListGovernor(line) {
		case "push", "set", "branch":
			return Result{Items: contextItems(doc, prefix)}
		}
	}

	if failValuePattern.MatchString(prefix) {
		return Result{Items: branchPointItems(doc)}
	}

	return completeKey(doc, line, prefix)
}

// capturedScopeValue reports whether the cursor sits in a numbered
// captures entry inside the contexts block, which also takes a scope.
func capturedScopeValue(prefix string, doc *Document, line int) bool {
	return captureValuePattern.MatchString(prefix) && doc.InSection(line, "contexts")
}

// completeKey offers key names. Keys start their own line; the
// indentation decides between header keys and context-rule keys.
func completeKey(doc *Document, line int, prefix string) Result {
	match := keyLinePattern.FindStringSubmatch(prefix)
	if match == nil {
		return Result{}
	}
	if match[1] == "" {
		// a top-level list item never takes a key
		if match[2] != "" {
			return Result{}
		}
		return Result{Items: headerCompletions}
	}
	if doc.InSection(line, "contexts") {
		return Result{Items: contextCompletions}
	}
	return Result{}
}

// completeScope offers scope name segments from the naming conventions,
// plus the base scope suffix when the last typed segment is not already
// that suffix.
func completeScope(doc *Document, prefix string) Result {
	_, realPrefix, _ := cutLast(prefix, " ")
	tokens := strings.Split(realPrefix, ".")
	if len(tokens) <= 1 {
		return Result{Items: scopeItems(scope.Heads)}
	}

	base := baseScopeItems(doc, tokens[len(tokens)-1])

	nodes, err := scope.Complete(realPrefix)
	if err != nil {
		// nothing from the conventions, offer the base suffix alone
		return Result{Items: base, Status: err.Error()}
	}
	return Result{Items: append(scopeItems(nodes), base...)}
}

func scopeItems(nodes scope.NodeList) []Item {
	items := make([]Item, 0, len(nodes))
	for _, node := range nodes {
		items = append(items, Item{
			Trigger: node.Name,
			Kind:    KindScope,
			Snippet: node.Name,
		})
	}
	return items
}

// baseScopeItems offers the last segment of the declared base scope.
// Conventionally every scope in a syntax ends with that suffix.
func baseScopeItems(doc *Document, lastToken string) []Item {
	suffix := doc.BaseScopeSuffix()
	if suffix == "" || suffix == lastToken {
		return nil
	}
	return []Item{{
		Trigger: suffix,
		Kind:    KindScope,
		Details: "base suffix",
		Snippet: suffix,
	}}
}

func contextItems(doc *Document, prefix string) []Item {
	// no completions for external includes
	reference := referencePattern.FindString(prefix)
	if strings.HasPrefix(reference, "scope:") || strings.Contains(reference, "/") {
		return nil
	}
	items := make([]Item, 0, len(doc.Contexts))
	for _, def := range doc.Contexts {
		items = append(items, Item{
			Trigger: def.Name,
			Kind:    KindContext,
			Details: definedAt(def),
			Snippet: def.Name,
		})
	}
	return items
}

func variableItems(doc *Document) []Item {
	items := make([]Item, 0, len(doc.Variables))
	for _, def := range doc.Variables {
		items = append(items, Item{
			Trigger: def.Name,
			Kind:    KindVariable,
			Details: definedAt(def),
			Snippet: def.Name,
		})
	}
	return items
}

func branchPointItems(doc *Document) []Item {
	items := make([]Item, 0, len(doc.BranchPoints))
	for _, def := range doc.BranchPoints {
		items = append(items, Item{
			Trigger: def.Name,
			Kind:    KindBranch,
			Details: definedAt(def),
			Snippet: def.Name,
		})
	}
	return items
}

func definedAt(def Definition) string {
	return fmt.Sprintf("Defined at line %d", def.Line)
}
