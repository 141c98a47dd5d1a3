// Package syntax provides completions for authoring syntax definition
// files: header and context-rule keys, scope names driven by the naming
// conventions trie, and references to contexts, variables and branch
// points defined in the document itself.
package syntax

import (
	"regexp"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Definition is a named entity defined in the document, with the
// 1-indexed line it is defined on.
type Definition struct {
	Name string
	Line int
}

// Document is the line-oriented model of a syntax definition buffer.
// The YAML header is decoded properly; contexts, variables and branch
// points are collected by line scanning because their line numbers are
// part of the completion details.
type Document struct {
	Name         string
	BaseScope    string
	Contexts     []Definition
	Variables    []Definition
	BranchPoints []Definition

	lines []string
}

type header struct {
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
}

var (
	sectionPattern     = regexp.MustCompile(`^([A-Za-z_][\w-]*):`)
	definitionPattern  = regexp.MustCompile(`^(\s+)([A-Za-z0-9_-]+):\s*(?:\S.*)?$`)
	scopeLinePattern   = regexp.MustCompile(`^scope:\s*(\S+)`)
	namePattern        = regexp.MustCompile(`^name:\s*(.+?)\s*$`)
	branchPointPattern = regexp.MustCompile(`branch_point:\s*([\w-]+)`)
	governorPattern    = regexp.MustCompile(`^\s*(?:-\s+)?([\w-]+):\s*$`)
	listItemPattern    = regexp.MustCompile(`^\s*-`)
)

// ParseDocument builds the document model from buffer text.
func ParseDocument(src string) *Document {
	doc := &Document{
		lines: strings.Split(src, "\n"),
	}

	// the header is plain YAML; the contexts block may not survive a
	// strict YAML decode (regex patterns, duplicate keys), so a failed
	// decode falls back to scanning the header lines
	var hdr header
	if err := yaml.Unmarshal([]byte(src), &hdr); err == nil {
		doc.Name = hdr.Name
		doc.BaseScope = hdr.Scope
	}

	var (
		section string
		indent  = -1
	)
	for i, line := range doc.lines {
		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			section = m[1]
			indent = -1
			if doc.BaseScope == "" {
				if s := scopeLinePattern.FindStringSubmatch(line); s != nil {
					doc.BaseScope = s[1]
				}
			}
			if doc.Name == "" {
				if n := namePattern.FindStringSubmatch(line); n != nil {
					doc.Name = n[1]
				}
			}
			continue
		}

		if m := branchPointPattern.FindStringSubmatch(line); m != nil {
			doc.BranchPoints = appendDefinition(doc.BranchPoints, m[1], i+1)
		}

		m := definitionPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// definitions live at the first indentation level below the
		// section key; anything deeper is rule content
		if indent == -1 {
			indent = len(m[1])
		}
		if len(m[1]) != indent {
			continue
		}
		switch section {
		case "contexts":
			doc.Contexts = appendDefinition(doc.Contexts, m[2], i+1)
		case "variables":
			doc.Variables = appendDefinition(doc.Variables, m[2], i+1)
		}
	}
	return doc
}

func appendDefinition(defs []Definition, name string, line int) []Definition {
	for _, d := range defs {
		if d.Name == name {
			return defs
		}
	}
	return append(defs, Definition{Name: name, Line: line})
}

// BaseScopeSuffix returns the last segment of the document's declared
// base scope, or "".
func (d *Document) BaseScopeSuffix() string {
	if d.BaseScope == "" {
		return ""
	}
	_, suffix, ok := cutLast(d.BaseScope, ".")
	if !ok {
		return d.BaseScope
	}
	return suffix
}

// LinePrefix returns the text of the given 0-indexed line before the
// given character column.
func (d *Document) LinePrefix(line, character int) string {
	if line < 0 || line >= len(d.lines) {
		return ""
	}
	text := d.lines[line]
	if character < 0 || character > len(text) {
		return text
	}
	return text[:character]
}

// InSection reports whether the given 0-indexed line belongs to the
// named top-level section.
func (d *Document) InSection(line int, section string) bool {
	current := ""
	for i := 0; i <= line && i < len(d.lines); i++ {
		if m := sectionPattern.FindStringSubmatch(d.lines[i]); m != nil {
			current = m[1]
		}
	}
	return current == section
}

// ListGovernor returns the key whose value list the given 0-indexed
// line belongs to, skipping over sibling list items, or "".
func (d *Document) ListGovernor(line int) string {
	for i := line - 1; i >= 0 && i < len(d.lines); i-- {
		text := d.lines[i]
		if strings.TrimSpace(text) == "" {
			continue
		}
		if m := governorPattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		if listItemPattern.MatchString(text) {
			continue
		}
		return ""
	}
	return ""
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
