// Package scope holds the scope naming conventions as a static trie and
// answers prefix queries against it to drive scope name completion.
//
// The conventions follow the guidelines published for TextMate-style
// grammars, where a scope name is a dotted path of segments from general
// to specific, e.g. "keyword.control.conditional".
package scope

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

//go:embed conventions.txt
var conventions string

// Node is a single segment in the naming conventions trie.
type Node struct {
	Name     string
	Children NodeList
}

// NodeList is an ordered set of sibling nodes. Order matches the order
// segments appear in the conventions text.
type NodeList []*Node

// Heads are the root segments of the naming conventions.
var Heads = MustParse(conventions)

// Find returns the child with the given name, or nil.
func (l NodeList) Find(name string) *Node {
	for _, n := range l {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Names returns the node names in order.
func (l NodeList) Names() []string {
	names := make([]string, len(l))
	for i, n := range l {
		names[i] = n.Name
	}
	return names
}

// Parse builds a trie from an indented text description. Each line holds
// one segment name, nested by indentation depth. Blank lines separate
// sibling groups and carry no meaning.
func Parse(data string) (NodeList, error) {
	var (
		heads NodeList
		stack []*Node
	)
	for i, line := range strings.Split(data, "\n") {
		name := strings.TrimLeft(line, " \t")
		if name == "" {
			continue
		}
		indent := len(line) - len(name)
		if indent%indentWidth != 0 {
			return nil, fmt.Errorf("line %d: indentation is not a multiple of %d: %q", i+1, indentWidth, line)
		}
		depth := indent / indentWidth
		if depth > len(stack) {
			return nil, fmt.Errorf("line %d: indented too deep: %q", i+1, line)
		}
		stack = stack[:depth]

		node := &Node{Name: name}
		if len(stack) == 0 {
			heads = append(heads, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}
	return heads, nil
}

const indentWidth = 4

// MustParse is like Parse but panics on malformed data. The embedded
// conventions are validated by tests, so Heads never panics in practice.
func MustParse(data string) NodeList {
	heads, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return heads
}

// ErrNotFound reports that a dotted prefix walked off the trie. It is
// informational, suitable for a status message, and never fatal.
type ErrNotFound struct {
	Path string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("`%s` not found in scope naming conventions", e.Path)
}

// ErrNoChildren reports that a fully matched prefix has no further
// segments to offer.
type ErrNoChildren struct {
	Path string
}

func (e ErrNoChildren) Error() string {
	return fmt.Sprintf("no segments in scope naming conventions after `%s`", e.Path)
}

// Complete walks the trie along all but the last dotted segment of s and
// returns the segments available at that point. An empty or undotted s
// yields the head segments. When a segment is unmatched, the walk stops
// and an ErrNotFound for the deepest reached path is returned alongside
// nil completions.
func Complete(s string) (NodeList, error) {
	tokens := strings.Split(s, ".")
	if len(tokens) <= 1 {
		return Heads, nil
	}

	nodes := Heads
	for i, token := range tokens[:len(tokens)-1] {
		node := nodes.Find(token)
		if node == nil {
			return nil, ErrNotFound{Path: strings.Join(tokens[:i+1], ".")}
		}
		nodes = node.Children
		if len(nodes) == 0 {
			return nil, ErrNoChildren{Path: strings.Join(tokens[:len(tokens)-1], ".")}
		}
	}
	return nodes, nil
}

// Tree renders the trie rooted at l, one branch per head segment.
func (l NodeList) Tree() string {
	tree := treeprint.New()
	for _, n := range l {
		addBranch(tree, n)
	}
	return tree.String()
}

func addBranch(tree treeprint.Tree, n *Node) {
	if len(n.Children) == 0 {
		tree.AddNode(n.Name)
		return
	}
	branch := tree.AddBranch(n.Name)
	for _, c := range n.Children {
		addBranch(branch, c)
	}
}
