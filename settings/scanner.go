package settings

import (
	"regexp"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// keyPattern matches a JSON key at the start of a (trimmed) line. The
// comment block scanned immediately above such a line documents that key.
var keyPattern = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)":`)

var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// Default is a settings key with its default value as found in a base
// file. Values stay in raw JSON form; gjson decodes on demand.
type Default struct {
	Key   string
	Value gjson.Result
}

// KeyOccurrence is a top-level key together with its position in the
// source, 1-indexed.
type KeyOccurrence struct {
	Key    string
	Line   int
	Column int
}

// File is the result of scanning a single settings resource.
type File struct {
	Defaults []Default
	Comments map[string]string
	Keys     []KeyOccurrence
}

// Scan strips comments from a settings source, associates each comment
// block with the JSON key immediately below it, and decodes the
// remaining text as JSON. The comment scanner is deliberately naive: it
// works line by line and has no awareness of comment markers inside
// strings. That matches how settings base files are written in practice.
func Scan(src string) (*File, error) {
	file := &File{
		Comments: make(map[string]string),
	}

	var (
		content   []string
		comment   []string
		inComment bool
		depth     = newDepthTracker()
	)

	for i, line := range strings.Split(src, "\n") {
		stripped := strings.TrimSpace(line)

		if inComment {
			if strings.HasSuffix(stripped, "*/") {
				inComment = false
				// drop the terminator along with trailing decoration
				line = strings.TrimRight(line, "*/ \t")
				if line != "" {
					comment = append(comment, line)
				}
			} else if strings.HasPrefix(stripped, "* ") {
				comment = append(comment, stripped[2:])
			} else {
				comment = append(comment, line)
			}
			continue
		} else if stripped == "" {
			// empty lines inside a comment act as visual separators,
			// outside of one they carry nothing
			continue
		}

		if strings.HasPrefix(stripped, "/*") {
			inComment = true
			rest := strings.TrimLeft(stripped[2:], "*")
			if rest != "" {
				comment = append(comment, rest)
			}
			continue
		}

		if strings.HasPrefix(stripped, "//") {
			// lines ending with `//` are likely separators and skipped;
			// a bare `//` contributes an empty line
			rest := stripped[2:]
			if rest == "" || !strings.HasSuffix(rest, "//") {
				comment = append(comment, rest)
			}
			continue
		}

		content = append(content, line)
		for _, off := range depth.feedKeys(line) {
			m := keyPattern.FindStringSubmatch(line[off:])
			file.Keys = append(file.Keys, KeyOccurrence{
				Key:    m[1],
				Line:   i + 1,
				Column: off + 1,
			})
		}

		match := keyPattern.FindStringSubmatch(stripped)
		if match == nil {
			continue
		}
		key := match[1]

		if len(comment) > 0 {
			if _, ok := file.Comments[key]; !ok {
				file.Comments[key] = strings.TrimSpace(dedent.Dedent(strings.Join(comment, "\n")))
			}
			comment = comment[:0]
		}
	}

	stripped := strings.Join(content, "\n")
	if strings.TrimSpace(stripped) == "" {
		return file, nil
	}
	// settings files habitually end entries with a comma; strict JSON
	// does not allow that, so drop commas that directly precede a closer
	stripped = trailingCommaPattern.ReplaceAllString(stripped, "$1")
	if !gjson.Valid(stripped) {
		return nil, errors.Errorf("invalid JSON after comment stripping")
	}

	result := gjson.Parse(stripped)
	if !result.IsObject() {
		return nil, errors.Errorf("top level value is not an object")
	}
	result.ForEach(func(key, value gjson.Result) bool {
		file.Defaults = append(file.Defaults, Default{Key: key.String(), Value: value})
		return true
	})
	return file, nil
}

// StripComments returns the source with comment lines removed, the same
// way Scan sees it before JSON decoding. Stripping is idempotent.
func StripComments(src string) string {
	var (
		content   []string
		inComment bool
	)
	for _, line := range strings.Split(src, "\n") {
		stripped := strings.TrimSpace(line)
		if inComment {
			if strings.HasSuffix(stripped, "*/") {
				inComment = false
			}
			continue
		}
		if stripped == "" {
			continue
		}
		if strings.HasPrefix(stripped, "/*") {
			inComment = true
			continue
		}
		if strings.HasPrefix(stripped, "//") {
			continue
		}
		content = append(content, line)
	}
	return strings.Join(content, "\n")
}

// depthTracker counts JSON nesting depth across lines, skipping over
// string literals so braces inside values do not miscount.
type depthTracker struct {
	depth    int
	inString bool
}

func newDepthTracker() *depthTracker {
	return &depthTracker{}
}

// feedKeys advances the tracker across line and returns the byte
// offsets of the top-level keys it opens. A key on the same line as the
// root brace still counts: the depth is checked per character, not per
// line.
func (d *depthTracker) feedKeys(line string) []int {
	var offsets []int
	escaped := false
	for i, r := range line {
		if d.inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				d.inString = false
			}
			continue
		}
		switch r {
		case '"':
			if d.depth == 1 && keyPattern.MatchString(line[i:]) {
				offsets = append(offsets, i)
			}
			d.inString = true
		case '{', '[':
			d.depth++
		case '}', ']':
			d.depth--
		}
	}
	return offsets
}
