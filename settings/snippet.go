package settings

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// KeySnippet builds the snippet that inserts a key with its default as
// an editable placeholder. The shape follows the value's JSON kind so a
// list lands on its own indented lines, ready to extend.
func KeySnippet(key string, value gjson.Result, bol, eol string) string {
	encoded := value.Raw
	switch {
	case value.Type == gjson.String:
		// leave the quotation marks outside the placeholder
		inner := strings.TrimSuffix(strings.TrimPrefix(encoded, `"`), `"`)
		return fmt.Sprintf("%s\"%s\": \"${1:%s}\"%s$0", bol, key, inner, eol)
	case value.IsArray():
		inner := strings.TrimSuffix(strings.TrimPrefix(encoded, "["), "]")
		return fmt.Sprintf("%s\"%s\":\n[\n\t${1:%s}\n]%s$0", bol, key, strings.TrimSpace(inner), eol)
	case value.IsObject():
		inner := strings.TrimSuffix(strings.TrimPrefix(encoded, "{"), "}")
		return fmt.Sprintf("%s\"%s\":\n{\n\t${1:%s}\n}%s$0", bol, key, strings.TrimSpace(inner), eol)
	default:
		return fmt.Sprintf("%s\"%s\": ${1:%s}%s$0", bol, key, encoded, eol)
	}
}

// KeyCompletion is a suggested settings key with its insertion snippet.
type KeyCompletion struct {
	Key     string
	Snippet string
}

// KeyCompletions returns all known keys. When the cursor is inside
// quotation marks only the bare key is offered; otherwise the full
// snippet with the default value is. onEmptyLine controls whether the
// snippet ends the line with a comma only or a comma plus newline.
func (ks *KnownSettings) KeyCompletions(inString, onEmptyLine bool) []KeyCompletion {
	eol := ",\n"
	if onEmptyLine {
		eol = ","
	}
	var completions []KeyCompletion
	for _, key := range ks.Keys() {
		if inString {
			completions = append(completions, KeyCompletion{Key: key, Snippet: key})
			continue
		}
		value, _ := ks.Default(key)
		completions = append(completions, KeyCompletion{
			Key:     key,
			Snippet: KeySnippet(key, value, "", eol),
		})
	}
	return completions
}

// WithDefault returns the user settings content with key set to its
// default value, creating the top-level object if the content is blank.
func (ks *KnownSettings) WithDefault(content, key string) (string, error) {
	value, ok := ks.Default(key)
	if !ok {
		return "", errors.Errorf("unknown setting %q", key)
	}
	if strings.TrimSpace(content) == "" {
		content = "{}"
	}
	out, err := sjson.SetRawOptions(content, escapePath(key), value.Raw, &sjson.Options{Optimistic: true})
	if err != nil {
		return "", errors.Wrapf(err, "failed to set %q", key)
	}
	return out, nil
}

// escapePath escapes sjson path syntax so dotted settings keys address a
// single top-level member.
func escapePath(key string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`).Replace(key)
}
