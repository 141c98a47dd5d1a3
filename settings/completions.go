package settings

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Completion is one suggested value for a settings key.
type Completion struct {
	// Trigger is the label presented to the user.
	Trigger string
	// Detail names the JSON type of the value.
	Detail string
	// Insert is the raw JSON text committed to the buffer.
	Insert string
}

var (
	// backtick-quoted fragments in comments carry values in JSON form
	backtickPattern = regexp.MustCompile("`([^`\n]+)`")
	// quoted bare tokens wrap a string, a numeric or a boolean
	quotedPattern = regexp.MustCompile(`"([\.\w]+)"`)
)

// ValueCompletions returns the candidate values for a key, derived from
// the key's comment when possible and from the shape of its default
// value otherwise. The color_scheme and theme keys instead complete
// from the resources installed under the package roots.
func (ks *KnownSettings) ValueCompletions(key string) []Completion {
	var completions []Completion
	switch key {
	case "color_scheme":
		completions = ks.colorSchemeCompletions()
	case "theme":
		completions = ks.themeCompletions()
	}
	if len(completions) == 0 {
		completions = ks.completionsFromComment(key)
	}
	if len(completions) == 0 {
		completions = ks.completionsFromDefault(key)
	}
	sort.SliceStable(completions, func(i, j int) bool {
		return strings.ToLower(completions[i].Trigger) < strings.ToLower(completions[j].Trigger)
	})
	return completions
}

// colorSchemeCompletions enumerates the installed color schemes.
// Modern .sublime-color-scheme files are addressed by their base name,
// legacy .tmTheme files by their full Packages path.
func (ks *KnownSettings) colorSchemeCompletions() []Completion {
	var (
		completions []Completion
		seen        = make(map[string]struct{})
	)
	add := func(trigger, insert string) {
		if _, ok := seen[insert]; ok {
			return
		}
		seen[insert] = struct{}{}
		completions = append(completions, Completion{
			Trigger: trigger,
			Detail:  "color scheme",
			Insert:  insert,
		})
	}
	for _, rel := range ks.roots.FindSuffix(".sublime-color-scheme") {
		name := path.Base(rel)
		add(strings.TrimSuffix(name, ".sublime-color-scheme"), strconv.Quote(name))
	}
	for _, rel := range ks.roots.FindSuffix(".tmTheme") {
		add(strings.TrimSuffix(path.Base(rel), ".tmTheme"), strconv.Quote("Packages/"+rel))
	}
	return completions
}

// themeCompletions enumerates the installed themes by base name.
func (ks *KnownSettings) themeCompletions() []Completion {
	var (
		completions []Completion
		seen        = make(map[string]struct{})
	)
	for _, rel := range ks.roots.FindSuffix(".sublime-theme") {
		name := path.Base(rel)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		completions = append(completions, Completion{
			Trigger: strings.TrimSuffix(name, ".sublime-theme"),
			Detail:  "theme",
			Insert:  strconv.Quote(name),
		})
	}
	return completions
}

// completionsFromComment scans the comment text for value candidates.
// Many settings are documented with a list of quoted words naming the
// allowed values.
func (ks *KnownSettings) completionsFromComment(key string) []Completion {
	comment := ks.Comment(key)
	if comment == "" {
		return nil
	}

	var (
		completions []Completion
		seen        = make(map[string]struct{})
	)
	add := func(c Completion) {
		if _, ok := seen[c.Insert]; ok {
			return
		}
		seen[c.Insert] = struct{}{}
		completions = append(completions, c)
	}

	for _, match := range backtickPattern.FindAllStringSubmatch(comment, -1) {
		candidate := strings.TrimSpace(match[1])
		if !gjson.Valid(candidate) {
			// not JSON, fall back to treating it as a string
			add(formatCompletion(stringResult(candidate)))
			continue
		}
		value := gjson.Parse(candidate)
		if value.IsArray() {
			// suggest list items instead of the list itself
			for _, item := range value.Array() {
				add(formatCompletion(item))
			}
		} else {
			add(formatCompletion(value))
		}
	}

	for _, match := range quotedPattern.FindAllStringSubmatch(comment, -1) {
		add(formatCompletion(decodeToken(match[1])))
	}

	return completions
}

// completionsFromDefault derives candidates from the default value
// itself: booleans suggest both literals, lists suggest their members,
// scalars suggest themselves.
func (ks *KnownSettings) completionsFromDefault(key string) []Completion {
	value, ok := ks.Default(key)
	if !ok || value.Type == gjson.Null {
		return nil
	}
	switch {
	case value.IsBool():
		return []Completion{
			formatCompletion(gjson.Parse("false")),
			formatCompletion(gjson.Parse("true")),
		}
	case value.IsArray():
		var completions []Completion
		for _, item := range value.Array() {
			completions = append(completions, formatCompletion(item))
		}
		return completions
	default:
		return []Completion{formatCompletion(value)}
	}
}

func formatCompletion(value gjson.Result) Completion {
	trigger := value.Raw
	if value.Type == gjson.String {
		trigger = value.String()
	}
	return Completion{
		Trigger: trigger,
		Detail:  typeName(value),
		Insert:  value.Raw,
	}
}

// decodeToken interprets a bare quoted token from a comment with
// unrestrictive booleans, falling back to a string.
func decodeToken(token string) gjson.Result {
	switch strings.ToLower(token) {
	case "true":
		return gjson.Parse("true")
	case "false":
		return gjson.Parse("false")
	}
	if _, err := strconv.ParseInt(token, 10, 64); err == nil {
		return gjson.Parse(token)
	}
	if _, err := strconv.ParseFloat(token, 64); err == nil {
		return gjson.Parse(token)
	}
	return stringResult(token)
}

func stringResult(s string) gjson.Result {
	return gjson.Parse(strconv.Quote(s))
}

func typeName(value gjson.Result) string {
	switch {
	case value.IsBool():
		return "boolean"
	case value.IsArray():
		return "list"
	case value.IsObject():
		return "object"
	case value.Type == gjson.String:
		return "string"
	case value.Type == gjson.Number:
		return "number"
	default:
		return "null"
	}
}

// Tooltip renders the Markdown documentation shown when hovering a
// settings key: the key, its default value and its comment.
func (ks *KnownSettings) Tooltip(key string) string {
	def, ok := ks.Default(key)
	if !ok {
		return fmt.Sprintf("### %s\n\nunknown setting", key)
	}
	comment := ks.Comment(key)
	if comment == "" {
		comment = "No description."
	}
	encoded := strings.TrimSpace(string(pretty.Pretty([]byte(def.Raw))))
	if strings.Contains(encoded, "\n") {
		return fmt.Sprintf("### %s\n\nDefault:\n```json\n%s\n```\n\n%s", key, encoded, comment)
	}
	return fmt.Sprintf("### %s\n\nDefault: `%s`\n\n%s", key, encoded, comment)
}
