// Package settings aggregates the default values and documentation
// comments of editor settings files across all installed packages, and
// answers completion, tooltip and lint queries against the merged table.
//
// Every package that contributes a valid entry to a settings file ships
// a base file of the same name carrying the keys it adds, each preceded
// by a comment describing it. Those base files are the knowledge base.
package settings

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pkgdev/pkgdev/resource"
)

// PrefFile is the general preferences file. Its keys are merged into
// syntax-specific settings files, which accept all general settings.
const PrefFile = "Preferences.sublime-settings"

// hintsSuffix marks companion resources that contribute keys without
// being settings files themselves.
const hintsSuffix = "-hints"

var syntaxExts = []string{".sublime-syntax", ".tmLanguage"}

// KnownSettings holds the merged defaults and comments for one settings
// file name.
//
// Reload runs asynchronously and is not serialized against queries:
// readers may observe a stale or partially built table. That is accepted
// as benign eventual consistency; individual map accesses are still
// mutex-guarded.
type KnownSettings struct {
	// Filename all the settings belong to, e.g. "Preferences.sublime-settings".
	Filename string

	roots    *resource.Roots
	onLoaded func()

	mu       sync.RWMutex
	keys     []string
	defaults map[string]gjson.Result
	comments map[string]string
}

type Option func(*KnownSettings)

// WithOnLoaded sets a callback invoked after each completed reload.
func WithOnLoaded(f func()) Option {
	return func(ks *KnownSettings) {
		ks.onLoaded = f
	}
}

// New creates the knowledge base for a settings file name and triggers
// the initial asynchronous load.
func New(filename string, roots *resource.Roots, opts ...Option) *KnownSettings {
	ks := &KnownSettings{
		Filename: filename,
		roots:    roots,
	}
	for _, opt := range opts {
		opt(ks)
	}
	ks.TriggerReload()
	return ks
}

// TriggerReload clears the tables and rebuilds them in the background.
// A reload started while another is running simply wins by finishing
// later; there is no cancellation.
func (ks *KnownSettings) TriggerReload() {
	ks.mu.Lock()
	ks.keys = nil
	ks.defaults = make(map[string]gjson.Result)
	ks.comments = make(map[string]string)
	ks.mu.Unlock()

	go ks.load()
}

func (ks *KnownSettings) load() {
	start := time.Now()

	resources := ks.roots.Find(ks.Filename)
	resources = append(resources, ks.roots.Find(ks.Filename+hintsSuffix)...)

	// a syntax-specific settings file accepts all general settings too
	if ks.isSyntaxSpecific() {
		resources = append(resources, ks.roots.Find(PrefFile)...)
		resources = append(resources, ks.roots.Find(PrefFile+hintsSuffix)...)
	}

	for _, res := range resources {
		content, err := resource.Load(res)
		if err != nil {
			log.Printf("error loading %q: %s", res, err)
			continue
		}
		file, err := Scan(content)
		if err != nil {
			// one bad resource never aborts the scan
			log.Printf("error parsing %q: %s", res, err)
			continue
		}
		ks.merge(file)
	}

	log.Printf("loaded %d keys for %q from %d resources in %s",
		len(ks.Keys()), ks.Filename, len(resources), time.Since(start))

	if ks.onLoaded != nil {
		ks.onLoaded()
	}
}

// merge folds a scanned file into the tables without overwriting
// entries from earlier, higher-priority resources.
func (ks *KnownSettings) merge(file *File) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for _, def := range file.Defaults {
		if _, ok := ks.defaults[def.Key]; !ok {
			ks.defaults[def.Key] = def.Value
			ks.keys = append(ks.keys, def.Key)
		}
	}
	for key, comment := range file.Comments {
		if _, ok := ks.comments[key]; !ok {
			ks.comments[key] = comment
		}
	}
}

// isSyntaxSpecific reports whether a syntax definition with the same
// base name exists, meaning this settings file configures a syntax.
func (ks *KnownSettings) isSyntaxSpecific() bool {
	stem := strings.TrimSuffix(ks.Filename, ".sublime-settings")
	if stem == ks.Filename {
		return false
	}
	for _, ext := range syntaxExts {
		if ks.roots.Exists(stem + ext) {
			return true
		}
	}
	return false
}

// Has reports whether key is a known setting.
func (ks *KnownSettings) Has(key string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, ok := ks.defaults[key]
	return ok
}

// Keys returns the known keys in first-seen order.
func (ks *KnownSettings) Keys() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	keys := make([]string, len(ks.keys))
	copy(keys, ks.keys)
	return keys
}

// Default returns the default value for key.
func (ks *KnownSettings) Default(key string) (gjson.Result, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	value, ok := ks.defaults[key]
	return value, ok
}

// Comment returns the comment text documenting key, or "".
func (ks *KnownSettings) Comment(key string) string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.comments[key]
}
