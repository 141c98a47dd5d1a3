package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkgdev/pkgdev/resource"
)

func writeResource(t *testing.T, root, pkg, name, content string) {
	t.Helper()
	dir := filepath.Join(root, pkg)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// newLoaded builds a knowledge base and waits for the initial load.
func newLoaded(t *testing.T, filename string, roots *resource.Roots) *KnownSettings {
	t.Helper()
	loaded := make(chan struct{}, 1)
	ks := New(filename, roots, WithOnLoaded(func() {
		loaded <- struct{}{}
	}))
	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for settings to load")
	}
	return ks
}

func TestMergeFirstResourceWins(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Alpha", "Test.sublime-settings", `
{
	// Documented in Alpha.
	"shared": "from-alpha",
	"alpha_only": 1
}
`)
	writeResource(t, root, "Beta", "Test.sublime-settings", `
{
	// Documented in Beta.
	"shared": "from-beta",
	"beta_only": 2
}
`)

	ks := newLoaded(t, "Test.sublime-settings", resource.NewRoots([]string{root}))

	require.Equal(t, []string{"shared", "alpha_only", "beta_only"}, ks.Keys())

	shared, ok := ks.Default("shared")
	require.True(t, ok)
	require.Equal(t, "from-alpha", shared.String())
	require.Equal(t, "Documented in Alpha.", ks.Comment("shared"))

	require.True(t, ks.Has("beta_only"))
	require.False(t, ks.Has("missing"))
}

func TestHintsResources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Alpha", "Test.sublime-settings", `{"real": true}`)
	writeResource(t, root, "Beta", "Test.sublime-settings-hints", `
{
	// Contributed by another package.
	"hinted": "value"
}
`)

	ks := newLoaded(t, "Test.sublime-settings", resource.NewRoots([]string{root}))
	require.True(t, ks.Has("real"))
	require.True(t, ks.Has("hinted"))
	require.Equal(t, "Contributed by another package.", ks.Comment("hinted"))
}

func TestSyntaxSpecificMergesPreferences(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Go", "Go.sublime-settings", `{"go_specific": true}`)
	writeResource(t, root, "Go", "Go.sublime-syntax", "name: Go\nscope: source.go\n")
	writeResource(t, root, "Default", "Preferences.sublime-settings", `{"font_size": 12}`)

	ks := newLoaded(t, "Go.sublime-settings", resource.NewRoots([]string{root}))
	require.True(t, ks.Has("go_specific"))
	require.True(t, ks.Has("font_size"))
}

func TestNotSyntaxSpecific(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Alpha", "Test.sublime-settings", `{"a": 1}`)
	writeResource(t, root, "Default", "Preferences.sublime-settings", `{"font_size": 12}`)

	ks := newLoaded(t, "Test.sublime-settings", resource.NewRoots([]string{root}))
	require.True(t, ks.Has("a"))
	require.False(t, ks.Has("font_size"))
}

func TestBadResourceSkipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Alpha", "Test.sublime-settings", `this is not json`)
	writeResource(t, root, "Beta", "Test.sublime-settings", `{"good": true}`)

	ks := newLoaded(t, "Test.sublime-settings", resource.NewRoots([]string{root}))
	require.Equal(t, []string{"good"}, ks.Keys())
}

func TestTriggerReload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Alpha", "Test.sublime-settings", `{"before": true}`)

	loaded := make(chan struct{}, 2)
	ks := New("Test.sublime-settings", resource.NewRoots([]string{root}), WithOnLoaded(func() {
		loaded <- struct{}{}
	}))
	<-loaded
	require.True(t, ks.Has("before"))

	writeResource(t, root, "Alpha", "Test.sublime-settings", `{"after": true}`)
	ks.TriggerReload()
	<-loaded
	require.True(t, ks.Has("after"))
	require.False(t, ks.Has("before"))
}

func TestTooltip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeResource(t, root, "Alpha", "Test.sublime-settings", `
{
	// Width of a tab stop.
	"tab_size": 4,
	"bare": true
}
`)

	ks := newLoaded(t, "Test.sublime-settings", resource.NewRoots([]string{root}))

	tip := ks.Tooltip("tab_size")
	require.Contains(t, tip, "### tab_size")
	require.Contains(t, tip, "Default: `4`")
	require.Contains(t, tip, "Width of a tab stop.")

	require.Contains(t, ks.Tooltip("bare"), "No description.")
	require.Contains(t, ks.Tooltip("missing"), "unknown setting")
}
