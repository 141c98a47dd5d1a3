package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFind(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()

	writeFile(t, filepath.Join(first, "Default", "Preferences.sublime-settings"), "{}")
	writeFile(t, filepath.Join(first, "Zebra", "Preferences.sublime-settings"), "{}")
	writeFile(t, filepath.Join(first, "Apple", "Other.sublime-settings"), "{}")
	writeFile(t, filepath.Join(second, "Vendor", "Preferences.sublime-settings"), "{}")
	writeFile(t, filepath.Join(second, "Vendor", "nested", "Preferences.sublime-settings"), "{}")

	roots := NewRoots([]string{first, second})
	paths := roots.Find("Preferences.sublime-settings")
	require.Equal(t, []string{
		filepath.Join(first, "Default", "Preferences.sublime-settings"),
		filepath.Join(first, "Zebra", "Preferences.sublime-settings"),
		filepath.Join(second, "Vendor", "Preferences.sublime-settings"),
		filepath.Join(second, "Vendor", "nested", "Preferences.sublime-settings"),
	}, paths)

	require.True(t, roots.Exists("Other.sublime-settings"))
	require.False(t, roots.Exists("Missing.sublime-settings"))
}

func TestFindIgnored(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Default", "Preferences.sublime-settings"), "{}")
	writeFile(t, filepath.Join(root, "User", "Preferences.sublime-settings"), "{}")
	writeFile(t, filepath.Join(root, "Preferences Editor", "Preferences.sublime-settings"), "{}")

	roots := NewRoots([]string{root})
	paths := roots.Find("Preferences.sublime-settings")
	require.Equal(t, []string{
		filepath.Join(root, "Default", "Preferences.sublime-settings"),
	}, paths)
}

func TestFindMissingRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Default", "foo.sublime-settings"), "{}")

	roots := NewRoots([]string{filepath.Join(root, "does-not-exist"), root})
	require.Len(t, roots.Find("foo.sublime-settings"), 1)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "Default", "foo.sublime-settings")
	writeFile(t, path, `{"a": 1}`)

	content, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, `{"a": 1}`, content)

	_, err = Load(filepath.Join(root, "missing"))
	require.Error(t, err)
}
