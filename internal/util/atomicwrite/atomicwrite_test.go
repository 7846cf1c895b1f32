package atomicwrite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFile_SkipsWhenUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etc", "kafka", "server.properties")

	changed, err := WriteFile(path, []byte("broker.id=0\n"), Options{Perm: 0o640})
	require.NoError(t, err)
	require.True(t, changed)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o640), st.Mode().Perm())

	changed, err = WriteFile(path, []byte("broker.id=0\n"), Options{Perm: 0o640})
	require.NoError(t, err)
	require.False(t, changed, "same content and perms must not rewrite")

	changed, err = WriteFile(path, []byte("broker.id=1\n"), Options{Perm: 0o640})
	require.NoError(t, err)
	require.True(t, changed)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "broker.id=1\n", string(b))
}

func TestWriteFile_PermChangeRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.conf")

	_, err := WriteFile(path, []byte("[Service]\n"), Options{Perm: 0o600})
	require.NoError(t, err)

	changed, err := WriteFile(path, []byte("[Service]\n"), Options{Perm: 0o644})
	require.NoError(t, err)
	require.True(t, changed)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), st.Mode().Perm())
}

func TestWriteFile_UnknownUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	_, err := WriteFile(path, []byte("x"), Options{Perm: 0o640, User: "no-such-user-kafka-charm"})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestAtomicWriteFile_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AtomicWriteFile(filepath.Join(dir, "a"), []byte("1"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a", entries[0].Name())
}

func TestMkdirAll_AppliesPerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "var", "lib", "kafka", "data")
	require.NoError(t, MkdirAll(dir, Options{Perm: 0o750}))
	st, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, st.IsDir())
	require.Equal(t, os.FileMode(0o750), st.Mode().Perm())

	// idempotente
	require.NoError(t, MkdirAll(dir, Options{Perm: 0o750}))
}
