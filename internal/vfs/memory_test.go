package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/a/b/../c.ts", "/a/c.ts"},
		{"/a//b/", "/a/b"},
		{"a/./b", "a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestMemFS_WriteCreatesParents(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.AddFile("/src/app/main.ts", "export {}"))

	assert.True(t, m.IsDir("/src"))
	assert.True(t, m.IsDir("/src/app"))
	assert.True(t, m.Exists("/src/app/main.ts"))

	data, err := m.ReadFile("/src/app/main.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(data))
}

func TestMemFS_ReadMissing(t *testing.T) {
	m := NewMemFS()
	_, err := m.ReadFile("/missing.ts")
	require.Error(t, err)
	assert.False(t, m.Exists("/missing.ts"))
}

func TestMemFS_ReadDirSorted(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.AddFile("/p/b.ts", ""))
	require.NoError(t, m.AddFile("/p/a.ts", ""))
	require.NoError(t, m.AddFile("/p/sub/c.ts", ""))

	entries, err := m.ReadDir("/p")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"a.ts", "b.ts", "sub"}, names)
}

func TestMemFS_WalkSkipDir(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.AddFile("/p/a.ts", ""))
	require.NoError(t, m.AddFile("/p/node_modules/x/index.ts", ""))
	require.NoError(t, m.AddFile("/p/src/b.ts", ""))

	var files []string
	err := m.Walk("/p", func(path string, info FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() && info.Name() == "node_modules" {
			return SkipDir
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/a.ts", "/p/src/b.ts"}, files)
}

func TestMemFS_Remove(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.AddFile("/p/a.ts", ""))

	require.Error(t, m.Remove("/p"), "non-empty directory")
	require.NoError(t, m.Remove("/p/a.ts"))
	require.NoError(t, m.Remove("/p"))
	assert.False(t, m.Exists("/p"))
}
