package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "init", dir, "--allow-js")
	require.NoError(t, err)
	assert.Contains(t, out, "projectd.json")

	data, err := os.ReadFile(filepath.Join(dir, "projectd.json"))
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(data, "compilerOptions.allowJs").Bool())
	assert.Equal(t, "es5", gjson.GetBytes(data, "compilerOptions.target").String())

	_, err = execute(t, "init", dir)
	assert.Error(t, err, "existing file without --force")

	_, err = execute(t, "init", dir, "--force", "--target", "es2020")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "projectd.json"))
	require.NoError(t, err)
	assert.Equal(t, "es2020", gjson.GetBytes(data, "compilerOptions.target").String())
}

func TestInitCommandSet(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"projectd.json": `{"files": ["main.ts"], "compilerOptions": {"target": "es5"}}`,
	})

	out, err := execute(t, "init", dir, "--set", "target=es2017", "--set", "strict=true", "--set", "maxNodeModuleJsDepth=2")
	require.NoError(t, err)
	assert.Contains(t, out, "updated")

	data, err := os.ReadFile(filepath.Join(dir, "projectd.json"))
	require.NoError(t, err)
	assert.Equal(t, "es2017", gjson.GetBytes(data, "compilerOptions.target").String())
	assert.Equal(t, gjson.True, gjson.GetBytes(data, "compilerOptions.strict").Type)
	assert.Equal(t, int64(2), gjson.GetBytes(data, "compilerOptions.maxNodeModuleJsDepth").Int())
	assert.Equal(t, "main.ts", gjson.GetBytes(data, "files.0").String())

	_, err = execute(t, "init", dir, "--set", "novalue")
	assert.Error(t, err)
}

func TestInitCommandSetOnNewFile(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "init", dir, "--set", "jsx=preserve")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "projectd.json"))
	require.NoError(t, err)
	assert.Equal(t, "preserve", gjson.GetBytes(data, "compilerOptions.jsx").String())
	assert.Equal(t, "es5", gjson.GetBytes(data, "compilerOptions.target").String())
	assert.True(t, gjson.GetBytes(data, "include").IsArray())
}

func TestFilesCommand(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"projectd.json": `{"compilerOptions": {}}`,
		"src/a.ts":      `import { b } from "./b";`,
		"src/b.ts":      `export const b = 1;`,
	})

	out, err := execute(t, "files", filepath.Join(dir, "src", "a.ts"))
	require.NoError(t, err)
	assert.Contains(t, out, "projectd.json")
	assert.Contains(t, out, "configured")
	assert.Contains(t, out, "a.ts")
	assert.Contains(t, out, "b.ts")
}

func TestFilesCommandInferred(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"loose.ts": `export {};`,
	})

	out, err := execute(t, "files", filepath.Join(dir, "loose.ts"))
	require.NoError(t, err)
	assert.Contains(t, out, "inferredProject")
	assert.Contains(t, out, "loose.ts")
}

func TestChangesCommand(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"projectd.json": `{}`,
		"main.ts":       `export {};`,
	})

	out, err := execute(t, "changes", filepath.Join(dir, "main.ts"))
	require.NoError(t, err)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp, "info")
	assert.Contains(t, resp, "files")
	assert.NotContains(t, resp, "changes")
	assert.False(t, gjson.Get(out, "info.isInferred").Bool())
}

func TestRejectsMissingArgs(t *testing.T) {
	_, err := execute(t, "files")
	assert.Error(t, err)

	_, err = execute(t, "watch")
	assert.Error(t, err)
}
