package analysis

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHost is an in-memory Host.
type testHost struct {
	roots   []string
	files   map[string]string
	version int
	reads   []string
}

func newTestHost(files map[string]string, roots ...string) *testHost {
	return &testHost{roots: roots, files: files}
}

func (h *testHost) RootFiles() []string    { return h.roots }
func (h *testHost) ProjectVersion() string { return strconv.Itoa(h.version) }
func (h *testHost) FileExists(p string) bool {
	_, ok := h.files[p]
	return ok
}
func (h *testHost) ReadScript(p string) ([]byte, bool) {
	text, ok := h.files[p]
	if ok {
		h.reads = append(h.reads, p)
	}
	return []byte(text), ok
}

func TestNullBinding(t *testing.T) {
	assert.Nil(t, Null.Program())
	Null.SetCompilationSettings(DefaultOptions())
	Null.RemoveRoot("/a.ts")
	Null.RemoveReferencedFile("/a.ts")
	Null.Dispose()
}

func TestNewProgram_Dedup(t *testing.T) {
	p := NewProgram([]string{"/a.ts", "/b.ts", "/a.ts"}, false)
	assert.Equal(t, []string{"/a.ts", "/b.ts"}, p.SourceFiles())
	assert.True(t, p.Contains("/b.ts"))
	assert.False(t, p.Contains("/c.ts"))
	assert.Equal(t, 2, p.Len())
}

func TestNilProgram(t *testing.T) {
	var p *Program
	assert.Nil(t, p.SourceFiles())
	assert.False(t, p.Contains("/a.ts"))
	assert.False(t, p.StructureIsReused())
	assert.Equal(t, 0, p.Len())
}

func TestSameFiles(t *testing.T) {
	a := NewProgram([]string{"/a.ts", "/b.ts"}, false)
	b := NewProgram([]string{"/b.ts", "/a.ts"}, false)
	c := NewProgram([]string{"/a.ts"}, false)
	assert.True(t, SameFiles(a, b))
	assert.False(t, SameFiles(a, c))
	assert.False(t, SameFiles(nil, a))
	assert.False(t, SameFiles(a, nil))
	assert.True(t, SameFiles(nil, nil))
}

func TestDefaultLibraryPath(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"defaults", Options{}, DefaultLibDirectory + "/lib.d.ts"},
		{"es5", Options{OptionTarget: "ES5"}, DefaultLibDirectory + "/lib.d.ts"},
		{"es6", Options{OptionTarget: "es2015"}, DefaultLibDirectory + "/lib.es6.d.ts"},
		{"later target", Options{OptionTarget: "ES2017"}, DefaultLibDirectory + "/lib.es2017.full.d.ts"},
		{"lib dir", Options{OptionLibDirectory: "/libs"}, "/libs/lib.d.ts"},
		{"explicit", Options{OptionDefaultLibrary: "/x/lib.d.ts", OptionLibDirectory: "/libs"}, "/x/lib.d.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultLibraryPath(tt.opts))
		})
	}
}

func TestOptionsClone(t *testing.T) {
	opts := DefaultOptions()
	clone := opts.Clone()
	clone[OptionTarget] = "es6"
	assert.Equal(t, "es5", opts.String(OptionTarget))
	assert.True(t, opts.Bool(OptionAllowNonTSExtensions))
	assert.False(t, opts.Bool("missing"))
}

func TestImportGraph_FollowsRelativeImports(t *testing.T) {
	host := newTestHost(map[string]string{
		"/p/a.ts":           "import { b } from './b'\nimport React from 'react'\n",
		"/p/b.ts":           "export * from \"./lib/index\"\nconst c = require('../shared/c.js')\n",
		"/p/lib/index.ts":   "/// <reference path=\"types.d.ts\" />\n",
		"/p/lib/types.d.ts": "",
		"/shared/c.js":      "",
	}, "/p/a.ts")

	g := NewImportGraph(host, Options{OptionNoLib: true})
	prog := g.Program()
	require.NotNil(t, prog)
	assert.Equal(t, []string{"/p/a.ts", "/p/b.ts", "/p/lib/index.ts", "/shared/c.js", "/p/lib/types.d.ts"}, prog.SourceFiles())
	assert.False(t, prog.StructureIsReused())
}

func TestImportGraph_AppendsDefaultLibrary(t *testing.T) {
	host := newTestHost(map[string]string{"/a.ts": ""}, "/a.ts")
	g := NewImportGraph(host, Options{OptionLibDirectory: "/lib"})
	assert.Equal(t, []string{"/a.ts", "/lib/lib.d.ts"}, g.Program().SourceFiles())
}

func TestImportGraph_CachesUntilVersionMoves(t *testing.T) {
	host := newTestHost(map[string]string{"/a.ts": "", "/b.ts": ""}, "/a.ts")
	g := NewImportGraph(host, Options{OptionNoLib: true})

	first := g.Program()
	assert.Same(t, first, g.Program(), "unchanged version returns the same program")

	host.version++
	second := g.Program()
	assert.NotSame(t, first, second)
	assert.True(t, second.StructureIsReused(), "same file set")

	host.files["/a.ts"] = "import './b'"
	host.version++
	third := g.Program()
	assert.False(t, third.StructureIsReused())
	assert.Equal(t, []string{"/a.ts", "/b.ts"}, third.SourceFiles())
}

func TestImportGraph_InvalidationAndDispose(t *testing.T) {
	host := newTestHost(map[string]string{"/a.ts": "", "/b.ts": ""}, "/a.ts", "/b.ts")
	g := NewImportGraph(host, Options{OptionNoLib: true})
	first := g.Program()

	host.roots = []string{"/a.ts"}
	g.RemoveRoot("/b.ts")
	second := g.Program()
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"/a.ts"}, second.SourceFiles())

	g.SetCompilationSettings(Options{OptionLibDirectory: "/lib"})
	assert.Equal(t, []string{"/a.ts", "/lib/lib.d.ts"}, g.Program().SourceFiles())

	g.Dispose()
	assert.Nil(t, g.Program())
}
