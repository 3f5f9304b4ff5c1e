package analysis

import (
	"path"
	"regexp"
	"strings"
)

var (
	importFromRegex = regexp.MustCompile(`(?m)^\s*(?:import|export)\s[^'"]*?\bfrom\s*['"]([^'"]+)['"]`)
	bareImportRegex = regexp.MustCompile(`(?m)^\s*import\s*['"]([^'"]+)['"]`)
	requireRegex    = regexp.MustCompile(`\b(?:require|import)\(\s*['"]([^'"]+)['"]\s*\)`)
	referenceRegex  = regexp.MustCompile(`(?m)^\s*///\s*<reference\s+path\s*=\s*['"]([^'"]+)['"]`)
)

// resolveExtensions are tried in order for an extensionless module specifier.
var resolveExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".jsx"}

// ImportGraph is a lightweight engine that derives a program by following
// relative module specifiers and reference directives from the root files.
// Bare package specifiers are not resolved.
type ImportGraph struct {
	host     Host
	opts     Options
	program  *Program
	version  string
	dirty    bool
	disposed bool
}

// NewImportGraph is a Factory producing ImportGraph bindings.
func NewImportGraph(host Host, opts Options) Binding {
	return &ImportGraph{
		host:  host,
		opts:  opts.Clone(),
		dirty: true,
	}
}

// Ensure ImportGraph implements Binding.
var _ Binding = (*ImportGraph)(nil)

// Program returns the current program, recomputing it when the host's
// version moved or the binding was invalidated.
func (g *ImportGraph) Program() *Program {
	if g.disposed {
		return nil
	}

	version := g.host.ProjectVersion()
	if g.program != nil && !g.dirty && version == g.version {
		return g.program
	}

	files := g.collect()
	next := NewProgram(files, false)
	if g.program != nil && SameFiles(g.program, next) {
		next.structureReused = true
	}

	g.program = next
	g.version = version
	g.dirty = false
	return next
}

// SetCompilationSettings replaces the options and invalidates the program.
func (g *ImportGraph) SetCompilationSettings(opts Options) {
	g.opts = opts.Clone()
	g.dirty = true
}

// RemoveRoot invalidates the program; roots are re-read from the host.
func (g *ImportGraph) RemoveRoot(string) {
	g.dirty = true
}

// RemoveReferencedFile invalidates the program so the file is re-resolved.
func (g *ImportGraph) RemoveReferencedFile(string) {
	g.dirty = true
}

// Dispose releases the cached program.
func (g *ImportGraph) Dispose() {
	g.program = nil
	g.disposed = true
}

// collect walks the import graph breadth-first from the roots.
func (g *ImportGraph) collect() []string {
	roots := g.host.RootFiles()
	seen := make(map[string]bool, len(roots))
	files := make([]string, 0, len(roots))
	queue := make([]string, 0, len(roots))

	for _, root := range roots {
		if seen[root] {
			continue
		}
		seen[root] = true
		files = append(files, root)
		queue = append(queue, root)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		text, ok := g.host.ReadScript(current)
		if !ok {
			continue
		}
		for _, spec := range extractSpecifiers(text) {
			resolved, ok := g.resolve(current, spec)
			if !ok || seen[resolved] {
				continue
			}
			seen[resolved] = true
			files = append(files, resolved)
			queue = append(queue, resolved)
		}
	}

	if !g.opts.Bool(OptionNoLib) {
		lib := DefaultLibraryPath(g.opts)
		if !seen[lib] {
			files = append(files, lib)
		}
	}
	return files
}

// resolve maps a module specifier found in from to a file path.
func (g *ImportGraph) resolve(from, spec string) (string, bool) {
	if !isRelative(spec) {
		return "", false
	}

	base := spec
	if !strings.HasPrefix(spec, "/") {
		base = path.Join(path.Dir(from), spec)
	}

	if path.Ext(base) != "" && g.host.FileExists(base) {
		return base, true
	}
	for _, ext := range resolveExtensions {
		if candidate := base + ext; g.host.FileExists(candidate) {
			return candidate, true
		}
	}
	for _, ext := range resolveExtensions {
		if candidate := path.Join(base, "index"+ext); g.host.FileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// extractSpecifiers returns module specifiers and reference paths, grouped by directive kind.
func extractSpecifiers(text []byte) []string {
	var specs []string
	for _, re := range []*regexp.Regexp{referenceRegex, importFromRegex, bareImportRegex, requireRegex} {
		for _, m := range re.FindAllSubmatch(text, -1) {
			spec := string(m[1])
			if re == referenceRegex && !isRelative(spec) {
				spec = "./" + spec
			}
			specs = append(specs, spec)
		}
	}
	return specs
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || strings.HasPrefix(spec, "/")
}
