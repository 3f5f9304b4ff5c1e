package project

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dshills/projectd/internal/analysis"
	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/scriptinfo"
	"github.com/dshills/projectd/internal/vfs"
)

// Kind is the variant tag of a project.
type Kind int

const (
	KindInferred Kind = iota
	KindConfigured
	KindExternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInferred:
		return "inferred"
	case KindConfigured:
		return "configured"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Scripts is the script-info registry as seen by a project.
// *scriptinfo.Registry implements it.
type Scripts interface {
	Get(path string) (*scriptinfo.Info, bool)
	GetOrCreate(path string, openedByClient bool) *scriptinfo.Info
	Attach(info *scriptinfo.Info, project scriptinfo.ProjectID) bool
	Detach(info *scriptinfo.Info, project scriptinfo.ProjectID)
}

// variant carries the behavior that differs between kinds.
type variant interface {
	kind() Kind
	name() string

	// release closes the variant's watch subscriptions.
	release() error
}

// Config holds the collaborators shared by every project kind.
type Config struct {
	// ID identifies the project in the relation table and in watch
	// deliveries. Zero allocates the next process-wide ID.
	ID scriptinfo.ProjectID

	Scripts Scripts
	Host    host.Host

	// Factory builds the live analysis binding. Nil uses the import graph.
	Factory analysis.Factory

	// Options are the initial compiler options. Nil synthesizes defaults.
	Options analysis.Options

	// DisableLanguageService starts the project with the null binding.
	DisableLanguageService bool

	Logger *slog.Logger
}

var lastID atomic.Uint64

// NextID returns a process-wide unique project ID.
func NextID() scriptinfo.ProjectID {
	return scriptinfo.ProjectID(lastID.Add(1))
}

// Project is a set of root files and the program derived from them.
type Project struct {
	id      scriptinfo.ProjectID
	variant variant
	scripts Scripts
	host    host.Host
	logger  *slog.Logger

	factory   analysis.Factory
	binding   analysis.Binding
	options   analysis.Options
	lsEnabled bool

	roots    *FileMembership
	versions VersionTracker
	reporter DiffReporter

	program      *analysis.Program
	graphUpdated bool
	closed       bool
}

func newProject(cfg Config) *Project {
	id := cfg.ID
	if id == 0 {
		id = NextID()
	}
	factory := cfg.Factory
	if factory == nil {
		factory = analysis.NewImportGraph
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := cfg.Options
	if opts == nil {
		opts = analysis.DefaultOptions()
	} else {
		opts = opts.Clone()
	}

	p := &Project{
		id:      id,
		scripts: cfg.Scripts,
		host:    cfg.Host,
		logger:  logger,
		factory: factory,
		binding: analysis.Null,
		options: opts,
		roots:   NewFileMembership(),
	}
	if !cfg.DisableLanguageService {
		p.EnableLanguageService()
	}
	return p
}

// init finishes construction once the variant is known.
func (p *Project) init(v variant, roots []string) {
	p.variant = v
	p.logger = p.logger.With(slog.String("project", v.name()), slog.String("kind", v.kind().String()))
	for _, r := range roots {
		p.AddRootPath(r)
	}
	p.logger.Debug("project created", slog.Int("roots", p.roots.Len()))
}

// ID returns the project identity.
func (p *Project) ID() scriptinfo.ProjectID { return p.id }

// Kind returns the variant tag.
func (p *Project) Kind() Kind { return p.variant.kind() }

// IsInferred reports whether this is an inferred project.
func (p *Project) IsInferred() bool { return p.variant.kind() == KindInferred }

// IsClosed reports whether Close has been called.
func (p *Project) IsClosed() bool { return p.closed }

// ProjectName returns the variant-specific name.
func (p *Project) ProjectName() string { return p.variant.name() }

// Configured returns the configured payload, if this is a configured project.
func (p *Project) Configured() (*Configured, bool) {
	c, ok := p.variant.(*Configured)
	return c, ok
}

// Inferred returns the inferred payload, if this is an inferred project.
func (p *Project) Inferred() (*Inferred, bool) {
	i, ok := p.variant.(*Inferred)
	return i, ok
}

// External returns the external payload, if this is an external project.
func (p *Project) External() (*External, bool) {
	e, ok := p.variant.(*External)
	return e, ok
}

// AddRoot makes info a root file. Adding an existing root is a no-op.
func (p *Project) AddRoot(info *scriptinfo.Info) {
	if info == nil || !p.roots.Add(info) {
		return
	}
	p.scripts.Attach(info, p.id)
	p.MarkAsDirty()
}

// AddRootPath resolves path through the registry and adds it as a root.
// It reports false when the file is unknown and missing on disk.
func (p *Project) AddRootPath(path string) bool {
	info := p.scripts.GetOrCreate(vfs.Normalize(path), false)
	if info == nil {
		return false
	}
	p.AddRoot(info)
	return true
}

// RemoveFile drops info from the project. A root is removed from the root
// set; a referenced file is dropped from the binding's view. When detach is
// true the file's relation to this project is removed as well. Removing a
// file that is neither root nor referenced does nothing.
func (p *Project) RemoveFile(info *scriptinfo.Info, detach bool) {
	if info == nil {
		return
	}
	path := info.Path()
	switch {
	case p.roots.Remove(path):
		p.binding.RemoveRoot(path)
	case p.program.Contains(path):
		p.binding.RemoveReferencedFile(path)
	default:
		return
	}

	if detach {
		p.scripts.Detach(info, p.id)
	}
	p.MarkAsDirty()
}

// MarkAsDirty records a change that does not alter the root set, such as
// an edit to a contained file.
func (p *Project) MarkAsDirty() {
	p.versions.MarkState()
}

// UpdateGraph asks the binding for its current program and reports whether
// the structure version changed. It does nothing while the language service
// is disabled.
func (p *Project) UpdateGraph() bool {
	if !p.lsEnabled {
		return false
	}

	start := time.Now()
	previous := p.program
	p.program = p.binding.Program()

	changed := false
	if !p.graphUpdated || p.structureChanged(previous) {
		p.graphUpdated = true
		p.versions.MarkStructure()
		p.detachDropped(previous)
		changed = true
		p.logger.Debug("project structure changed",
			slog.Int("structureVersion", p.versions.Structure()),
			slog.Int("previousFiles", previous.Len()),
			slog.Int("files", p.program.Len()),
		)
	}

	recordGraphUpdate(p.Kind(), time.Since(start), changed)
	return changed
}

// structureChanged reports whether the current program replaces previous
// with a different file set. A binding that could not reuse the old
// structure may still produce the same files, for example right after the
// language service is re-enabled.
func (p *Project) structureChanged(previous *analysis.Program) bool {
	if p.program == previous || p.program.StructureIsReused() {
		return false
	}
	return !analysis.SameFiles(previous, p.program)
}

// detachDropped detaches referenced files that left the program.
func (p *Project) detachDropped(previous *analysis.Program) {
	for _, f := range previous.SourceFiles() {
		if p.program.Contains(f) || p.roots.Contains(f) {
			continue
		}
		if info, ok := p.scripts.Get(f); ok {
			p.scripts.Detach(info, p.id)
		}
	}
}

// FileNames returns the project's files in program order. Before the first
// graph update the list is empty. While the language service is disabled
// the list is the root files plus the default library, since no dependency
// graph is computed.
func (p *Project) FileNames() []string {
	if p.program == nil {
		return []string{}
	}
	if !p.lsEnabled {
		files := p.roots.Paths()
		return append(files, analysis.DefaultLibraryPath(p.options))
	}
	return p.program.SourceFiles()
}

// RootFiles returns the root file paths in insertion order.
func (p *Project) RootFiles() []string {
	return p.roots.Paths()
}

// RootScriptInfos returns the root files in insertion order.
func (p *Project) RootScriptInfos() []*scriptinfo.Info {
	return p.roots.Infos()
}

// IsRoot reports whether path is a root file.
func (p *Project) IsRoot(path string) bool {
	return p.roots.Contains(vfs.Normalize(path))
}

// ScriptInfos returns every included file the registry knows: the roots
// followed by referenced files of the current program.
func (p *Project) ScriptInfos() []*scriptinfo.Info {
	infos := p.roots.Infos()
	for _, f := range p.program.SourceFiles() {
		if p.roots.Contains(f) {
			continue
		}
		if info, ok := p.scripts.Get(f); ok {
			infos = append(infos, info)
		}
	}
	return infos
}

// ContainsFile reports whether path is a root or part of the program. With
// requireOpen, only files open in the client count.
func (p *Project) ContainsFile(path string, requireOpen bool) bool {
	path = vfs.Normalize(path)
	info, ok := p.scripts.Get(path)
	if !ok || (requireOpen && !info.IsOpen()) {
		return false
	}
	return p.roots.Contains(path) || p.program.Contains(path)
}

// ProjectInfo returns the summary reported to consumers.
func (p *Project) ProjectInfo() ProjectInfo {
	return ProjectInfo{
		ProjectName: p.ProjectName(),
		Version:     p.versions.Structure(),
		IsInferred:  p.IsInferred(),
	}
}

// ChangesSinceVersion reports the project's files relative to what the
// default consumer last saw. Pass UnknownVersion when there is no baseline.
func (p *Project) ChangesSinceVersion(lastKnownVersion int) ChangesResponse {
	return p.reporter.Report(p.ProjectInfo(), p.FileNames(), lastKnownVersion)
}

// ProjectVersion returns the state version as an opaque token.
func (p *Project) ProjectVersion() string {
	return strconv.Itoa(p.versions.State())
}

// StateVersion returns the state version.
func (p *Project) StateVersion() int { return p.versions.State() }

// StructureVersion returns the structure version.
func (p *Project) StructureVersion() int { return p.versions.Structure() }

// Program returns the last computed program, nil before the first update.
func (p *Project) Program() *analysis.Program { return p.program }

// LanguageServiceEnabled reports whether a live binding is active.
func (p *Project) LanguageServiceEnabled() bool { return p.lsEnabled }

// EnableLanguageService swaps in a live binding seeded with the current
// options.
func (p *Project) EnableLanguageService() {
	if p.lsEnabled {
		return
	}
	p.binding = p.factory(p, p.options)
	p.lsEnabled = true
}

// DisableLanguageService disposes the live binding and swaps in the null
// binding. The last program is kept for FileNames.
func (p *Project) DisableLanguageService() {
	if !p.lsEnabled {
		return
	}
	p.binding.Dispose()
	p.binding = analysis.Null
	p.lsEnabled = false
}

// CompilerOptions returns a copy of the current options.
func (p *Project) CompilerOptions() analysis.Options {
	return p.options.Clone()
}

// SetCompilerOptions replaces the options. Empty options are ignored.
// Non-TS extensions are always allowed.
func (p *Project) SetCompilerOptions(opts analysis.Options) {
	if len(opts) == 0 {
		return
	}
	opts = opts.Clone()
	opts[analysis.OptionAllowNonTSExtensions] = true
	p.options = opts
	p.binding.SetCompilationSettings(opts.Clone())
	p.MarkAsDirty()
}

// SaveTo writes the current text of path to tmpPath. Files unknown to the
// script registry are ignored.
func (p *Project) SaveTo(path, tmpPath string) error {
	path = vfs.Normalize(path)
	info, ok := p.scripts.Get(path)
	if !ok {
		return nil
	}
	snap := info.Snapshot()
	if err := p.host.WriteFile(tmpPath, []byte(snap.Text(0, snap.Len()))); err != nil {
		return fmt.Errorf("save %s to %s: %w", path, tmpPath, err)
	}
	return nil
}

// FilesToString returns the file names, one per line.
func (p *Project) FilesToString() string {
	return strings.Join(p.FileNames(), "\n")
}

// Close releases the project's watches, detaches every included file and
// disposes the binding. A closed project must not be reused.
func (p *Project) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true

	var errs []error
	if err := p.variant.release(); err != nil {
		errs = append(errs, err)
	}

	for _, info := range p.ScriptInfos() {
		p.scripts.Detach(info, p.id)
	}
	p.roots.Clear()

	p.binding.Dispose()
	p.binding = analysis.Null
	p.lsEnabled = false
	p.program = nil
	p.reporter.Reset()

	p.logger.Debug("project closed")
	return errors.Join(errs...)
}

// delivery addresses watch events to this project.
func (p *Project) delivery(tag string) host.Delivery {
	return host.Delivery{Owner: uint64(p.id), Tag: tag}
}

// The methods below let a live binding compute against the project.

// FileExists reports whether path is known to the registry or on disk.
func (p *Project) FileExists(path string) bool {
	if _, ok := p.scripts.Get(path); ok {
		return true
	}
	return p.host.FS().Exists(path)
}

// ReadScript returns the text of path and attaches the file to the project.
func (p *Project) ReadScript(path string) ([]byte, bool) {
	info := p.scripts.GetOrCreate(path, false)
	if info == nil {
		return nil, false
	}
	p.scripts.Attach(info, p.id)
	return info.Snapshot().Bytes(), true
}

var _ analysis.Host = (*Project)(nil)
