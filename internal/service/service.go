// Package service owns the projects of a running project service.
//
// The service decides which project an opened file belongs to: the
// configured project of the nearest configuration file above it, or else a
// new inferred project. It keeps configured projects alive while files that
// justify them are open, owns external projects declared by the client, and
// reacts to watch events delivered through the host queue.
//
// Every exported method is safe for concurrent use; the service serializes
// them so projects see a single thread of control.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/projectd/internal/analysis"
	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/logging"
	"github.com/dshills/projectd/internal/project"
	"github.com/dshills/projectd/internal/projectconfig"
	"github.com/dshills/projectd/internal/scriptinfo"
	"github.com/dshills/projectd/internal/vfs"
)

// Options configures a Service.
type Options struct {
	Host host.Host

	// Scripts is the script-info registry. Nil creates one over the host
	// file system.
	Scripts *scriptinfo.Registry

	// SnapshotCacheSize sizes a registry created by the service.
	SnapshotCacheSize int

	// Names generates inferred project names. Nil uses the process-wide
	// generator.
	Names project.NameGenerator

	// Factory builds analysis bindings. Nil uses the import graph.
	Factory analysis.Factory

	// ConfigFileNames are searched in each ancestor directory of an opened
	// file. Nil uses projectd.json then tsconfig.json.
	ConfigFileNames []string

	// LibDirectory is where default library files live.
	LibDirectory string

	DisableLanguageService bool

	Logger *slog.Logger
}

// Service owns configured, inferred and external projects.
type Service struct {
	mu sync.Mutex

	host        host.Host
	fs          vfs.FS
	scripts     *scriptinfo.Registry
	names       project.NameGenerator
	factory     analysis.Factory
	configNames []string
	libDir      string
	disableLS   bool
	logger      *slog.Logger

	projects   map[scriptinfo.ProjectID]*project.Project
	configured map[string]*project.Project
	configs    map[scriptinfo.ProjectID]*projectconfig.Config
	inferred   []*project.Project
	external   map[string]*project.Project

	// openRefs records the configured projects each open file holds a
	// reference on.
	openRefs map[string][]scriptinfo.ProjectID
	open     map[string]bool
}

// New creates a service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	scripts := opts.Scripts
	if scripts == nil {
		var regOpts []scriptinfo.Option
		if opts.SnapshotCacheSize > 0 {
			regOpts = append(regOpts, scriptinfo.WithSnapshotCacheSize(opts.SnapshotCacheSize))
		}
		regOpts = append(regOpts, scriptinfo.WithLogger(logger))
		scripts = scriptinfo.NewRegistry(opts.Host.FS(), regOpts...)
	}
	names := opts.Names
	if names == nil {
		names = project.InferredNames
	}
	configNames := opts.ConfigFileNames
	if configNames == nil {
		configNames = []string{projectconfig.FileName, "tsconfig.json"}
	}

	return &Service{
		host:        opts.Host,
		fs:          opts.Host.FS(),
		scripts:     scripts,
		names:       names,
		factory:     opts.Factory,
		configNames: configNames,
		libDir:      opts.LibDirectory,
		disableLS:   opts.DisableLanguageService,
		logger:      logger,
		projects:    make(map[scriptinfo.ProjectID]*project.Project),
		configured:  make(map[string]*project.Project),
		configs:     make(map[scriptinfo.ProjectID]*projectconfig.Config),
		external:    make(map[string]*project.Project),
		openRefs:    make(map[string][]scriptinfo.ProjectID),
		open:        make(map[string]bool),
	}
}

// Scripts returns the script-info registry.
func (s *Service) Scripts() *scriptinfo.Registry { return s.scripts }

// OpenClientFile marks path as open with the given content (nil reads the
// file from disk) and returns the project it is assigned to.
func (s *Service) OpenClientFile(ctx context.Context, filePath string, content []byte) (*project.Project, error) {
	filePath = vfs.Normalize(filePath)
	_, span := startSpan(ctx, "OpenClientFile", filePath)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripts.Open(filePath, content)
	s.open[filePath] = true

	if s.assignToConfigured(filePath) {
		s.refreshInferredProjects()
	} else if s.defaultProjectLocked(filePath) == nil {
		s.createInferred(filePath)
	}

	p := s.defaultProjectLocked(filePath)
	if p == nil {
		err := fmt.Errorf("open %s: no project", filePath)
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("projectd.project", p.ProjectName()))
	endSpan(span, nil)
	return p, nil
}

// CloseClientFile marks path as closed. Configured projects losing their
// last open reference are closed, as are inferred projects left without
// roots.
func (s *Service) CloseClientFile(ctx context.Context, filePath string) error {
	filePath = vfs.Normalize(filePath)
	_, span := startSpan(ctx, "CloseClientFile", filePath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open[filePath] {
		endSpan(span, ErrFileNotOpen)
		return ErrFileNotOpen
	}
	delete(s.open, filePath)

	var errs []error
	shrunk := false
	for _, id := range append([]scriptinfo.ProjectID(nil), s.openRefs[filePath]...) {
		p, ok := s.projects[id]
		if !ok {
			continue
		}
		c, _ := p.Configured()
		if c.DeleteOpenRef() == 0 {
			errs = append(errs, s.closeProject(p))
			shrunk = true
		}
	}
	delete(s.openRefs, filePath)

	if info, ok := s.scripts.Get(filePath); ok {
		for _, p := range append([]*project.Project(nil), s.inferred...) {
			if !p.IsRoot(filePath) {
				continue
			}
			p.RemoveFile(info, true)
			if len(p.RootFiles()) == 0 {
				errs = append(errs, s.closeProject(p))
			} else {
				p.UpdateGraph()
			}
			shrunk = true
		}
	}

	// Open files only referenced through the closed file need a new home.
	if shrunk {
		s.reassignOrphans()
	}

	s.scripts.Close(filePath)
	err := errors.Join(errs...)
	endSpan(span, err)
	return err
}

// ChangeFile replaces the content of an open file and marks every project
// containing it dirty.
func (s *Service) ChangeFile(filePath string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath = vfs.Normalize(filePath)
	if err := s.scripts.Edit(filePath, content); err != nil {
		return fmt.Errorf("change %s: %w", filePath, err)
	}
	s.markContainingDirty(filePath)
	return nil
}

// ApplyChange splices text into the byte range [start, end) of an open file.
func (s *Service) ApplyChange(filePath string, start, end int, text []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filePath = vfs.Normalize(filePath)
	if err := s.scripts.ApplyEdit(filePath, start, end, text); err != nil {
		return fmt.Errorf("change %s: %w", filePath, err)
	}
	s.markContainingDirty(filePath)
	return nil
}

// OpenExternalProject creates or updates the external project name with the
// given roots and options.
func (s *Service) OpenExternalProject(name string, roots []string, opts analysis.Options) *project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.external[name]; ok {
		s.syncRoots(p, normalizeAll(roots))
		if len(opts) > 0 {
			p.SetCompilerOptions(s.projectConfig(opts).Options)
		}
		p.UpdateGraph()
		return p
	}

	p := project.NewExternal(s.projectConfig(opts), name, normalizeAll(roots))
	s.external[name] = p
	s.projects[p.ID()] = p
	p.UpdateGraph()
	s.refreshInferredProjects()
	return p
}

// CloseExternalProject closes the external project name.
func (s *Service) CloseExternalProject(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.external[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	err := s.closeProject(p)
	s.reassignOrphans()
	return err
}

// Projects returns the live projects: configured by config path, inferred
// in creation order, then external by name.
func (s *Service) Projects() []*project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*project.Project, 0, len(s.projects))
	for _, k := range sortedKeys(s.configured) {
		out = append(out, s.configured[k])
	}
	out = append(out, s.inferred...)
	for _, k := range sortedKeys(s.external) {
		out = append(out, s.external[k])
	}
	return out
}

// Project returns a live project by ID.
func (s *Service) Project(id scriptinfo.ProjectID) (*project.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	return p, ok
}

// ConfiguredProject returns the configured project of a config file path.
func (s *Service) ConfiguredProject(configPath string) (*project.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.configured[vfs.Normalize(configPath)]
	return p, ok
}

// ExternalProject returns an external project by name.
func (s *Service) ExternalProject(name string) (*project.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.external[name]
	return p, ok
}

// InferredProjects returns the live inferred projects in creation order.
func (s *Service) InferredProjects() []*project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*project.Project(nil), s.inferred...)
}

// DefaultProject returns the project answering for a file: a configured
// project containing it, else an external one, else an inferred one.
func (s *Service) DefaultProject(filePath string) (*project.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.defaultProjectLocked(vfs.Normalize(filePath))
	return p, p != nil
}

// Changes brings the project's graph up to date and reports its files
// relative to lastKnownVersion.
func (s *Service) Changes(id scriptinfo.ProjectID, lastKnownVersion int) (project.ChangesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok || p.IsClosed() {
		return project.ChangesResponse{}, ErrProjectClosed
	}
	p.UpdateGraph()
	return p.ChangesSinceVersion(lastKnownVersion), nil
}

// FileNames brings the project's graph up to date and returns its files.
func (s *Service) FileNames(id scriptinfo.ProjectID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok || p.IsClosed() {
		return nil, ErrProjectClosed
	}
	p.UpdateGraph()
	return p.FileNames(), nil
}

// Close closes every project.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range s.projects {
		errs = append(errs, s.closeProject(p))
	}
	return errors.Join(errs...)
}

// Run handles watch events from the host queue until ctx is done or the
// queue is closed.
func (s *Service) Run(ctx context.Context) error {
	queue := s.host.Queue()
	for {
		ev, err := queue.Next(ctx)
		if errors.Is(err, host.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		s.HandleEvent(ctx, ev)
	}
}

func (s *Service) defaultProjectLocked(filePath string) *project.Project {
	var ext, inf *project.Project
	for _, id := range s.scripts.Projects(filePath) {
		p, ok := s.projects[id]
		if !ok || !p.ContainsFile(filePath, false) {
			continue
		}
		switch p.Kind() {
		case project.KindConfigured:
			return p
		case project.KindExternal:
			if ext == nil {
				ext = p
			}
		case project.KindInferred:
			if inf == nil {
				inf = p
			}
		}
	}
	if ext != nil {
		return ext
	}
	return inf
}

func (s *Service) projectConfig(opts analysis.Options) project.Config {
	base := analysis.DefaultOptions()
	if s.libDir != "" {
		base[analysis.OptionLibDirectory] = s.libDir
	}
	for k, v := range opts {
		base[k] = v
	}
	return project.Config{
		Scripts:                s.scripts,
		Host:                   s.host,
		Factory:                s.factory,
		Options:                base,
		DisableLanguageService: s.disableLS,
		Logger:                 s.logger,
	}
}

// findConfigFile searches the file's directory and its ancestors for a
// configuration file.
func (s *Service) findConfigFile(filePath string) string {
	dir := path.Dir(filePath)
	for {
		for _, name := range s.configNames {
			candidate := path.Join(dir, name)
			if s.fs.Exists(candidate) && !s.fs.IsDir(candidate) {
				return candidate
			}
		}
		parent := path.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// assignToConfigured puts an open file into the configured project of its
// nearest configuration file and takes an open reference on it.
func (s *Service) assignToConfigured(filePath string) bool {
	configPath := s.findConfigFile(filePath)
	if configPath == "" {
		return false
	}
	p, err := s.openConfiguredProject(configPath)
	if err != nil {
		s.logger.Warn("configured project unavailable", slog.String("config", configPath), slog.String("error", err.Error()))
		return false
	}
	if !p.ContainsFile(filePath, false) {
		if c, _ := p.Configured(); c.OpenRefCount() == 0 {
			_ = s.closeProject(p)
		}
		return false
	}
	for _, id := range s.openRefs[filePath] {
		if id == p.ID() {
			return true
		}
	}
	c, _ := p.Configured()
	c.AddOpenRef()
	s.openRefs[filePath] = append(s.openRefs[filePath], p.ID())
	return true
}

// openConfiguredProject returns the project for configPath, creating it
// and registering its watches on first use.
func (s *Service) openConfiguredProject(configPath string) (*project.Project, error) {
	if p, ok := s.configured[configPath]; ok {
		p.UpdateGraph()
		return p, nil
	}

	cfg, err := projectconfig.Load(s.fs, configPath)
	if err != nil {
		return nil, err
	}
	roots, err := cfg.RootFiles(s.fs)
	if err != nil {
		return nil, err
	}

	p := project.NewConfigured(s.projectConfig(cfg.CompilerOptions), configPath, roots)
	c, _ := p.Configured()
	c.WatchConfigFile()
	c.WatchConfigDirectory()
	c.WatchWildcardDirectories(cfg.WildcardDirectories)

	s.configured[configPath] = p
	s.configs[p.ID()] = cfg
	s.projects[p.ID()] = p
	p.UpdateGraph()
	s.logger.Info("configured project opened", slog.String("config", configPath), slog.Int("roots", len(roots)))
	return p, nil
}

// createInferred roots a new inferred project at an open file and watches
// the file's ancestors for a configuration file appearing.
func (s *Service) createInferred(filePath string) *project.Project {
	p := project.NewInferred(s.projectConfig(nil), s.names, filePath)
	inf, _ := p.Inferred()
	for dir := path.Dir(filePath); ; dir = path.Dir(dir) {
		inf.WatchDirectory(dir)
		if path.Dir(dir) == dir {
			break
		}
	}

	s.inferred = append(s.inferred, p)
	s.projects[p.ID()] = p
	p.UpdateGraph()
	s.logger.Info("inferred project created", slog.String("project", p.ProjectName()), slog.String("root", filePath))
	return p
}

func (s *Service) closeProject(p *project.Project) error {
	if p.IsClosed() {
		return nil
	}
	delete(s.projects, p.ID())
	switch p.Kind() {
	case project.KindConfigured:
		c, _ := p.Configured()
		delete(s.configured, c.ConfigFilePath())
		delete(s.configs, p.ID())
		for file, ids := range s.openRefs {
			s.openRefs[file] = removeID(ids, p.ID())
			if len(s.openRefs[file]) == 0 {
				delete(s.openRefs, file)
			}
		}
	case project.KindInferred:
		for i, q := range s.inferred {
			if q == p {
				s.inferred = append(s.inferred[:i], s.inferred[i+1:]...)
				break
			}
		}
	case project.KindExternal:
		delete(s.external, p.ProjectName())
	}

	s.logger.Info("project closed", slog.String("project", p.ProjectName()), slog.String("kind", p.Kind().String()))
	return p.Close()
}

// refreshInferredProjects moves open files that another project now
// contains out of inferred projects, closing inferred projects left empty.
func (s *Service) refreshInferredProjects() {
	for _, p := range append([]*project.Project(nil), s.inferred...) {
		for _, info := range p.RootScriptInfos() {
			file := info.Path()
			if !s.containedOutsideInferred(file) {
				continue
			}
			p.RemoveFile(info, true)
		}
		if len(p.RootFiles()) == 0 {
			_ = s.closeProject(p)
		} else {
			p.UpdateGraph()
		}
	}
}

func (s *Service) containedOutsideInferred(filePath string) bool {
	for _, id := range s.scripts.Projects(filePath) {
		p, ok := s.projects[id]
		if ok && !p.IsInferred() && p.ContainsFile(filePath, false) {
			return true
		}
	}
	return false
}

// reassignOrphans gives every open file that no project contains a new
// home: its configured project if one exists, else an inferred project.
func (s *Service) reassignOrphans() {
	for _, file := range sortedKeys(s.open) {
		if s.defaultProjectLocked(file) != nil {
			continue
		}
		if !s.assignToConfigured(file) {
			s.createInferred(file)
		}
	}
}

// syncRoots makes the project's roots equal to roots.
func (s *Service) syncRoots(p *project.Project, roots []string) {
	want := make(map[string]bool, len(roots))
	for _, r := range roots {
		want[r] = true
	}
	for _, info := range p.RootScriptInfos() {
		if !want[info.Path()] {
			p.RemoveFile(info, true)
		}
	}
	for _, r := range roots {
		p.AddRootPath(r)
	}
}

func (s *Service) markContainingDirty(filePath string) {
	for _, id := range s.scripts.Projects(filePath) {
		if p, ok := s.projects[id]; ok {
			p.MarkAsDirty()
		}
	}
}

func normalizeAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = vfs.Normalize(p)
	}
	return out
}

func removeID(ids []scriptinfo.ProjectID, id scriptinfo.ProjectID) []scriptinfo.ProjectID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
