package service

import (
	"context"
	"log/slog"
	"path"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/project"
	"github.com/dshills/projectd/internal/projectconfig"
	"github.com/dshills/projectd/internal/scriptinfo"
	"github.com/dshills/projectd/internal/watcher"
)

// HandleEvent applies one watch event. Events addressed to a project that
// is no longer live are ignored.
func (s *Service) HandleEvent(ctx context.Context, ev host.Event) {
	_, span := startSpan(ctx, "HandleEvent", ev.Path)
	span.SetAttributes(
		attribute.String("projectd.tag", ev.Subscription.Delivery.Tag),
		attribute.String("projectd.op", ev.Op.String()),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[scriptinfo.ProjectID(ev.Subscription.Delivery.Owner)]
	if !ok || p.IsClosed() {
		span.SetAttributes(attribute.Bool("projectd.dropped", true))
		return
	}

	switch ev.Subscription.Delivery.Tag {
	case project.TagConfigFile:
		s.onConfigFileChanged(p)
	case project.TagConfigDirectory, project.TagWildcardDirectory:
		s.onSourceFileChanged(p, ev.Path, ev.Op)
	case project.TagInferredDirectory:
		s.onInferredDirectoryChanged(ev.Path, ev.Op)
	default:
		s.logger.Debug("unhandled watch event", slog.String("tag", ev.Subscription.Delivery.Tag), slog.String("path", ev.Path))
	}
}

// onConfigFileChanged reloads a configured project. A deleted configuration
// closes the project and rehomes its open files.
func (s *Service) onConfigFileChanged(p *project.Project) {
	c, _ := p.Configured()
	configPath := c.ConfigFilePath()

	if !s.fs.Exists(configPath) {
		s.logger.Info("config file deleted", slog.String("config", configPath))
		_ = s.closeProject(p)
		s.reassignOrphans()
		return
	}

	if err := s.reloadConfigured(p); err != nil {
		s.logger.Warn("config reload failed", slog.String("config", configPath), slog.String("error", err.Error()))
		return
	}
	s.refreshInferredProjects()
	s.reassignOrphans()
}

func (s *Service) reloadConfigured(p *project.Project) error {
	c, _ := p.Configured()
	cfg, err := projectconfig.Load(s.fs, c.ConfigFilePath())
	if err != nil {
		return err
	}
	roots, err := cfg.RootFiles(s.fs)
	if err != nil {
		return err
	}

	p.SetCompilerOptions(s.projectConfig(cfg.CompilerOptions).Options)
	s.syncRoots(p, roots)
	if err := c.UpdateWildcardDirectories(cfg.WildcardDirectories); err != nil {
		s.logger.Warn("wildcard watch release failed", slog.String("config", c.ConfigFilePath()), slog.String("error", err.Error()))
	}
	s.configs[p.ID()] = cfg
	p.UpdateGraph()
	s.logger.Info("configured project reloaded", slog.String("config", c.ConfigFilePath()), slog.Int("roots", len(roots)))
	return nil
}

// onSourceFileChanged handles a change under a configured project's
// directory or wildcard directories.
func (s *Service) onSourceFileChanged(p *project.Project, filePath string, op watcher.Op) {
	c, _ := p.Configured()
	if filePath == c.ConfigFilePath() {
		return
	}
	cfg := s.configs[p.ID()]
	if cfg == nil {
		return
	}

	exists := s.fs.Exists(filePath) && !s.fs.IsDir(filePath)
	switch {
	case exists && !p.IsRoot(filePath) && cfg.Matches(filePath):
		if p.AddRootPath(filePath) {
			s.logger.Debug("root added", slog.String("project", p.ProjectName()), slog.String("path", filePath))
			p.UpdateGraph()
			s.refreshInferredProjects()
		}
	case !exists && p.IsRoot(filePath):
		if info, ok := s.scripts.Get(filePath); ok {
			p.RemoveFile(info, true)
			s.logger.Debug("root removed", slog.String("project", p.ProjectName()), slog.String("path", filePath))
			p.UpdateGraph()
			s.reassignOrphans()
		}
	case exists && op.Has(watcher.OpWrite):
		s.scripts.Invalidate(filePath)
		s.markContainingDirty(filePath)
	}
}

// onInferredDirectoryChanged rehomes open files of inferred projects once a
// configuration file appears above them.
func (s *Service) onInferredDirectoryChanged(filePath string, op watcher.Op) {
	if !s.isConfigFileName(path.Base(filePath)) || op.Has(watcher.OpRemove) {
		return
	}
	if !s.fs.Exists(filePath) {
		return
	}

	moved := false
	for _, p := range append([]*project.Project(nil), s.inferred...) {
		for _, file := range p.RootFiles() {
			if s.open[file] && s.assignToConfigured(file) {
				moved = true
			}
		}
	}
	if moved {
		s.refreshInferredProjects()
	}
}

func (s *Service) isConfigFileName(name string) bool {
	for _, n := range s.configNames {
		if n == name {
			return true
		}
	}
	return false
}
