package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/projectd/internal/config"
	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/logging"
	"github.com/dshills/projectd/internal/service"
	"github.com/dshills/projectd/internal/vfs"
	"github.com/dshills/projectd/internal/watcher"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "projectd",
		Short: "Project membership service for code analysis tooling",
		Long: `projectd tracks which source files belong to which project and reports
changes to project membership as incremental diffs.

A file belongs to the configured project of the nearest projectd.json or
tsconfig.json above it, or otherwise to an inferred project of its own.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "service config file (.toml, .yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newFilesCmd(opts),
		newChangesCmd(opts),
		newWatchCmd(opts),
		newInitCmd(),
	)
	return cmd
}

// runtime is a service wired to the real file system.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	host    *host.FSHost
	service *service.Service
}

func newRuntime(cmd *cobra.Command, opts *rootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "projectd",
	})

	w, err := watcher.NewFSNotifyWatcher(logger,
		watcher.WithBufferSize(cfg.Watch.BufferSize),
		watcher.WithIgnorePatterns(cfg.Watch.IgnorePatterns),
	)
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	h := host.NewFSHost(vfs.NewOSFS(), w, logger)
	svc := service.New(service.Options{
		Host:                   h,
		SnapshotCacheSize:      cfg.Scripts.SnapshotCacheSize,
		ConfigFileNames:        cfg.Projects.ConfigFileNames,
		LibDirectory:           cfg.Projects.LibDirectory,
		DisableLanguageService: cfg.Projects.DisableLanguageService,
		Logger:                 logger,
	})
	return &runtime{cfg: cfg, logger: logger, host: h, service: svc}, nil
}

func (r *runtime) Close() error {
	err := r.service.Close()
	if herr := r.host.Close(); herr != nil && err == nil {
		err = herr
	}
	return err
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return filepath.ToSlash(abs), nil
}
