package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/projectd/internal/host"
	"github.com/dshills/projectd/internal/project"
	"github.com/dshills/projectd/internal/scriptinfo"
	"github.com/dshills/projectd/internal/service"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>...",
		Short: "Open files and log project changes until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for _, arg := range args {
				file, err := absPath(arg)
				if err != nil {
					return err
				}
				if _, err := rt.service.OpenClientFile(ctx, file, nil); err != nil {
					return err
				}
			}

			return watch(ctx, rt.host, rt.service, rt.logger)
		},
	}
}

// watch pumps host events through svc and logs every project whose
// membership changed, until ctx is done.
func watch(ctx context.Context, h *host.FSHost, svc *service.Service, logger *slog.Logger) error {
	seen := make(map[scriptinfo.ProjectID]int)
	report := func() {
		for _, p := range svc.Projects() {
			last, ok := seen[p.ID()]
			if !ok {
				last = project.UnknownVersion
			}
			resp, err := svc.Changes(p.ID(), last)
			if err != nil {
				continue
			}
			seen[p.ID()] = resp.Info.Version
			logChanges(logger, resp)
		}
	}
	report()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Queue().Close()
		return nil
	})
	g.Go(func() error {
		queue := h.Queue()
		for {
			ev, err := queue.Next(gctx)
			if err != nil {
				if errors.Is(err, host.ErrQueueClosed) {
					return nil
				}
				return err
			}
			svc.HandleEvent(gctx, ev)
			report()
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logChanges(logger *slog.Logger, resp project.ChangesResponse) {
	attrs := []any{
		slog.String("project", resp.Info.ProjectName),
		slog.Int("version", resp.Info.Version),
	}
	switch {
	case resp.IsSummary():
		return
	case resp.IsFullList():
		logger.Info("project files", append(attrs, slog.Int("files", len(resp.Files)))...)
	default:
		logger.Info("project changed", append(attrs,
			slog.Any("added", resp.Changes.Added),
			slog.Any("removed", resp.Changes.Removed))...)
	}
}
