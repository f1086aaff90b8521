package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxview/internal/config"
	"ctxview/internal/mcp"
	"ctxview/internal/model"
	"ctxview/internal/viewer"
	"ctxview/internal/web"
)

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: "Run the MCP server on stdin/stdout. The web viewer is started on demand by the\n" +
			"open_viewer tool and stopped again when this process exits.",
		Args: cobra.NoArgs,
		RunE: a.runMCP,
	}
}

func (a *app) runMCP(cmd *cobra.Command, _ []string) error {
	e, err := a.setup(cmd, setupOptions{logFile: "mcp.log", needRoot: true, useJournal: true})
	if err != nil {
		return err
	}
	defer e.Close()

	launcher, err := a.launcher(e)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(mcp.Deps{
		Gateway:     e.gateway,
		Store:       e.store,
		Selections:  e.selections,
		Navigations: e.navigations,
		Launcher:    launcher,
		History:     e.history(),
		Logger:      e.logger,
		Version:     version,
		ViewerURL:   "http://" + e.cfg.Viewer.Listen,
		WaitTimeout: e.cfg.Selection.WaitTimeout.Duration,
	})
	runErr := srv.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := launcher.Stop(stopCtx); err != nil {
		e.logger.Warn("stopping viewer", zap.Error(err))
	}
	if ctx.Err() != nil {
		return nil
	}
	return runErr
}

func (a *app) launcher(e *env) (model.Launcher, error) {
	if e.cfg.Viewer.Mode == config.ViewerModeEmbedded {
		srv, err := e.webServer()
		if err != nil {
			return nil, err
		}
		return viewer.NewEmbeddedLauncher(e.store, srv, web.NewStateWatcher(e.store, e.logger), e.cfg.Viewer.Listen, e.logger), nil
	}

	args := []string{
		"serve",
		"--root", e.gateway.Root(),
		"--state-file", e.cfg.StateFile,
		"--listen", e.cfg.Viewer.Listen,
	}
	if a.flags.ConfigPath != "" {
		args = append(args, "--config", a.flags.ConfigPath)
	}
	if e.cfg.Verbose {
		args = append(args, "--verbose")
	}
	return viewer.NewProcessLauncher(e.store, viewer.ProcessOptions{
		Args:         args,
		LogFile:      e.cfg.LogFile,
		StartTimeout: e.cfg.Viewer.StartTimeout.Duration,
		Logger:       e.logger,
	}), nil
}
