package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxview/internal/viewer"
	"ctxview/internal/web"
)

func (a *app) serveCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web viewer in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var override *string
			if cmd.Flags().Changed("listen") {
				override = &listen
			}
			return a.runServe(cmd, override)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config, 127.0.0.1:8765)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, listen *string) error {
	e, err := a.setup(cmd, setupOptions{needRoot: true, useJournal: true, listen: listen})
	if err != nil {
		return err
	}
	defer e.Close()

	srv, err := e.webServer()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", e.cfg.Viewer.Listen)
	if err != nil {
		return exitWith(ExitBindFailure, fmt.Errorf("server bind failure: %w", err))
	}

	url := "http://" + ln.Addr().String()
	pid := os.Getpid()
	viewer.Announce(e.store, url, pid)
	defer viewer.Withdraw(e.store, pid)

	st := newStyles(a.stdout, a.flags.JSON)
	if a.flags.JSON {
		_ = writeJSON(a.stdout, map[string]any{"event": "listening", "url": url, "pid": pid})
	} else {
		_, _ = fmt.Fprintln(a.stdout, st.sectionHeader("ctxview viewer"))
		_, _ = fmt.Fprintln(a.stdout, st.kv("URL", st.url(url)))
		_, _ = fmt.Fprintln(a.stdout, st.kv("Root", e.gateway.Root()))
		_, _ = fmt.Fprintln(a.stdout, st.kv("State", e.store.Path()))
	}
	e.logger.Info("viewer listening", zap.String("url", url), zap.String("root", e.gateway.Root()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, ln, web.NewStateWatcher(e.store, e.logger)); err != nil {
		return err
	}
	e.logger.Info("viewer stopped")
	return nil
}
