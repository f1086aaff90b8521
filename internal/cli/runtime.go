package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxview/internal/channel"
	"ctxview/internal/config"
	"ctxview/internal/files"
	"ctxview/internal/journal"
	"ctxview/internal/logging"
	"ctxview/internal/model"
	"ctxview/internal/statestore"
	"ctxview/internal/web"
)

// env is everything a command needs once config is resolved.
type env struct {
	cfg         *config.Config
	logger      *zap.Logger
	store       *statestore.Store
	gateway     *files.Gateway
	selections  *channel.Selections
	navigations *channel.Navigations
	journal     *journal.SQLiteJournal

	cleanups []func()
}

type setupOptions struct {
	// logFile names the rotated JSON log under the log directory; empty
	// keeps logs on the console only.
	logFile    string
	quiet      bool
	needRoot   bool
	useJournal bool
	listen     *string
}

func (e *env) Close() {
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i]()
	}
}

func (a *app) loadConfig(cmd *cobra.Command, listen *string) (*config.Config, error) {
	ov := &config.Overrides{Listen: listen}
	flags := cmd.Flags()
	if flags.Changed("root") {
		ov.RootDir = &a.flags.Root
	}
	if flags.Changed("state-file") {
		ov.StateFile = &a.flags.StateFile
	}
	if flags.Changed("verbose") {
		ov.Verbose = &a.flags.Verbose
	}
	return config.Load(config.Options{ConfigPath: a.flags.ConfigPath, Overrides: ov})
}

func (a *app) setup(cmd *cobra.Command, opts setupOptions) (*env, error) {
	cfg, err := a.loadConfig(cmd, opts.listen)
	if err != nil {
		return nil, exitWith(ExitConfigInvalid, err)
	}

	e := &env{cfg: cfg}
	logOpts := logging.Options{Verbose: cfg.Verbose, Quiet: opts.quiet}
	if opts.logFile != "" && cfg.LogFile != "" {
		logOpts.File = filepath.Join(filepath.Dir(cfg.LogFile), opts.logFile)
	}
	logger, flush := logging.New(logOpts)
	e.logger = logger
	e.cleanups = append(e.cleanups, flush)

	e.store = statestore.New(cfg.StateFile, logger)

	chOpts := channel.Options{
		PollInterval: cfg.Selection.PollInterval.Duration,
		Logger:       logger,
	}
	if opts.useJournal && cfg.Journal.Enabled {
		j := journal.NewSQLiteJournal(cfg.JournalPath, logger)
		if err := j.Init(cmd.Context()); err != nil {
			// The journal is an audit trail; losing it must not stop the channel.
			logger.Warn("journal disabled", zap.String("path", cfg.JournalPath), zap.Error(err))
		} else {
			e.journal = j
			e.cleanups = append(e.cleanups, func() { _ = j.Close() })
			chOpts.Recorder = j
			if cfg.Journal.MaxEvents > 0 {
				if n, err := j.Prune(cmd.Context(), cfg.Journal.MaxEvents); err != nil {
					logger.Warn("journal prune failed", zap.Error(err))
				} else if n > 0 {
					logger.Debug("journal pruned", zap.Int64("removed", n))
				}
			}
		}
	}
	e.selections = channel.NewSelections(e.store, chOpts)
	e.navigations = channel.NewNavigations(e.store, chOpts)

	if opts.needRoot {
		gw, err := files.New(cfg.RootDir, files.Options{
			Latex: files.LatexOptions{
				Compiler:      cfg.Latex.Compiler,
				Timeout:       cfg.Latex.Timeout.Duration,
				MaxErrorChars: cfg.Latex.MaxErrorChars,
			},
			Logger: logger,
		})
		if err != nil {
			e.Close()
			return nil, exitWith(ExitRootInaccessible, fmt.Errorf("root directory inaccessible: %w", err))
		}
		e.gateway = gw
	}
	return e, nil
}

// history returns the journal as an EventLister, or nil when disabled.
func (e *env) history() model.EventLister {
	if e.journal == nil {
		return nil
	}
	return e.journal
}

func (e *env) webServer() (*web.Server, error) {
	return web.New(web.Deps{
		Gateway:      e.gateway,
		Selections:   e.selections,
		Navigations:  e.navigations,
		Logger:       e.logger,
		Style:        e.cfg.Viewer.Style,
		Version:      version,
		WriteTimeout: e.cfg.Latex.Timeout.Duration + 30*time.Second,
	})
}
