package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ctxview/internal/config"
	"ctxview/internal/journal"
	"ctxview/internal/model"
	"ctxview/internal/tui"
)

const version = "0.1.0"

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live terminal view of the selection and navigation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(cmd, setupOptions{quiet: true, useJournal: true})
			if err != nil {
				return err
			}
			defer e.Close()
			return tui.Run(tui.StoreSource{Store: e.store, Selections: e.selections})
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var (
		limit int
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent selection and navigation events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := journal.ParseKind(kind)
			if err != nil {
				return err
			}
			e, err := a.setup(cmd, setupOptions{quiet: true, useJournal: true})
			if err != nil {
				return err
			}
			defer e.Close()
			if e.journal == nil {
				return errors.New("journal is disabled (journal.enabled=false)")
			}
			events, err := e.journal.List(cmd.Context(), k, limit)
			if err != nil {
				return err
			}
			if a.flags.JSON {
				return writeJSON(a.stdout, events)
			}
			printHistory(a, events)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	cmd.Flags().StringVar(&kind, "kind", "", "only events of this kind (e.g. selection_published)")
	return cmd
}

func printHistory(a *app, events []model.Event) {
	st := newStyles(a.stdout, false)
	if len(events) == 0 {
		_, _ = fmt.Fprintln(a.stdout, st.dim("No events recorded yet."))
		return
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tKIND\tFILE\tDETAIL")
	for _, ev := range events {
		detail := ev.Target
		if ev.StartLine > 0 {
			detail = fmt.Sprintf("lines %d-%d", ev.StartLine, ev.EndLine)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			model.TimeOf(ev.Timestamp).Format(time.DateTime), ev.Kind, ev.FilePath, detail)
	}
	_ = tw.Flush()
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the current selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(cmd, setupOptions{quiet: true, useJournal: true})
			if err != nil {
				return err
			}
			defer e.Close()
			cleared := e.selections.Clear(cmd.Context())
			if a.flags.JSON {
				return writeJSON(a.stdout, map[string]bool{"cleared": cleared})
			}
			_, _ = fmt.Fprintln(a.stdout, "Selection cleared.")
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd, nil)
			if err != nil {
				return exitWith(ExitConfigInvalid, err)
			}
			data, err := config.Encode(*cfg)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config.toml with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := a.flags.ConfigPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Default()); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			_, _ = fmt.Fprintln(a.stdout, "Wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(printCmd, initCmd)
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(a.stdout, "ctxview", version)
			return err
		},
	}
}
