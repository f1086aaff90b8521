package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"ctxview/internal/model"
	"ctxview/internal/viewer"
)

type statusReport struct {
	StateFile   string                   `json:"state_file"`
	Server      *serverStatus            `json:"server"`
	Selection   *model.Selection         `json:"selection"`
	Navigation  *model.NavigationCommand `json:"navigation"`
	JournalPath string                   `json:"journal_path,omitempty"`
}

type serverStatus struct {
	URL     string `json:"url"`
	PID     int    `json:"pid"`
	Alive   bool   `json:"alive"`
	Healthy bool   `json:"healthy"`
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the viewer, selection and navigation state",
		Args:  cobra.NoArgs,
		RunE:  a.runStatus,
	}
}

func (a *app) runStatus(cmd *cobra.Command, _ []string) error {
	e, err := a.setup(cmd, setupOptions{quiet: true})
	if err != nil {
		return err
	}
	defer e.Close()

	doc := e.store.Read()
	report := statusReport{StateFile: e.store.Path()}
	if e.cfg.Journal.Enabled {
		report.JournalPath = e.cfg.JournalPath
	}
	if info, ok := doc.Server(); ok {
		s := &serverStatus{URL: info.URL, PID: info.PID}
		_, s.Alive = viewer.Lookup(e.store)
		if s.Alive {
			s.Healthy = viewer.Healthy(cmd.Context(), nil, info.URL)
		}
		report.Server = s
	}
	report.Selection, _ = doc.Selection()
	report.Navigation, _ = doc.Navigation()

	if a.flags.JSON {
		return writeJSON(a.stdout, report)
	}
	printStatus(a.stdout, newStyles(a.stdout, false), report)
	return nil
}

func printStatus(w io.Writer, st styles, r statusReport) {
	_, _ = fmt.Fprintln(w, st.sectionHeader("Viewer"))
	switch s := r.Server; {
	case s == nil:
		_, _ = fmt.Fprintln(w, st.kv("Server", st.dim("not running")))
	case s.Healthy:
		_, _ = fmt.Fprintln(w, st.kv("Server", st.url(s.URL)+" "+st.success(fmt.Sprintf("(pid %d, healthy)", s.PID))))
	case s.Alive:
		_, _ = fmt.Fprintln(w, st.kv("Server", s.URL+" "+fmt.Sprintf("(pid %d, not answering)", s.PID)))
	default:
		_, _ = fmt.Fprintln(w, st.kv("Server", s.URL+" "+st.dim(fmt.Sprintf("(pid %d, stale)", s.PID))))
	}
	_, _ = fmt.Fprintln(w, st.kv("State", r.StateFile))
	if r.JournalPath != "" {
		_, _ = fmt.Fprintln(w, st.kv("Journal", r.JournalPath))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, st.sectionHeader("Selection"))
	if sel := r.Selection; sel == nil {
		_, _ = fmt.Fprintln(w, st.kv("Selection", st.dim("none")))
	} else {
		_, _ = fmt.Fprintln(w, st.kv("File", sel.FilePath))
		_, _ = fmt.Fprintln(w, st.kv("Lines", fmt.Sprintf("%d-%d", sel.StartLine, sel.EndLine)))
		_, _ = fmt.Fprintln(w, st.kv("At", model.TimeOf(sel.Timestamp).Format(time.RFC3339)))
		_, _ = fmt.Fprintln(w, st.kv("Chars", fmt.Sprintf("%d", len([]rune(sel.SelectedText)))))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, st.sectionHeader("Navigation"))
	if nav := r.Navigation; nav == nil {
		_, _ = fmt.Fprintln(w, st.kv("Command", st.dim("none")))
	} else {
		state := "pending"
		if nav.Executed {
			state = "executed"
		}
		_, _ = fmt.Fprintln(w, st.kv("Command", string(nav.Command)))
		_, _ = fmt.Fprintln(w, st.kv("File", nav.FilePath))
		_, _ = fmt.Fprintln(w, st.kv("Target", nav.Target.String()))
		_, _ = fmt.Fprintln(w, st.kv("State", state))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
