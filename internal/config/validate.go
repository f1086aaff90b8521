package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks required fields and enum constraints. Errors carry the
// CONFIG_INVALID prefix so the CLI can map them to exit code 2.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	if strings.TrimSpace(cfg.RootDir) == "" {
		return fmt.Errorf("CONFIG_INVALID: root_dir is empty")
	}
	if strings.TrimSpace(cfg.StateFile) == "" {
		return fmt.Errorf("CONFIG_INVALID: state_file is empty\nSet env: CTXVIEW_STATE_FILE=...")
	}
	if cfg.Journal.Enabled && strings.TrimSpace(cfg.JournalPath) == "" {
		return fmt.Errorf("CONFIG_INVALID: journal_path is empty while journal.enabled=true")
	}
	if _, _, err := net.SplitHostPort(cfg.Viewer.Listen); err != nil {
		return fmt.Errorf("CONFIG_INVALID: viewer.listen=%q: %v", cfg.Viewer.Listen, err)
	}
	if !stringIn(cfg.Viewer.Mode, ViewerModes) {
		return fmt.Errorf("CONFIG_INVALID: viewer.mode=%q; allowed: %s", cfg.Viewer.Mode, strings.Join(ViewerModes, ", "))
	}
	for name, d := range map[string]Duration{
		"viewer.start_timeout":    cfg.Viewer.StartTimeout,
		"selection.poll_interval": cfg.Selection.PollInterval,
		"selection.wait_timeout":  cfg.Selection.WaitTimeout,
		"latex.timeout":           cfg.Latex.Timeout,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("CONFIG_INVALID: %s must be positive, got %s", name, d)
		}
	}
	if strings.TrimSpace(cfg.Latex.Compiler) == "" {
		return fmt.Errorf("CONFIG_INVALID: latex.compiler is empty")
	}
	if cfg.Latex.MaxErrorChars <= 0 {
		return fmt.Errorf("CONFIG_INVALID: latex.max_error_chars must be positive")
	}
	if cfg.Journal.MaxEvents < 0 {
		return fmt.Errorf("CONFIG_INVALID: journal.max_events must not be negative")
	}
	return nil
}

func stringIn(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
