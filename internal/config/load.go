package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Options struct {
	// ConfigPath is the config.toml to read. Empty means DefaultPath; a
	// missing file is not an error.
	ConfigPath string
	// DotEnvDir is where .env and .env.local are looked up. Empty means the
	// working directory.
	DotEnvDir    string
	SkipDotEnv   bool
	SkipValidate bool
	Overrides    *Overrides
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	RootDir    *string
	StateFile  *string
	Listen     *string
	ViewerMode *string
	Verbose    *bool
}

// Load builds the config with precedence:
// defaults → config.toml → .env.local/.env → CTXVIEW_* env → Overrides.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	path := opts.ConfigPath
	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("CONFIG_INVALID: cannot load %s: %w", path, err)
			}
		}
	}

	if !opts.SkipDotEnv {
		if err := loadDotEnvFiles(
			filepath.Join(opts.DotEnvDir, ".env.local"),
			filepath.Join(opts.DotEnvDir, ".env"),
		); err != nil {
			return nil, fmt.Errorf("CONFIG_INVALID: failed loading dotenv files: %w", err)
		}
	}

	if err := mergeEnv(&cfg); err != nil {
		return nil, err
	}
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}
	expandPaths(&cfg)

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func mergeEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("CTXVIEW_ROOT", &cfg.RootDir)
	str("CTXVIEW_STATE_FILE", &cfg.StateFile)
	str("CTXVIEW_JOURNAL", &cfg.JournalPath)
	str("CTXVIEW_LOG_FILE", &cfg.LogFile)
	str("CTXVIEW_LISTEN", &cfg.Viewer.Listen)
	str("CTXVIEW_VIEWER_MODE", &cfg.Viewer.Mode)
	str("CTXVIEW_STYLE", &cfg.Viewer.Style)
	str("CTXVIEW_LATEX_COMPILER", &cfg.Latex.Compiler)

	if v := strings.TrimSpace(os.Getenv("CTXVIEW_VERBOSE")); v != "" {
		cfg.Verbose = v == "1" || strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(os.Getenv("CTXVIEW_JOURNAL_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CONFIG_INVALID: CTXVIEW_JOURNAL_ENABLED=%q: %w", v, err)
		}
		cfg.Journal.Enabled = enabled
	}

	for key, dst := range map[string]*Duration{
		"CTXVIEW_POLL_INTERVAL": &cfg.Selection.PollInterval,
		"CTXVIEW_WAIT_TIMEOUT":  &cfg.Selection.WaitTimeout,
		"CTXVIEW_LATEX_TIMEOUT": &cfg.Latex.Timeout,
		"CTXVIEW_START_TIMEOUT": &cfg.Viewer.StartTimeout,
	} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CONFIG_INVALID: %s=%q: %w", key, v, err)
		}
		dst.Duration = d
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.RootDir != nil {
		cfg.RootDir = *o.RootDir
	}
	if o.StateFile != nil {
		cfg.StateFile = *o.StateFile
	}
	if o.Listen != nil {
		cfg.Viewer.Listen = *o.Listen
	}
	if o.ViewerMode != nil {
		cfg.Viewer.Mode = *o.ViewerMode
	}
	if o.Verbose != nil {
		cfg.Verbose = *o.Verbose
	}
}

func expandPaths(cfg *Config) {
	for _, p := range []*string{&cfg.RootDir, &cfg.StateFile, &cfg.JournalPath, &cfg.LogFile} {
		*p = expandHome(strings.TrimSpace(*p))
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
