package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the effective configuration threaded through every command.
type Config struct {
	RootDir     string    `toml:"root_dir"`
	StateFile   string    `toml:"state_file"`
	JournalPath string    `toml:"journal_path"`
	LogFile     string    `toml:"log_file"`
	Verbose     bool      `toml:"verbose"`
	Viewer      Viewer    `toml:"viewer"`
	Selection   Selection `toml:"selection"`
	Latex       Latex     `toml:"latex"`
	Journal     Journal   `toml:"journal"`
}

type Viewer struct {
	Listen string `toml:"listen"`
	// Mode is "process" (detached child) or "embedded" (in the MCP process).
	Mode         string   `toml:"mode"`
	StartTimeout Duration `toml:"start_timeout"`
	// Style is the chroma style used for syntax highlighting.
	Style string `toml:"style"`
}

type Selection struct {
	PollInterval Duration `toml:"poll_interval"`
	WaitTimeout  Duration `toml:"wait_timeout"`
}

type Latex struct {
	Compiler      string   `toml:"compiler"`
	Timeout       Duration `toml:"timeout"`
	MaxErrorChars int      `toml:"max_error_chars"`
}

type Journal struct {
	Enabled   bool `toml:"enabled"`
	MaxEvents int  `toml:"max_events"`
}

const (
	ViewerModeProcess  = "process"
	ViewerModeEmbedded = "embedded"
)

var ViewerModes = []string{ViewerModeProcess, ViewerModeEmbedded}

// Duration is a time.Duration written as a string ("500ms") in config.toml.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultPath returns the user-level config.toml location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "ctxview", "config.toml"), nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
