package config

import (
	"os"
	"path/filepath"
	"time"
)

const DefaultListen = "127.0.0.1:8765"

// Default returns the built-in configuration. Per-user files live under
// ~/.ctxview.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		RootDir:     ".",
		StateFile:   filepath.Join(dataDir, "state.json"),
		JournalPath: filepath.Join(dataDir, "journal.sqlite"),
		LogFile:     filepath.Join(dataDir, "logs", "viewer.log"),
		Viewer: Viewer{
			Listen:       DefaultListen,
			Mode:         ViewerModeProcess,
			StartTimeout: Duration{10 * time.Second},
			Style:        "github",
		},
		Selection: Selection{
			PollInterval: Duration{500 * time.Millisecond},
			WaitTimeout:  Duration{60 * time.Second},
		},
		Latex: Latex{
			Compiler:      "pdflatex",
			Timeout:       Duration{60 * time.Second},
			MaxErrorChars: 500,
		},
		Journal: Journal{
			Enabled:   true,
			MaxEvents: 5000,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "ctxview")
	}
	return filepath.Join(home, ".ctxview")
}
